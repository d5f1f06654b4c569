package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quickinvoice/internal/clock"
	"github.com/smallbiznis/quickinvoice/internal/config"
	"github.com/smallbiznis/quickinvoice/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SchemaVersion is written into every record envelope. Records with a
// higher version were written by a newer build and are not decoded.
const SchemaVersion = 1

// envelope wraps every stored value. Values written before envelopes
// existed are plain JSON and are read as version 0.
type envelope struct {
	Version *int            `json:"v"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// Store layers typed records over a KV. Every failure is logged and turned
// into a false/zero result; nothing is returned as an error to callers.
type Store struct {
	kv        KV
	namespace string
	clock     clock.Clock
	ids       *snowflake.Node
	settings  *config.SettingsHolder
	log       *zap.Logger
	metrics   *metrics.Metrics
}

type Params struct {
	fx.In

	KV        KV
	Config    config.Config
	Clock     clock.Clock
	IDs       *snowflake.Node
	Settings  *config.SettingsHolder
	Log       *zap.Logger
	Metrics   *metrics.Metrics `optional:"true"`
}

func NewStore(p Params) *Store {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		kv:        p.KV,
		namespace: strings.TrimSpace(p.Config.StorageNamespace),
		clock:     p.Clock,
		ids:       p.IDs,
		settings:  p.Settings,
		log:       log.Named("storage"),
		metrics:   p.Metrics,
	}
}

func (s *Store) key(name string) string {
	if s.namespace == "" {
		return name
	}
	return s.namespace + ":" + name
}

// Get decodes the record under key into dst. It reports false when the
// record is absent or unreadable.
func (s *Store) Get(ctx context.Context, key string, dst any) bool {
	raw, err := s.kv.Get(ctx, s.key(key))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.fail("get", key, err)
		}
		return false
	}
	if err := decode(raw, key, dst); err != nil {
		s.fail("decode", key, err)
		return false
	}
	return true
}

// Set encodes value under key. It reports false on serialization or
// storage failure.
func (s *Store) Set(ctx context.Context, key string, value any) bool {
	raw, err := encode(key, value)
	if err != nil {
		s.fail("encode", key, err)
		return false
	}
	if err := s.kv.Set(ctx, s.key(key), raw); err != nil {
		s.fail("set", key, err)
		return false
	}
	return true
}

func (s *Store) Remove(ctx context.Context, key string) bool {
	if err := s.kv.Remove(ctx, s.key(key)); err != nil {
		s.fail("remove", key, err)
		return false
	}
	return true
}

// Exists reports whether key holds a record, without decoding it.
func (s *Store) Exists(ctx context.Context, key string) bool {
	_, err := s.kv.Get(ctx, s.key(key))
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.fail("get", key, err)
	}
	return err == nil
}

func (s *Store) fail(op, key string, err error) {
	s.log.Warn("storage operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
	s.metrics.RecordStorageFailure(op)
}

func encode(kind string, value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	version := SchemaVersion
	return json.Marshal(envelope{Version: &version, Kind: kind, Data: data})
}

func decode(raw []byte, kind string, dst any) error {
	var env envelope
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return err
		}
	}
	if env.Version == nil || env.Data == nil {
		return json.Unmarshal(trimmed, dst)
	}
	if *env.Version > SchemaVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, *env.Version)
	}
	if env.Kind != "" && env.Kind != kind {
		return fmt.Errorf("%w: %s", ErrKindMismatch, env.Kind)
	}
	return json.Unmarshal(env.Data, dst)
}
