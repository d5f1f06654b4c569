// Package storagetest builds in-memory stores for tests.
package storagetest

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quickinvoice/internal/clock"
	"github.com/smallbiznis/quickinvoice/internal/config"
	"github.com/smallbiznis/quickinvoice/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Epoch is the default time of the fake clock.
var Epoch = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

type Env struct {
	Store    *storage.Store
	KV       *storage.MemoryKV
	Clock    *clock.FakeClock
	Settings *config.SettingsHolder
	Config   config.Config
}

type Option func(*options)

type options struct {
	settings config.Settings
	maxBytes int
	now      time.Time
}

func WithSettings(s config.Settings) Option {
	return func(o *options) { o.settings = s }
}

func WithMaxBytes(n int) Option {
	return func(o *options) { o.maxBytes = n }
}

func WithNow(t time.Time) Option {
	return func(o *options) { o.now = t }
}

func New(t testing.TB, opts ...Option) *Env {
	t.Helper()
	o := options{settings: config.DefaultSettings(), now: Epoch}
	for _, opt := range opts {
		opt(&o)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		StorageBackend:   config.BackendMemory,
		StorageNamespace: "test",
		Timezone:         "UTC",
	}
	env := &Env{
		KV:       storage.NewMemoryKV(o.maxBytes),
		Clock:    clock.NewFakeClock(o.now),
		Settings: config.NewStaticSettings(o.settings),
		Config:   cfg,
	}
	env.Store = storage.NewStore(storage.Params{
		KV:       env.KV,
		Config:   cfg,
		Clock:    env.Clock,
		IDs:      node,
		Settings: env.Settings,
		Log:      zaptest.NewLogger(t),
	})
	return env
}
