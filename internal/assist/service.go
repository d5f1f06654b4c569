package assist

import (
	"context"

	"github.com/smallbiznis/quickinvoice/internal/config"
	"github.com/smallbiznis/quickinvoice/internal/entitlement"
	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
	"github.com/smallbiznis/quickinvoice/internal/usage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("assist",
	fx.Provide(func(cfg config.Config) Parser { return NewHTTPParser(cfg.AssistEndpoint) }),
	fx.Provide(func(s *entitlement.Service) Entitlements { return s }),
	fx.Provide(NewService),
)

type Entitlements interface {
	IsEntitled(ctx context.Context) bool
}

// Service applies the daily quota around a Parser. A use is counted only
// when the parse succeeds.
type Service struct {
	parser  Parser
	limiter *usage.Limiter
	ents    Entitlements
	log     *zap.Logger
}

type Params struct {
	fx.In

	Parser       Parser
	Limiter      *usage.Limiter
	Entitlements Entitlements
	Log          *zap.Logger
}

func NewService(p Params) *Service {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{parser: p.Parser, limiter: p.Limiter, ents: p.Entitlements, log: log.Named("assist")}
}

// Result is a successful parse with the uses left today. Remaining is -1
// for entitled callers.
type Result struct {
	Parsed    domain.ParsedInvoice `json:"parsed"`
	Remaining int                  `json:"remaining"`
}

func (s *Service) Parse(ctx context.Context, prompt string) (Result, error) {
	prompt, err := NormalizePrompt(prompt)
	if err != nil {
		return Result{}, err
	}
	entitled := s.ents.IsEntitled(ctx)
	if !s.limiter.CanUse(ctx, entitled) {
		return Result{}, usage.ErrQuotaExhausted
	}

	parsed, err := s.parser.Parse(ctx, prompt)
	if err != nil {
		s.log.Warn("assist parse failed", zap.Error(err))
		return Result{}, err
	}

	res := Result{Parsed: parsed, Remaining: -1}
	if !entitled {
		s.limiter.Increment(ctx)
		res.Remaining = s.limiter.Remaining(ctx)
	}
	return res, nil
}

// Remaining reports today's allowance, or -1 when unlimited.
func (s *Service) Remaining(ctx context.Context) int {
	if s.ents.IsEntitled(ctx) {
		return -1
	}
	return s.limiter.Remaining(ctx)
}
