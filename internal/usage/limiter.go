// Package usage enforces the daily allowance of the assist feature for
// callers without an entitlement. The counter lives in the local store and
// is trusted as is; it shapes the experience, it is not access control.
package usage

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/quickinvoice/internal/clock"
	"github.com/smallbiznis/quickinvoice/internal/config"
	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
	"github.com/smallbiznis/quickinvoice/internal/observability/metrics"
	"github.com/smallbiznis/quickinvoice/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrQuotaExhausted = errors.New("daily_quota_exhausted")

type Limiter struct {
	store    *storage.Store
	clock    clock.Clock
	settings *config.SettingsHolder
	loc      *time.Location
	log      *zap.Logger
	metrics  *metrics.Metrics
}

type Params struct {
	fx.In

	Store    *storage.Store
	Clock    clock.Clock
	Settings *config.SettingsHolder
	Config   config.Config
	Log      *zap.Logger
	Metrics  *metrics.Metrics `optional:"true"`
}

func NewLimiter(p Params) *Limiter {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{
		store:    p.Store,
		clock:    p.Clock,
		settings: p.Settings,
		loc:      p.Config.Location(),
		log:      log.Named("usage"),
		metrics:  p.Metrics,
	}
}

func (l *Limiter) today() string {
	return l.clock.Now().In(l.loc).Format(domain.DateLayout)
}

// Remaining returns how many uses are left today, floored at 0.
func (l *Limiter) Remaining(ctx context.Context) int {
	quota := l.settings.Get().DailyQuota
	u, ok := l.store.Usage(ctx)
	if !ok || u.Date != l.today() {
		return quota
	}
	return max(0, quota-u.Count)
}

// Increment records one use. A counter from an earlier day restarts at 1.
func (l *Limiter) Increment(ctx context.Context) int {
	today := l.today()
	u, ok := l.store.Usage(ctx)
	if !ok || u.Date != today {
		u = domain.UsageCounter{Date: today}
	}
	u.Count++
	l.store.SaveUsage(ctx, u)
	return u.Count
}

// CanUse reports whether a use is allowed. Entitled callers always pass.
func (l *Limiter) CanUse(ctx context.Context, entitled bool) bool {
	if entitled {
		return true
	}
	if l.Remaining(ctx) > 0 {
		return true
	}
	l.log.Debug("daily quota exhausted")
	l.metrics.RecordQuotaDenied()
	return false
}
