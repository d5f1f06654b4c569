package storage

import (
	"context"
	"strings"

	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
	"go.uber.org/zap"
)

const (
	KeyBusinessProfile = "business_profile"
	KeyPreferences     = "preferences"
	KeySubscription    = "subscription"
	KeyDraft           = "invoice_draft"
	KeyHistory         = "invoice_history"
	KeyDailyUsage      = "assist_daily_usage"
)

// BusinessProfile returns the saved profile, or a zero profile.
func (s *Store) BusinessProfile(ctx context.Context) domain.BusinessProfile {
	var p domain.BusinessProfile
	if !s.Get(ctx, KeyBusinessProfile, &p) {
		return domain.BusinessProfile{}
	}
	return p
}

func (s *Store) SaveBusinessProfile(ctx context.Context, p domain.BusinessProfile) bool {
	return s.Set(ctx, KeyBusinessProfile, p)
}

// Preferences returns the saved preferences with defaults filled in.
func (s *Store) Preferences(ctx context.Context) domain.Preferences {
	settings := s.settings.Get()
	prefs := domain.Preferences{
		Currency: settings.DefaultCurrency,
		Template: settings.DefaultTemplate,
	}
	var stored domain.Preferences
	if !s.Get(ctx, KeyPreferences, &stored) {
		return prefs
	}
	if strings.TrimSpace(stored.Currency) != "" {
		prefs.Currency = stored.Currency
	}
	if strings.TrimSpace(stored.Template) != "" {
		prefs.Template = stored.Template
	}
	if stored.TaxRate >= 0 {
		prefs.TaxRate = stored.TaxRate
	}
	return prefs
}

func (s *Store) SavePreferences(ctx context.Context, p domain.Preferences) bool {
	return s.Set(ctx, KeyPreferences, p)
}

// Subscription returns the stored record as is, or nil.
func (s *Store) Subscription(ctx context.Context) *domain.SubscriptionRecord {
	var rec domain.SubscriptionRecord
	if !s.Get(ctx, KeySubscription, &rec) {
		return nil
	}
	return &rec
}

func (s *Store) SaveSubscription(ctx context.Context, rec domain.SubscriptionRecord) bool {
	return s.Set(ctx, KeySubscription, rec)
}

func (s *Store) ClearSubscription(ctx context.Context) bool {
	return s.Remove(ctx, KeySubscription)
}

// Draft returns the autosaved draft, or nil.
func (s *Store) Draft(ctx context.Context) *domain.Draft {
	var d domain.Draft
	if !s.Get(ctx, KeyDraft, &d) {
		return nil
	}
	return &d
}

// SaveDraft stamps the draft with the current time and writes it.
func (s *Store) SaveDraft(ctx context.Context, inv domain.Invoice, writer string) (domain.Draft, bool) {
	d := domain.Draft{
		Invoice: inv.Clone(),
		SavedAt: s.clock.Now().UTC(),
		Writer:  writer,
	}
	if !s.Set(ctx, KeyDraft, d) {
		return domain.Draft{}, false
	}
	return d, true
}

func (s *Store) HasDraft(ctx context.Context) bool {
	return s.Exists(ctx, KeyDraft)
}

func (s *Store) ClearDraft(ctx context.Context) bool {
	return s.Remove(ctx, KeyDraft)
}

// History returns the saved snapshots, newest first.
func (s *Store) History(ctx context.Context) []domain.Snapshot {
	var entries []domain.Snapshot
	if !s.Get(ctx, KeyHistory, &entries) {
		return []domain.Snapshot{}
	}
	if entries == nil {
		entries = []domain.Snapshot{}
	}
	return entries
}

// AddToHistory assigns an id and timestamp, prepends the snapshot and
// evicts the oldest entries beyond the configured limit.
func (s *Store) AddToHistory(ctx context.Context, snap domain.Snapshot) (domain.Snapshot, bool) {
	snap.ID = s.ids.Generate().String()
	snap.SavedAt = s.clock.Now().UTC()
	snap.Data = snap.Data.Clone()

	entries := append([]domain.Snapshot{snap}, s.History(ctx)...)
	limit := s.settings.Get().HistoryLimit
	evicted := 0
	if limit > 0 && len(entries) > limit {
		evicted = len(entries) - limit
		entries = entries[:limit]
	}
	if !s.Set(ctx, KeyHistory, entries) {
		return domain.Snapshot{}, false
	}
	if evicted > 0 {
		s.log.Debug("history entries evicted", zap.Int("evicted", evicted))
	}
	s.metrics.RecordHistoryWrite(evicted)
	return snap, true
}

func (s *Store) HistoryEntry(ctx context.Context, id string) (domain.Snapshot, bool) {
	for _, e := range s.History(ctx) {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Snapshot{}, false
}

// RemoveFromHistory deletes one entry. It reports false when the id is
// unknown or the write fails.
func (s *Store) RemoveFromHistory(ctx context.Context, id string) bool {
	entries := s.History(ctx)
	kept := make([]domain.Snapshot, 0, len(entries))
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return false
	}
	return s.Set(ctx, KeyHistory, kept)
}

func (s *Store) ClearHistory(ctx context.Context) bool {
	return s.Remove(ctx, KeyHistory)
}

// Usage returns the stored daily counter and whether one exists.
func (s *Store) Usage(ctx context.Context) (domain.UsageCounter, bool) {
	var u domain.UsageCounter
	ok := s.Get(ctx, KeyDailyUsage, &u)
	return u, ok
}

func (s *Store) SaveUsage(ctx context.Context, u domain.UsageCounter) bool {
	return s.Set(ctx, KeyDailyUsage, u)
}
