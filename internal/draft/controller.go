// Package draft owns the live invoice form: it autosaves it as a draft,
// restores it on start and manages the saved history.
package draft

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/quickinvoice/internal/clock"
	"github.com/smallbiznis/quickinvoice/internal/config"
	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
	"github.com/smallbiznis/quickinvoice/internal/invoice/editor"
	"github.com/smallbiznis/quickinvoice/internal/invoice/format"
	"github.com/smallbiznis/quickinvoice/internal/invoice/render"
	"github.com/smallbiznis/quickinvoice/internal/observability/metrics"
	"github.com/smallbiznis/quickinvoice/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrConfirmationRequired = errors.New("confirmation_required")
	ErrPersistFailed        = errors.New("persist_failed")
	ErrUnsupportedFormat    = errors.New("unsupported_export_format")
)

const (
	FormatPDF  = "pdf"
	FormatHTML = "html"
)

// Entitlements reports whether premium features are unlocked.
type Entitlements interface {
	IsEntitled(ctx context.Context) bool
}

// Mutation edits the form. entitled tells gated setters whether premium
// changes are allowed.
type Mutation func(e *editor.Editor, entitled bool) error

// View is the form state as seen by callers. Restored is set when the
// form came from a stored draft at start.
type View struct {
	Invoice  domain.Invoice `json:"invoice"`
	Totals   domain.Totals  `json:"totals"`
	SavedAt  *time.Time     `json:"savedAt"`
	State    string         `json:"state"`
	Entitled bool           `json:"entitled"`
	Restored bool           `json:"restored"`
}

// Artifact is an exported file.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
	Snapshot    *domain.Snapshot
}

type ExportOptions struct {
	Format        string
	SaveToHistory bool
}

type Controller struct {
	mu sync.Mutex

	store    *storage.Store
	ents     Entitlements
	clock    clock.Clock
	settings *config.SettingsHolder
	loc      *time.Location
	seq      format.Sequencer
	html     *render.HTMLRenderer
	pdf      *render.PDFRenderer
	log      *zap.Logger
	metrics  *metrics.Metrics

	editor    *editor.Editor
	debounce  *Debouncer
	writer    string
	lastSaved time.Time
	restored  bool
}

type Params struct {
	fx.In

	Store        *storage.Store
	Entitlements Entitlements
	Clock        clock.Clock
	Settings     *config.SettingsHolder
	Config       config.Config
	HTML         *render.HTMLRenderer
	PDF          *render.PDFRenderer
	Log          *zap.Logger
	Metrics      *metrics.Metrics `optional:"true"`
	Sequencer    format.Sequencer `optional:"true"`
}

func NewController(p Params) *Controller {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		store:    p.Store,
		ents:     p.Entitlements,
		clock:    p.Clock,
		settings: p.Settings,
		loc:      p.Config.Location(),
		seq:      p.Sequencer,
		html:     p.HTML,
		pdf:      p.PDF,
		metrics:  p.Metrics,
		writer:   uuid.NewString(),
	}
	c.log = log.Named("draft").With(zap.String("writer", c.writer))
	if c.seq == nil {
		c.seq = format.RandomSequence
	}
	if c.html == nil {
		c.html = render.NewHTMLRenderer()
	}
	if c.pdf == nil {
		c.pdf = render.NewPDFRenderer()
	}
	c.editor = editor.New(domain.Invoice{}, c.defaults())
	c.debounce = NewDebouncer(c.clock, func() time.Duration {
		return c.settings.Get().AutosaveDelay
	}, func(ctx context.Context) {
		c.saveDraft(ctx)
	})
	return c
}

func (c *Controller) defaults() editor.Defaults {
	s := c.settings.Get()
	return editor.Defaults{
		Currency:     s.DefaultCurrency,
		Template:     s.DefaultTemplate,
		LogoMaxBytes: s.LogoMaxBytes,
	}
}

// Start restores the stored draft, or begins a fresh invoice when there is
// none. It reports whether a draft was restored.
func (c *Controller) Start(ctx context.Context) bool {
	entitled := c.ents.IsEntitled(ctx)
	stored := c.store.Draft(ctx)

	var fresh domain.Invoice
	if stored == nil {
		fresh = c.freshInvoice(ctx, entitled)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if stored != nil {
		c.editor = editor.New(stored.Invoice, c.defaults())
		c.lastSaved = stored.SavedAt
		c.restored = true
		c.log.Info("draft restored",
			zap.String("invoice_number", stored.Meta.Number),
			zap.Time("saved_at", stored.SavedAt),
		)
		return true
	}
	c.editor = editor.New(fresh, c.defaults())
	c.lastSaved = time.Time{}
	c.restored = false
	return false
}

// Stop writes out a pending autosave.
func (c *Controller) Stop(ctx context.Context) error {
	c.Flush(ctx)
	return nil
}

func (c *Controller) freshInvoice(ctx context.Context, entitled bool) domain.Invoice {
	s := c.settings.Get()
	now := c.clock.Now().In(c.loc)
	prefs := c.store.Preferences(ctx)

	inv := domain.Invoice{
		Meta: domain.Meta{
			Number:    format.NewInvoiceNumber(s.NumberTemplate, now, c.seq),
			IssueDate: now.Format(domain.DateLayout),
			DueDate:   now.AddDate(0, 0, s.DueInDays).Format(domain.DateLayout),
		},
		Discount: domain.Discount{Type: domain.DiscountPercentage},
		Currency: s.DefaultCurrency,
		TaxRate:  domain.Number(prefs.TaxRate),
		Template: s.DefaultTemplate,
	}
	if entitled {
		inv.Currency = prefs.Currency
		inv.Template = prefs.Template
		inv.Business = c.store.BusinessProfile(ctx)
	}
	return inv
}

// State returns the current view.
func (c *Controller) State(ctx context.Context) View {
	entitled := c.ents.IsEntitled(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked(entitled)
}

func (c *Controller) viewLocked(entitled bool) View {
	v := View{
		Invoice:  c.editor.Data(),
		Totals:   c.editor.Totals(),
		State:    c.debounce.State().String(),
		Entitled: entitled,
		Restored: c.restored,
	}
	if !c.lastSaved.IsZero() {
		saved := c.lastSaved
		v.SavedAt = &saved
	}
	return v
}

// Mutate applies fn to the form and schedules an autosave. A failing fn
// leaves the form exactly as it was.
func (c *Controller) Mutate(ctx context.Context, fn Mutation) (View, error) {
	entitled := c.ents.IsEntitled(ctx)

	c.mu.Lock()
	before := c.editor.Data()
	if err := fn(c.editor, entitled); err != nil {
		c.editor.Load(before)
		c.mu.Unlock()
		if feature, ok := editor.IsUpsell(err); ok {
			c.log.Debug("premium feature requested", zap.String("feature", feature))
			c.metrics.RecordUpsell(feature)
		}
		return View{}, err
	}
	after := c.editor.Data()
	c.debounce.Trigger()
	view := c.viewLocked(entitled)
	c.mu.Unlock()

	if before.Currency != after.Currency || before.Template != after.Template || before.TaxRate != after.TaxRate {
		c.store.SavePreferences(ctx, domain.Preferences{
			Currency: after.Currency,
			TaxRate:  after.TaxRate.Float(),
			Template: after.Template,
		})
	}
	return view, nil
}

// Flush saves a pending autosave immediately. It reports whether a save
// was pending.
func (c *Controller) Flush(ctx context.Context) bool {
	return c.debounce.Flush(ctx)
}

// SaveDraft writes the draft now, whether or not a save is pending.
func (c *Controller) SaveDraft(ctx context.Context) error {
	c.debounce.Cancel()
	if !c.saveDraft(ctx) {
		return ErrPersistFailed
	}
	return nil
}

func (c *Controller) saveDraft(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing := c.store.Draft(ctx); existing != nil &&
		existing.Writer != "" && existing.Writer != c.writer &&
		existing.SavedAt.After(c.lastSaved) {
		c.log.Warn("overwriting draft saved by another writer",
			zap.String("other_writer", existing.Writer),
			zap.Time("other_saved_at", existing.SavedAt),
		)
		c.metrics.RecordDraftConflict()
	}

	saved, ok := c.store.SaveDraft(ctx, c.editor.Data(), c.writer)
	if !ok {
		return false
	}
	c.lastSaved = saved.SavedAt
	c.metrics.RecordDraftSave()
	return true
}

// NewInvoice discards the draft and starts over. It refuses unless the
// caller has confirmed.
func (c *Controller) NewInvoice(ctx context.Context, confirmed bool) (View, error) {
	if !confirmed {
		return View{}, ErrConfirmationRequired
	}
	entitled := c.ents.IsEntitled(ctx)
	fresh := c.freshInvoice(ctx, entitled)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.debounce.Cancel()
	c.store.ClearDraft(ctx)
	c.editor.Load(fresh)
	c.lastSaved = time.Time{}
	c.restored = false
	c.log.Info("new invoice started", zap.String("invoice_number", fresh.Meta.Number))
	return c.viewLocked(entitled), nil
}

// SaveToHistory appends a snapshot of the current form to the history.
func (c *Controller) SaveToHistory(ctx context.Context) (domain.Snapshot, error) {
	c.mu.Lock()
	inv := c.editor.Data()
	c.mu.Unlock()
	return c.addToHistory(ctx, inv)
}

func (c *Controller) addToHistory(ctx context.Context, inv domain.Invoice) (domain.Snapshot, error) {
	snap, ok := c.store.AddToHistory(ctx, domain.Snapshot{
		InvoiceNumber: inv.Meta.Number,
		ClientName:    inv.Client.Name,
		Total:         domain.ComputeTotals(inv).Total,
		Currency:      inv.Currency,
		Data:          inv,
	})
	if !ok {
		return domain.Snapshot{}, ErrPersistFailed
	}
	c.log.Info("invoice saved to history",
		zap.String("id", snap.ID),
		zap.String("invoice_number", snap.InvoiceNumber),
	)
	return snap, nil
}

func (c *Controller) History(ctx context.Context) []domain.Snapshot {
	return c.store.History(ctx)
}

// LoadFromHistory replaces the form with a saved snapshot.
func (c *Controller) LoadFromHistory(ctx context.Context, id string) (View, error) {
	entry, ok := c.store.HistoryEntry(ctx, id)
	if !ok {
		return View{}, domain.ErrSnapshotNotFound
	}
	return c.Mutate(ctx, func(e *editor.Editor, _ bool) error {
		e.Load(entry.Data)
		return nil
	})
}

// DuplicateFromHistory loads a snapshot as a new invoice: it gets a new
// number and fresh issue and due dates, everything else is kept.
func (c *Controller) DuplicateFromHistory(ctx context.Context, id string) (View, error) {
	entry, ok := c.store.HistoryEntry(ctx, id)
	if !ok {
		return View{}, domain.ErrSnapshotNotFound
	}

	s := c.settings.Get()
	now := c.clock.Now().In(c.loc)
	inv := entry.Data.Clone()
	inv.Meta.Number = c.newNumber(s.NumberTemplate, now, entry.Data.Meta.Number)
	inv.Meta.IssueDate = now.Format(domain.DateLayout)
	inv.Meta.DueDate = now.AddDate(0, 0, s.DueInDays).Format(domain.DateLayout)

	return c.Mutate(ctx, func(e *editor.Editor, _ bool) error {
		e.Load(inv)
		return nil
	})
}

// newNumber mints an invoice number different from avoid.
func (c *Controller) newNumber(template string, now time.Time, avoid string) string {
	number := format.NewInvoiceNumber(template, now, c.seq)
	for i := 0; i < 10 && number == avoid; i++ {
		number = format.NewInvoiceNumber(template, now, c.seq)
	}
	if number == avoid {
		number += "-2"
	}
	return number
}

func (c *Controller) DeleteFromHistory(ctx context.Context, id string) error {
	if c.store.RemoveFromHistory(ctx, id) {
		return nil
	}
	if _, ok := c.store.HistoryEntry(ctx, id); ok {
		return ErrPersistFailed
	}
	return domain.ErrSnapshotNotFound
}

func (c *Controller) ClearHistory(ctx context.Context) error {
	if !c.store.ClearHistory(ctx) {
		return ErrPersistFailed
	}
	return nil
}

// Preview renders the current form as HTML.
func (c *Controller) Preview(ctx context.Context) (string, error) {
	doc := c.document(ctx)
	return c.html.Render(doc)
}

func (c *Controller) document(ctx context.Context) render.Document {
	entitled := c.ents.IsEntitled(ctx)
	c.mu.Lock()
	inv := c.editor.Data()
	c.mu.Unlock()
	return render.NewDocument(inv, c.footer(entitled))
}

func (c *Controller) footer(entitled bool) string {
	if entitled {
		return ""
	}
	return c.settings.Get().FooterCredit
}

// Export validates the form and renders it. A refused export changes
// neither the form nor the history.
func (c *Controller) Export(ctx context.Context, opts ExportOptions) (Artifact, error) {
	entitled := c.ents.IsEntitled(ctx)
	c.mu.Lock()
	inv := c.editor.Data()
	c.mu.Unlock()

	if err := inv.Validate(); err != nil {
		return Artifact{}, err
	}

	kind := strings.ToLower(strings.TrimSpace(opts.Format))
	if kind == "" {
		kind = FormatPDF
	}
	doc := render.NewDocument(inv, c.footer(entitled))

	var art Artifact
	switch kind {
	case FormatPDF:
		data, err := c.pdf.Render(ctx, doc)
		if err != nil {
			return Artifact{}, err
		}
		art = Artifact{ContentType: "application/pdf", Data: data}
	case FormatHTML:
		out, err := c.html.Render(doc)
		if err != nil {
			return Artifact{}, err
		}
		art = Artifact{ContentType: "text/html; charset=utf-8", Data: []byte(out)}
	default:
		return Artifact{}, ErrUnsupportedFormat
	}
	art.Filename = render.Filename(inv.Meta.Number, inv.Client.Name, kind)

	if opts.SaveToHistory {
		snap, err := c.addToHistory(ctx, inv)
		if err != nil {
			return Artifact{}, err
		}
		art.Snapshot = &snap
	}

	c.metrics.RecordExport(kind, !entitled)
	c.log.Info("invoice exported",
		zap.String("format", kind),
		zap.String("invoice_number", inv.Meta.Number),
		zap.Bool("watermark", !entitled),
	)
	return art, nil
}

// SaveBusinessProfile stores the business details for reuse. Premium only.
func (c *Controller) SaveBusinessProfile(ctx context.Context) error {
	if !c.ents.IsEntitled(ctx) {
		c.metrics.RecordUpsell(editor.FeatureBusinessProfile)
		return &editor.UpsellError{Feature: editor.FeatureBusinessProfile}
	}
	c.mu.Lock()
	profile := c.editor.Data().Business
	c.mu.Unlock()

	if !c.store.SaveBusinessProfile(ctx, profile) {
		return ErrPersistFailed
	}
	return nil
}

// LoadBusinessProfile fills the business details from the saved profile.
// Premium only.
func (c *Controller) LoadBusinessProfile(ctx context.Context) (View, error) {
	if !c.ents.IsEntitled(ctx) {
		c.metrics.RecordUpsell(editor.FeatureBusinessProfile)
		return View{}, &editor.UpsellError{Feature: editor.FeatureBusinessProfile}
	}
	profile := c.store.BusinessProfile(ctx)
	return c.Mutate(ctx, func(e *editor.Editor, _ bool) error {
		inv := e.Data()
		inv.Business = profile
		e.Load(inv)
		return nil
	})
}

// ApplyParsed merges an assist result into the form.
func (c *Controller) ApplyParsed(ctx context.Context, parsed domain.ParsedInvoice) (View, error) {
	return c.Mutate(ctx, func(e *editor.Editor, _ bool) error {
		return e.ApplyParsed(parsed)
	})
}
