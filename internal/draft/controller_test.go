package draft

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
	"github.com/smallbiznis/quickinvoice/internal/invoice/editor"
	"github.com/smallbiznis/quickinvoice/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeEntitlements struct {
	entitled bool
}

func (f *fakeEntitlements) IsEntitled(context.Context) bool { return f.entitled }

func counter(start int64) func() int64 {
	n := start
	return func() int64 {
		n++
		return n
	}
}

func newTestController(t *testing.T, env *storagetest.Env, ents *fakeEntitlements, log *zap.Logger) *Controller {
	t.Helper()
	if log == nil {
		log = zaptest.NewLogger(t)
	}
	return NewController(Params{
		Store:        env.Store,
		Entitlements: ents,
		Clock:        env.Clock,
		Settings:     env.Settings,
		Config:       env.Config,
		Log:          log,
		Sequencer:    counter(41),
	})
}

func fillRequired(e *editor.Editor, _ bool) error {
	e.SetBusiness(domain.BusinessProfile{Name: "Acme"})
	e.SetClient(domain.ClientProfile{Name: "Globex"})
	if err := e.UpdateItem(0, domain.LineItem{Description: "Design", Quantity: 10, Price: 50}); err != nil {
		return err
	}
	if err := e.SetDiscount(domain.Discount{Type: domain.DiscountPercentage, Value: 10}); err != nil {
		return err
	}
	return e.SetTaxRate(8)
}

func TestStartWithoutDraftBuildsFreshInvoice(t *testing.T) {
	env := storagetest.New(t)
	c := newTestController(t, env, &fakeEntitlements{}, nil)
	ctx := context.Background()

	assert.False(t, c.Start(ctx))
	v := c.State(ctx)
	assert.Equal(t, "INV-202403-042", v.Invoice.Meta.Number)
	assert.Equal(t, "2024-03-15", v.Invoice.Meta.IssueDate)
	assert.Equal(t, "2024-04-14", v.Invoice.Meta.DueDate)
	assert.Equal(t, "USD", v.Invoice.Currency)
	assert.Len(t, v.Invoice.Items, 1)
	assert.Equal(t, "idle", v.State)
	assert.Nil(t, v.SavedAt)
	assert.False(t, v.Restored)
}

func TestAutosaveAfterQuietPeriod(t *testing.T) {
	env := storagetest.New(t)
	c := newTestController(t, env, &fakeEntitlements{}, nil)
	ctx := context.Background()
	c.Start(ctx)

	v, err := c.Mutate(ctx, fillRequired)
	require.NoError(t, err)
	assert.Equal(t, "pending_save", v.State)
	assert.InDelta(t, 486.0, v.Totals.Total, 1e-9)
	assert.False(t, env.Store.HasDraft(ctx))

	env.Clock.Advance(600 * time.Millisecond)
	_, err = c.Mutate(ctx, func(e *editor.Editor, _ bool) error {
		e.SetMeta(domain.Meta{Number: "INV-7", IssueDate: "2024-03-15", DueDate: "2024-04-14", Notes: "n"})
		return nil
	})
	require.NoError(t, err)
	env.Clock.Advance(600 * time.Millisecond)
	assert.False(t, env.Store.HasDraft(ctx))

	env.Clock.Advance(400 * time.Millisecond)
	require.True(t, env.Store.HasDraft(ctx))
	assert.Equal(t, "idle", c.State(ctx).State)

	stored := env.Store.Draft(ctx)
	require.NotNil(t, stored)
	assert.Equal(t, "INV-7", stored.Meta.Number)
	assert.Equal(t, c.writer, stored.Writer)
}

func TestDraftRoundTripAcrossRestart(t *testing.T) {
	env := storagetest.New(t)
	ctx := context.Background()

	first := newTestController(t, env, &fakeEntitlements{}, nil)
	first.Start(ctx)
	_, err := first.Mutate(ctx, fillRequired)
	require.NoError(t, err)
	require.True(t, first.Flush(ctx))
	saved := first.State(ctx).Invoice

	second := newTestController(t, env, &fakeEntitlements{}, nil)
	assert.True(t, second.Start(ctx))
	v := second.State(ctx)
	assert.Equal(t, saved, v.Invoice)
	assert.True(t, v.Restored)
	require.NotNil(t, v.SavedAt)
	assert.Equal(t, storagetest.Epoch, *v.SavedAt)
}

func TestFailedMutationLeavesStateUnchanged(t *testing.T) {
	env := storagetest.New(t)
	c := newTestController(t, env, &fakeEntitlements{}, nil)
	ctx := context.Background()
	c.Start(ctx)
	before := c.State(ctx)

	boom := errors.New("boom")
	_, err := c.Mutate(ctx, func(e *editor.Editor, _ bool) error {
		e.SetClient(domain.ClientProfile{Name: "Partial"})
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, c.State(ctx))

	_, err = c.Mutate(ctx, func(e *editor.Editor, entitled bool) error {
		return e.SetCurrency("EUR", entitled)
	})
	feature, ok := editor.IsUpsell(err)
	require.True(t, ok)
	assert.Equal(t, editor.FeatureCurrency, feature)
	assert.Equal(t, before, c.State(ctx))
	assert.Equal(t, 0, env.Clock.Pending())
}

func TestEntitledCurrencyChangeUpdatesPreferences(t *testing.T) {
	env := storagetest.New(t)
	c := newTestController(t, env, &fakeEntitlements{entitled: true}, nil)
	ctx := context.Background()
	c.Start(ctx)

	_, err := c.Mutate(ctx, func(e *editor.Editor, entitled bool) error {
		return e.SetCurrency("EUR", entitled)
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", env.Store.Preferences(ctx).Currency)

	_, err = c.NewInvoice(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "EUR", c.State(ctx).Invoice.Currency)
}

func TestNewInvoiceRequiresConfirmation(t *testing.T) {
	env := storagetest.New(t)
	c := newTestController(t, env, &fakeEntitlements{}, nil)
	ctx := context.Background()
	c.Start(ctx)
	_, err := c.Mutate(ctx, fillRequired)
	require.NoError(t, err)
	require.NoError(t, c.SaveDraft(ctx))

	_, err = c.NewInvoice(ctx, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.True(t, env.Store.HasDraft(ctx))
	assert.Equal(t, "Globex", c.State(ctx).Invoice.Client.Name)

	env.Clock.Advance(48 * time.Hour)
	v, err := c.NewInvoice(ctx, true)
	require.NoError(t, err)
	assert.False(t, env.Store.HasDraft(ctx))
	assert.Empty(t, v.Invoice.Client.Name)
	assert.Equal(t, "INV-202403-043", v.Invoice.Meta.Number)
	assert.Equal(t, "2024-03-17", v.Invoice.Meta.IssueDate)
	assert.Equal(t, "2024-04-16", v.Invoice.Meta.DueDate)
}

func TestHistoryLifecycle(t *testing.T) {
	env := storagetest.New(t)
	c := newTestController(t, env, &fakeEntitlements{}, nil)
	ctx := context.Background()
	c.Start(ctx)
	_, err := c.Mutate(ctx, fillRequired)
	require.NoError(t, err)

	snap, err := c.SaveToHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, "INV-202403-042", snap.InvoiceNumber)
	assert.Equal(t, "Globex", snap.ClientName)
	assert.InDelta(t, 486.0, snap.Total, 1e-9)
	assert.Equal(t, "USD", snap.Currency)

	_, err = c.Mutate(ctx, func(e *editor.Editor, _ bool) error {
		e.SetClient(domain.ClientProfile{Name: "Initech"})
		return nil
	})
	require.NoError(t, err)

	v, err := c.LoadFromHistory(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "Globex", v.Invoice.Client.Name)

	_, err = c.LoadFromHistory(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	require.Len(t, c.History(ctx), 1)
	require.NoError(t, c.DeleteFromHistory(ctx, snap.ID))
	assert.ErrorIs(t, c.DeleteFromHistory(ctx, snap.ID), domain.ErrSnapshotNotFound)
	assert.Empty(t, c.History(ctx))

	_, err = c.SaveToHistory(ctx)
	require.NoError(t, err)
	require.NoError(t, c.ClearHistory(ctx))
	assert.Empty(t, c.History(ctx))
}

func TestDuplicateFromHistoryKeepsMoneyAndRefreshesIdentity(t *testing.T) {
	env := storagetest.New(t)
	c := newTestController(t, env, &fakeEntitlements{}, nil)
	ctx := context.Background()
	c.Start(ctx)
	_, err := c.Mutate(ctx, fillRequired)
	require.NoError(t, err)
	snap, err := c.SaveToHistory(ctx)
	require.NoError(t, err)

	env.Clock.Advance(72 * time.Hour)
	v, err := c.DuplicateFromHistory(ctx, snap.ID)
	require.NoError(t, err)

	got := v.Invoice
	src := snap.Data
	assert.NotEqual(t, src.Meta.Number, got.Meta.Number)
	assert.Equal(t, "2024-03-18", got.Meta.IssueDate)
	assert.Equal(t, "2024-04-17", got.Meta.DueDate)
	assert.NotEqual(t, src.Meta.IssueDate, got.Meta.IssueDate)
	assert.NotEqual(t, src.Meta.DueDate, got.Meta.DueDate)
	assert.Equal(t, src.Items, got.Items)
	assert.Equal(t, src.Discount, got.Discount)
	assert.Equal(t, src.TaxRate, got.TaxRate)
	assert.Equal(t, src.Currency, got.Currency)
	assert.Equal(t, src.Client, got.Client)
	assert.Equal(t, snap.Total, v.Totals.Total)

	_, err = c.DuplicateFromHistory(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestExportRefusedWhenInvalid(t *testing.T) {
	env := storagetest.New(t)
	c := newTestController(t, env, &fakeEntitlements{}, nil)
	ctx := context.Background()
	c.Start(ctx)
	_, err := c.Mutate(ctx, fillRequired)
	require.NoError(t, err)
	_, err = c.Mutate(ctx, func(e *editor.Editor, _ bool) error {
		e.SetBusiness(domain.BusinessProfile{Name: ""})
		return nil
	})
	require.NoError(t, err)
	before := c.State(ctx)

	_, err = c.Export(ctx, ExportOptions{Format: FormatPDF, SaveToHistory: true})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{domain.FieldBusinessName}, verr.Missing)
	assert.Equal(t, before, c.State(ctx))
	assert.Empty(t, c.History(ctx))
}

func TestExportRendersAndRecordsHistory(t *testing.T) {
	env := storagetest.New(t)
	c := newTestController(t, env, &fakeEntitlements{}, nil)
	ctx := context.Background()
	c.Start(ctx)
	_, err := c.Mutate(ctx, fillRequired)
	require.NoError(t, err)

	art, err := c.Export(ctx, ExportOptions{Format: FormatPDF, SaveToHistory: true})
	require.NoError(t, err)
	assert.Equal(t, "inv-202403-042-globex.pdf", art.Filename)
	assert.Equal(t, "application/pdf", art.ContentType)
	assert.True(t, bytes.HasPrefix(art.Data, []byte("%PDF")))
	require.NotNil(t, art.Snapshot)
	assert.Len(t, c.History(ctx), 1)

	html, err := c.Export(ctx, ExportOptions{Format: FormatHTML})
	require.NoError(t, err)
	assert.Contains(t, string(html.Data), env.Settings.Get().FooterCredit)

	_, err = c.Export(ctx, ExportOptions{Format: "docx"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPreviewOmitsCreditForEntitledUsers(t *testing.T) {
	env := storagetest.New(t)
	ents := &fakeEntitlements{entitled: true}
	c := newTestController(t, env, ents, nil)
	ctx := context.Background()
	c.Start(ctx)

	out, err := c.Preview(ctx)
	require.NoError(t, err)
	assert.NotContains(t, out, env.Settings.Get().FooterCredit)

	ents.entitled = false
	out, err = c.Preview(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, env.Settings.Get().FooterCredit)
}

func TestBusinessProfileIsPremium(t *testing.T) {
	env := storagetest.New(t)
	ents := &fakeEntitlements{}
	c := newTestController(t, env, ents, nil)
	ctx := context.Background()
	c.Start(ctx)
	_, err := c.Mutate(ctx, fillRequired)
	require.NoError(t, err)

	_, ok := editor.IsUpsell(c.SaveBusinessProfile(ctx))
	assert.True(t, ok)
	_, err = c.LoadBusinessProfile(ctx)
	_, ok = editor.IsUpsell(err)
	assert.True(t, ok)
	assert.Equal(t, domain.BusinessProfile{}, env.Store.BusinessProfile(ctx))

	ents.entitled = true
	require.NoError(t, c.SaveBusinessProfile(ctx))
	assert.Equal(t, "Acme", env.Store.BusinessProfile(ctx).Name)

	_, err = c.Mutate(ctx, func(e *editor.Editor, _ bool) error {
		e.SetBusiness(domain.BusinessProfile{Name: "Other"})
		return nil
	})
	require.NoError(t, err)
	v, err := c.LoadBusinessProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme", v.Invoice.Business.Name)
}

func TestApplyParsed(t *testing.T) {
	env := storagetest.New(t)
	c := newTestController(t, env, &fakeEntitlements{}, nil)
	ctx := context.Background()
	c.Start(ctx)

	name := "Bob"
	price := domain.Number(500)
	v, err := c.ApplyParsed(ctx, domain.ParsedInvoice{
		Client: domain.ParsedClient{Name: &name},
		Items:  []domain.ParsedItem{{Description: "Web design", Price: &price}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob", v.Invoice.Client.Name)
	assert.Equal(t, 500.0, v.Totals.Total)
	assert.Equal(t, "pending_save", v.State)
}

func TestFlushDetectsOtherWriter(t *testing.T) {
	env := storagetest.New(t)
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)

	tabA := newTestController(t, env, &fakeEntitlements{}, nil)
	tabB := newTestController(t, env, &fakeEntitlements{}, zap.New(core))
	tabA.Start(ctx)
	tabB.Start(ctx)

	_, err := tabA.Mutate(ctx, fillRequired)
	require.NoError(t, err)
	env.Clock.Advance(time.Second)
	require.True(t, env.Store.HasDraft(ctx))

	_, err = tabB.Mutate(ctx, func(e *editor.Editor, _ bool) error {
		e.SetClient(domain.ClientProfile{Name: "From B"})
		return nil
	})
	require.NoError(t, err)
	env.Clock.Advance(time.Second)

	assert.Equal(t, 1, logs.FilterMessage("overwriting draft saved by another writer").Len())
	stored := env.Store.Draft(ctx)
	require.NotNil(t, stored)
	assert.Equal(t, "From B", stored.Client.Name)
	assert.Equal(t, tabB.writer, stored.Writer)

	_, err = tabB.Mutate(ctx, func(e *editor.Editor, _ bool) error {
		e.SetClient(domain.ClientProfile{Name: "From B again"})
		return nil
	})
	require.NoError(t, err)
	env.Clock.Advance(time.Second)
	assert.Equal(t, 1, logs.FilterMessage("overwriting draft saved by another writer").Len())
}

func TestStopFlushesPendingSave(t *testing.T) {
	env := storagetest.New(t)
	c := newTestController(t, env, &fakeEntitlements{}, nil)
	ctx := context.Background()
	c.Start(ctx)
	_, err := c.Mutate(ctx, fillRequired)
	require.NoError(t, err)

	require.NoError(t, c.Stop(ctx))
	assert.True(t, env.Store.HasDraft(ctx))
	assert.False(t, c.Flush(ctx))
}

func TestFlushSavesPendingDraftOnce(t *testing.T) {
	env := storagetest.New(t)
	c := newTestController(t, env, &fakeEntitlements{}, nil)
	ctx := context.Background()
	c.Start(ctx)

	assert.False(t, c.Flush(ctx))
	_, err := c.Mutate(ctx, fillRequired)
	require.NoError(t, err)

	require.True(t, c.Flush(ctx))
	assert.Equal(t, "idle", c.State(ctx).State)
	saved := env.Store.Draft(ctx)
	require.NotNil(t, saved)

	env.Clock.Advance(time.Minute)
	again := env.Store.Draft(ctx)
	require.NotNil(t, again)
	assert.Equal(t, saved.SavedAt, again.SavedAt)
	assert.Equal(t, 0, env.Clock.Pending())
}
