// Package editor holds the mutable invoice form. Every read of the totals
// is recomputed from the current state. The editor is not safe for
// concurrent use; the draft controller serializes access to it.
package editor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/smallbiznis/quickinvoice/internal/currency"
	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
)

var (
	ErrUnknownCurrency = errors.New("unknown_currency")
	ErrUnknownTemplate = errors.New("unknown_template")
	ErrLogoTooLarge    = errors.New("logo_too_large")
	ErrLogoNotImage    = errors.New("logo_not_image")
	ErrNoParsedItems   = errors.New("no_parsed_items")
)

// Gated features.
const (
	FeatureCurrency        = "currency"
	FeatureTemplate        = "template"
	FeatureBusinessProfile = "business_profile"
	FeatureLogo            = "logo"
)

// UpsellError is returned instead of applying a premium change for a
// caller without an entitlement.
type UpsellError struct {
	Feature string
}

func (e *UpsellError) Error() string {
	return fmt.Sprintf("%s requires a premium plan", e.Feature)
}

// IsUpsell reports whether err is an UpsellError and returns its feature.
func IsUpsell(err error) (string, bool) {
	var u *UpsellError
	if errors.As(err, &u) {
		return u.Feature, true
	}
	return "", false
}

// Defaults are the values a non-entitled user is held to.
type Defaults struct {
	Currency     string
	Template     string
	LogoMaxBytes int
}

type Editor struct {
	inv      domain.Invoice
	defaults Defaults
}

// New wraps inv. The editor keeps its own copy.
func New(inv domain.Invoice, defaults Defaults) *Editor {
	e := &Editor{inv: inv.Clone(), defaults: defaults}
	if len(e.inv.Items) == 0 {
		e.inv.Items = []domain.LineItem{BlankItem()}
	}
	if e.inv.Discount.Type == "" {
		e.inv.Discount.Type = domain.DiscountPercentage
	}
	if e.inv.Currency == "" {
		e.inv.Currency = defaults.Currency
	}
	if e.inv.Template == "" {
		e.inv.Template = defaults.Template
	}
	return e
}

// BlankItem is the row added to an empty form.
func BlankItem() domain.LineItem {
	return domain.LineItem{Quantity: 1}
}

// Data returns a copy of the form state.
func (e *Editor) Data() domain.Invoice {
	return e.inv.Clone()
}

// Load replaces the whole form state.
func (e *Editor) Load(inv domain.Invoice) {
	*e = *New(inv, e.defaults)
}

func (e *Editor) Totals() domain.Totals {
	return domain.ComputeTotals(e.inv)
}

func (e *Editor) Validate() error {
	return e.inv.Validate()
}

// SetBusiness updates the business details. The logo is managed by
// SetLogo and RemoveLogo.
func (e *Editor) SetBusiness(p domain.BusinessProfile) {
	p.Logo = e.inv.Business.Logo
	e.inv.Business = p
}

func (e *Editor) SetClient(c domain.ClientProfile) {
	e.inv.Client = c
}

func (e *Editor) SetMeta(m domain.Meta) {
	e.inv.Meta = m
}

func (e *Editor) AddItem() int {
	e.inv.Items = append(e.inv.Items, BlankItem())
	return len(e.inv.Items) - 1
}

func (e *Editor) UpdateItem(i int, item domain.LineItem) error {
	if i < 0 || i >= len(e.inv.Items) {
		return domain.ErrInvalidItemIndex
	}
	e.inv.Items[i] = item
	return nil
}

// RemoveItem deletes row i. Removing the only row leaves a blank one.
func (e *Editor) RemoveItem(i int) error {
	if i < 0 || i >= len(e.inv.Items) {
		return domain.ErrInvalidItemIndex
	}
	e.inv.Items = append(e.inv.Items[:i], e.inv.Items[i+1:]...)
	if len(e.inv.Items) == 0 {
		e.inv.Items = []domain.LineItem{BlankItem()}
	}
	return nil
}

func (e *Editor) SetDiscount(d domain.Discount) error {
	switch d.Type {
	case domain.DiscountPercentage, domain.DiscountFixed:
	default:
		return domain.ErrInvalidDiscount
	}
	if d.Value.Float() < 0 {
		return domain.ErrInvalidDiscount
	}
	e.inv.Discount = domain.Discount{Type: d.Type, Value: domain.Number(d.Value.Float())}
	return nil
}

func (e *Editor) SetTaxRate(rate float64) error {
	v := domain.Number(rate).Float()
	if v < 0 || v != rate {
		return domain.ErrInvalidTaxRate
	}
	e.inv.TaxRate = domain.Number(v)
	return nil
}

// SetCurrency switches the display currency. Anything other than the
// default requires an entitlement.
func (e *Editor) SetCurrency(code string, entitled bool) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !currency.Known(code) {
		return ErrUnknownCurrency
	}
	if !entitled && code != e.defaults.Currency {
		return &UpsellError{Feature: FeatureCurrency}
	}
	e.inv.Currency = code
	return nil
}

func (e *Editor) SetTemplate(name string, entitled bool) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if !domain.KnownTemplate(name) {
		return ErrUnknownTemplate
	}
	if !entitled && name != e.defaults.Template {
		return &UpsellError{Feature: FeatureTemplate}
	}
	e.inv.Template = name
	return nil
}

// SetLogo validates an uploaded image and stores it as a data URI. A
// rejected upload leaves the current logo in place.
func (e *Editor) SetLogo(data []byte, entitled bool) error {
	if !entitled {
		return &UpsellError{Feature: FeatureLogo}
	}
	if e.defaults.LogoMaxBytes > 0 && len(data) > e.defaults.LogoMaxBytes {
		return ErrLogoTooLarge
	}
	contentType := http.DetectContentType(data)
	if len(data) == 0 || !strings.HasPrefix(contentType, "image/") {
		return ErrLogoNotImage
	}
	uri := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	e.inv.Business.Logo = &uri
	return nil
}

func (e *Editor) RemoveLogo() {
	e.inv.Business.Logo = nil
}

// ApplyParsed replaces the line items with the parsed ones and merges
// non-empty client fields and notes.
func (e *Editor) ApplyParsed(p domain.ParsedInvoice) error {
	items := p.NormalizedItems()
	if len(items) == 0 {
		return ErrNoParsedItems
	}
	e.inv.Items = items
	mergeString(&e.inv.Client.Name, p.Client.Name)
	mergeString(&e.inv.Client.Email, p.Client.Email)
	mergeString(&e.inv.Client.Address, p.Client.Address)
	mergeString(&e.inv.Meta.Notes, p.Meta.Notes)
	return nil
}

func mergeString(dst *string, src *string) {
	if src == nil {
		return
	}
	if v := strings.TrimSpace(*src); v != "" {
		*dst = v
	}
}
