// Package render turns an invoice into its preview and export artifacts.
package render

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/quickinvoice/internal/currency"
	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
)

var ErrInvalidLogo = errors.New("invalid_logo_data")

// Line is a formatted line item.
type Line struct {
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
}

// Document is the display form of an invoice: every amount is already
// rounded and formatted for its currency.
type Document struct {
	Number    string
	IssueDate string
	DueDate   string
	Notes     string
	Template  string
	Accent    string

	Business domain.BusinessProfile
	Client   domain.ClientProfile
	Logo     *Logo

	Items []Line

	Subtotal      string
	DiscountLabel string
	Discount      string
	TaxLabel      string
	Tax           string
	Total         string

	// Footer is stamped on every page. Empty for entitled users.
	Footer string
}

// Logo is a decoded data URI.
type Logo struct {
	ContentType string
	Data        []byte
	URI         string
}

var accents = map[string]string{
	domain.TemplateClassic: "#1a1f36",
	domain.TemplateModern:  "#2563eb",
	domain.TemplateMinimal: "#111827",
}

// NewDocument formats inv. A non-empty footer is rendered as the credit
// line on every page.
func NewDocument(inv domain.Invoice, footer string) Document {
	totals := domain.ComputeTotals(inv)
	code := currency.Lookup(inv.Currency).Code
	money := func(v float64) string { return currency.Format(v, code) }

	doc := Document{
		Number:    inv.Meta.Number,
		IssueDate: inv.Meta.IssueDate,
		DueDate:   inv.Meta.DueDate,
		Notes:     inv.Meta.Notes,
		Template:  inv.Template,
		Accent:    accents[inv.Template],
		Business:  inv.Business,
		Client:    inv.Client,
		Subtotal:  money(totals.Subtotal),
		Total:     money(totals.Total),
		Footer:    strings.TrimSpace(footer),
	}
	if doc.Accent == "" {
		doc.Accent = accents[domain.TemplateClassic]
	}
	if inv.Business.Logo != nil {
		if logo, err := ParseLogo(*inv.Business.Logo); err == nil {
			doc.Logo = logo
		}
	}

	for _, item := range inv.Items {
		if item.IsBlank() {
			continue
		}
		doc.Items = append(doc.Items, Line{
			Description: item.Description,
			Quantity:    formatQuantity(item.Quantity.Float()),
			UnitPrice:   money(item.Price.Float()),
			Amount:      money(item.Amount()),
		})
	}

	if totals.DiscountAmount != 0 {
		doc.Discount = money(-totals.DiscountAmount)
		doc.DiscountLabel = "Discount"
		if inv.Discount.Type == domain.DiscountPercentage {
			doc.DiscountLabel = fmt.Sprintf("Discount (%s%%)", formatQuantity(inv.Discount.Value.Float()))
		}
	}
	if rate := inv.TaxRate.Float(); rate != 0 {
		doc.TaxLabel = fmt.Sprintf("Tax (%s%%)", formatQuantity(rate))
		doc.Tax = money(totals.TaxAmount)
	}
	return doc
}

// ParseLogo decodes a base64 image data URI.
func ParseLogo(uri string) (*Logo, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, ErrInvalidLogo
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrInvalidLogo
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || !strings.HasPrefix(contentType, "image/") {
		return nil, ErrInvalidLogo
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLogo, err)
	}
	return &Logo{ContentType: contentType, Data: data, URI: uri}, nil
}

// Filename builds a download name like "inv-202403-042-globex.pdf".
func Filename(number, client, ext string) string {
	base := slug.Make(strings.TrimSpace(number + " " + client))
	if base == "" {
		base = "invoice"
	}
	return base + "." + ext
}

func formatQuantity(value float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", value), "0"), ".")
}
