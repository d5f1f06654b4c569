package render

import (
	"context"
	"strconv"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var mutedColor = &props.Color{Red: 135, Green: 146, Blue: 162}

// PDFRenderer produces the A4 export document.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    8,
			Color:   mutedColor,
		}).
		Build()

	m := maroto.New(cfg)

	if doc.Footer != "" {
		if err := m.RegisterFooter(
			text.NewRow(8, doc.Footer, props.Text{Size: 8, Align: align.Center, Color: mutedColor}),
		); err != nil {
			return nil, err
		}
	}

	accent := hexColor(doc.Accent)
	m.AddRows(headerRow(doc, accent))

	m.AddRow(10,
		text.NewCol(6, "Invoice number: "+doc.Number, props.Text{Size: 9}),
		text.NewCol(3, "Issued: "+dash(doc.IssueDate), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(3, "Due: "+dash(doc.DueDate), props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(35,
		partyCol("From", doc.Business.Name, doc.Business.Email, doc.Business.Phone, doc.Business.Address),
		col.New(2),
		partyCol("Bill to", doc.Client.Name, doc.Client.Email, doc.Client.Address),
	)

	header := props.Text{Style: fontstyle.Bold, Size: 9, Color: accent}
	m.AddRow(8,
		text.NewCol(6, "Description", header),
		text.NewCol(2, "Qty", withAlign(header, align.Right)),
		text.NewCol(2, "Unit price", withAlign(header, align.Right)),
		text.NewCol(2, "Amount", withAlign(header, align.Right)),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range doc.Items {
		m.AddRow(8,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, item.Quantity, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(2, line.NewCol(12))

	m.AddRows(totalRow("Subtotal", doc.Subtotal, false))
	if doc.DiscountLabel != "" {
		m.AddRows(totalRow(doc.DiscountLabel, doc.Discount, false))
	}
	if doc.TaxLabel != "" {
		m.AddRows(totalRow(doc.TaxLabel, doc.Tax, false))
	}
	m.AddRows(totalRow("Total", doc.Total, true))

	if strings.TrimSpace(doc.Notes) != "" {
		m.AddRow(8, text.NewCol(12, "Notes", props.Text{Style: fontstyle.Bold, Size: 9, Top: 4}))
		m.AddRow(20, text.NewCol(12, doc.Notes, props.Text{Size: 9, Color: mutedColor}))
	}

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return out.GetBytes(), nil
}

func headerRow(doc Document, accent *props.Color) core.Row {
	title := text.NewCol(8, "INVOICE", props.Text{Size: 20, Style: fontstyle.Bold, Color: accent})
	if doc.Logo != nil {
		if ext, ok := imageExtension(doc.Logo.ContentType); ok {
			return row.New(25).Add(
				title,
				image.NewFromBytesCol(4, doc.Logo.Data, ext, props.Rect{Center: false, Percent: 80, Left: 20}),
			)
		}
	}
	return row.New(25).Add(
		title,
		text.NewCol(4, doc.Business.Name, props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right}),
	)
}

func partyCol(label string, lines ...string) core.Col {
	c := col.New(5).Add(text.New(label, props.Text{Size: 8, Style: fontstyle.Bold, Color: mutedColor}))
	top := 5.0
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		style := props.Text{Size: 9, Top: top}
		if i == 0 {
			style.Style = fontstyle.Bold
		}
		c.Add(text.New(l, style))
		top += 5 * float64(strings.Count(l, "\n")+1)
	}
	return c
}

func totalRow(label, value string, final bool) core.Row {
	style := props.Text{Size: 9, Align: align.Right}
	if final {
		style.Style = fontstyle.Bold
		style.Size = 11
	}
	return row.New(7).Add(
		col.New(6),
		text.NewCol(3, label, style),
		text.NewCol(3, value, style),
	)
}

func withAlign(p props.Text, a align.Type) props.Text {
	p.Align = a
	return p
}

func imageExtension(contentType string) (extension.Type, bool) {
	switch contentType {
	case "image/png":
		return extension.Png, true
	case "image/jpeg":
		return extension.Jpeg, true
	default:
		return "", false
	}
}

func hexColor(hex string) *props.Color {
	fallback := &props.Color{Red: 26, Green: 31, Blue: 54}
	if len(hex) != 7 || hex[0] != '#' {
		return fallback
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return fallback
	}
	return &props.Color{Red: int(v >> 16 & 0xff), Green: int(v >> 8 & 0xff), Blue: int(v & 0xff)}
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
