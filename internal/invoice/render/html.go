package render

import (
	"bytes"
	"html/template"
	"strings"
)

const previewTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Number}}</title>
  <style>
    :root {
      --accent: {{.Accent}};
      --font: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
    }
    * { box-sizing: border-box; }
    body { margin: 0; padding: 40px; font-family: var(--font); color: #1a1f36; background: #f7f9fc; }
    .invoice-card { background: #fff; max-width: 794px; margin: 0 auto; padding: 60px; border-radius: 4px; }
    .template-modern .header { border-bottom: 4px solid var(--accent); padding-bottom: 16px; }
    .template-minimal h1 { font-weight: 400; letter-spacing: 2px; text-transform: uppercase; }
    .header { display: flex; justify-content: space-between; margin-bottom: 40px; }
    .header h1 { margin: 0; font-size: 24px; color: var(--accent); }
    .meta-grid { display: flex; justify-content: space-between; margin-bottom: 40px; }
    .col { flex: 1; }
    .label { font-size: 11px; text-transform: uppercase; color: #8792a2; margin-bottom: 6px; font-weight: 600; }
    .value { font-size: 14px; line-height: 1.5; white-space: pre-line; }
    table { width: 100%; border-collapse: collapse; margin-bottom: 30px; }
    th { text-align: left; text-transform: uppercase; font-size: 11px; color: #8792a2; border-bottom: 1px solid #e3e8ee; padding: 10px 0; }
    td { padding: 16px 0; border-bottom: 1px solid #e3e8ee; font-size: 14px; vertical-align: top; }
    .td-right { text-align: right; }
    .totals { display: flex; flex-direction: column; align-items: flex-end; }
    .total-row { display: flex; justify-content: space-between; width: 250px; padding: 6px 0; font-size: 14px; }
    .total-label { color: #697386; }
    .total-final { border-top: 1px solid #e3e8ee; margin-top: 10px; padding-top: 10px; font-weight: 700; font-size: 16px; }
    .notes { margin-top: 40px; font-size: 13px; color: #697386; white-space: pre-line; }
    .credit { margin-top: 60px; font-size: 11px; color: #8792a2; text-align: center; border-top: 1px solid #e3e8ee; padding-top: 16px; }
  </style>
</head>
<body>
  <div class="invoice-card template-{{.Template}}">
    <div class="header">
      <div>
        <h1>Invoice</h1>
        <div class="label" style="margin-top: 12px;">Invoice number</div>
        <div class="value">{{.Number}}</div>
      </div>
      <div>
        {{with logoURL .Logo}}<img src="{{.}}" style="max-height: 60px;" alt="logo">{{else}}<strong>{{.Business.Name}}</strong>{{end}}
      </div>
    </div>

    <div class="meta-grid">
      <div class="col">
        <div class="label">From</div>
        <div class="value"><strong>{{.Business.Name}}</strong>
{{.Business.Email}}
{{.Business.Phone}}
{{.Business.Address}}</div>
      </div>
      <div class="col">
        <div class="label">Bill to</div>
        <div class="value"><strong>{{.Client.Name}}</strong>
{{.Client.Email}}
{{.Client.Address}}</div>
      </div>
      <div class="col" style="flex: 0 0 180px;">
        <div class="label">Date issued</div>
        <div class="value">{{or .IssueDate "-"}}</div>
        <div class="label" style="margin-top: 16px;">Date due</div>
        <div class="value">{{or .DueDate "-"}}</div>
      </div>
    </div>

    <table>
      <thead>
        <tr>
          <th style="width: 50%;">Description</th>
          <th class="td-right">Qty</th>
          <th class="td-right">Unit price</th>
          <th class="td-right">Amount</th>
        </tr>
      </thead>
      <tbody>
        {{range .Items}}
        <tr>
          <td>{{.Description}}</td>
          <td class="td-right">{{.Quantity}}</td>
          <td class="td-right">{{.UnitPrice}}</td>
          <td class="td-right">{{.Amount}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <div class="totals">
      <div class="total-row"><span class="total-label">Subtotal</span><span>{{.Subtotal}}</span></div>
      {{if .DiscountLabel}}<div class="total-row"><span class="total-label">{{.DiscountLabel}}</span><span>{{.Discount}}</span></div>{{end}}
      {{if .TaxLabel}}<div class="total-row"><span class="total-label">{{.TaxLabel}}</span><span>{{.Tax}}</span></div>{{end}}
      <div class="total-row total-final"><span>Total</span><span>{{.Total}}</span></div>
    </div>

    {{if .Notes}}<div class="notes">{{.Notes}}</div>{{end}}
    {{if .Footer}}<div class="credit">{{.Footer}}</div>{{end}}
  </div>
</body>
</html>
`

// HTMLRenderer renders the on-screen preview.
type HTMLRenderer struct {
	tpl *template.Template
}

func NewHTMLRenderer() *HTMLRenderer {
	funcs := template.FuncMap{
		"logoURL": logoURL,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("preview").Funcs(funcs).Parse(previewTemplate)),
	}
}

func (r *HTMLRenderer) Render(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// logoURL marks an already validated image data URI as safe for src.
func logoURL(logo *Logo) template.URL {
	if logo == nil || !strings.HasPrefix(logo.URI, "data:image/") {
		return ""
	}
	return template.URL(logo.URI)
}
