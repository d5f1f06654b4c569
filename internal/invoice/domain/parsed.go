package domain

import "strings"

// ParsedItem is a line item as returned by the assist endpoint. Absent
// quantity or price are nil.
type ParsedItem struct {
	Description string  `json:"description"`
	Quantity    *Number `json:"quantity"`
	Price       *Number `json:"price"`
}

type ParsedClient struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
}

type ParsedMeta struct {
	Notes *string `json:"notes"`
}

// ParsedInvoice is the structured result of a natural-language prompt.
type ParsedInvoice struct {
	Client ParsedClient `json:"client"`
	Items  []ParsedItem `json:"items"`
	Meta   ParsedMeta   `json:"invoice"`
}

// NormalizedItems converts parsed items to line items: description
// defaults to "Service", quantity to 1 and price to 0.
func (p ParsedInvoice) NormalizedItems() []LineItem {
	out := make([]LineItem, 0, len(p.Items))
	for _, it := range p.Items {
		item := LineItem{Description: strings.TrimSpace(it.Description), Quantity: 1}
		if item.Description == "" {
			item.Description = "Service"
		}
		if it.Quantity != nil {
			item.Quantity = it.Quantity.normalized()
		}
		if it.Price != nil {
			item.Price = it.Price.normalized()
		}
		out = append(out, item)
	}
	return out
}
