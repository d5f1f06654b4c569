package domain

import (
	"errors"
	"strings"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot_not_found")
	ErrInvalidItemIndex = errors.New("invalid_item_index")
	ErrInvalidTaxRate   = errors.New("invalid_tax_rate")
	ErrInvalidDiscount  = errors.New("invalid_discount")
)

const (
	FieldBusinessName = "business name"
	FieldClientName   = "client name"
	FieldLineItem     = "at least one line item with a description"
)

// ValidationError lists the required fields missing before export.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "please fill in: " + strings.Join(e.Missing, ", ")
}

// Validate checks the fields required for export.
func (inv Invoice) Validate() error {
	var missing []string
	if strings.TrimSpace(inv.Business.Name) == "" {
		missing = append(missing, FieldBusinessName)
	}
	if strings.TrimSpace(inv.Client.Name) == "" {
		missing = append(missing, FieldClientName)
	}
	hasItem := false
	for _, item := range inv.Items {
		if !item.IsBlank() {
			hasItem = true
			break
		}
	}
	if !hasItem {
		missing = append(missing, FieldLineItem)
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
