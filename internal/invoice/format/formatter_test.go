package format

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInvoiceNumber(t *testing.T) {
	issued := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)

	got, err := FormatInvoiceNumber(DefaultInvoiceNumberTemplate, issued, 7)
	require.NoError(t, err)
	assert.Equal(t, "INV-202603-007", got)

	got, err = FormatInvoiceNumber("{YY}{MM}{DD}/{SEQ}", issued, 42)
	require.NoError(t, err)
	assert.Equal(t, "260307/42", got)

	_, err = FormatInvoiceNumber("", issued, 1)
	assert.Error(t, err)
	_, err = FormatInvoiceNumber("INV-{SEQ3}", issued, -1)
	assert.Error(t, err)
	_, err = FormatInvoiceNumber("INV-{BOGUS}", issued, 1)
	assert.Error(t, err)
}

func TestNewInvoiceNumber(t *testing.T) {
	issued := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^INV-202610-\d{3}$`)

	for i := 0; i < 50; i++ {
		assert.Regexp(t, pattern, NewInvoiceNumber(DefaultInvoiceNumberTemplate, issued, nil))
	}

	fixed := func() int64 { return 0 }
	assert.Equal(t, "INV-202610-000", NewInvoiceNumber(DefaultInvoiceNumberTemplate, issued, fixed))
	assert.Equal(t, "INV-202610-000", NewInvoiceNumber("{NOPE}", issued, fixed))
}
