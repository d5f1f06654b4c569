package format

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)
)

const DefaultInvoiceNumberTemplate = "INV-{YYYY}{MM}-{SEQ3}"

// FormatInvoiceNumber formats a human-readable invoice number
// based on a template, invoice issue time, and a sequence value.
//
// This function is PURE:
// - No side effects
// - Fully deterministic
func FormatInvoiceNumber(
	template string,
	issuedAt time.Time,
	seq int64,
) (string, error) {

	if template == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}

	if seq < 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}

	out := template

	// Date tokens
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))

	// Simple sequence
	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))

	// Padded sequence
	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}

		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}

		return fmt.Sprintf("%0*d", width, seq)
	})

	// Final safety check: unresolved tokens
	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}

	return out, nil
}

// Sequencer returns the sequence part of a new invoice number.
type Sequencer func() int64

// RandomSequence draws a value in [0, 999] for the 3-digit suffix.
func RandomSequence() int64 {
	return rand.Int64N(1000)
}

// NewInvoiceNumber mints a number from the template. An invalid template
// falls back to the default one so a fresh invoice always gets a number.
func NewInvoiceNumber(template string, issuedAt time.Time, next Sequencer) string {
	if next == nil {
		next = RandomSequence
	}
	seq := next()
	number, err := FormatInvoiceNumber(template, issuedAt, seq)
	if err != nil {
		number, _ = FormatInvoiceNumber(DefaultInvoiceNumberTemplate, issuedAt, seq)
	}
	return number
}
