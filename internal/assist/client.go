// Package assist is the client side of the natural-language invoice
// parser. The parser is an external service; when it is missing or
// failing the feature is disabled and nothing else is affected.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
)

const (
	MinPromptLength = 5
	MaxPromptLength = 500
)

var (
	ErrUnavailable    = errors.New("assist_unavailable")
	ErrPromptTooShort = errors.New("prompt_too_short")
	ErrNoItems        = errors.New("no_items_identified")
)

// RejectedError carries the parser's message for a prompt it could not
// understand. The user may rephrase and retry.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

type Parser interface {
	Parse(ctx context.Context, prompt string) (domain.ParsedInvoice, error)
}

// NormalizePrompt trims the prompt and truncates it to MaxPromptLength
// characters.
func NormalizePrompt(prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if utf8.RuneCountInString(prompt) < MinPromptLength {
		return "", ErrPromptTooShort
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		prompt = string([]rune(prompt)[:MaxPromptLength])
	}
	return prompt, nil
}

type parseRequest struct {
	Prompt string `json:"prompt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPParser posts prompts to a parse endpoint.
type HTTPParser struct {
	endpoint string
	client   *http.Client
}

func NewHTTPParser(endpoint string) *HTTPParser {
	return &HTTPParser{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: 20 * time.Second},
	}
}

func (p *HTTPParser) Parse(ctx context.Context, prompt string) (domain.ParsedInvoice, error) {
	if p.endpoint == "" {
		return domain.ParsedInvoice{}, ErrUnavailable
	}
	body, err := json.Marshal(parseRequest{Prompt: prompt})
	if err != nil {
		return domain.ParsedInvoice{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ParsedInvoice{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.ParsedInvoice{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		message := strings.TrimSpace(e.Error)
		if resp.StatusCode < http.StatusInternalServerError && message != "" {
			return domain.ParsedInvoice{}, &RejectedError{Message: message}
		}
		return domain.ParsedInvoice{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed domain.ParsedInvoice
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.ParsedInvoice{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(parsed.Items) == 0 {
		return domain.ParsedInvoice{}, ErrNoItems
	}
	return parsed, nil
}
