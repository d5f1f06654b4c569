package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/quickinvoice/internal/assist"
	"github.com/smallbiznis/quickinvoice/internal/draft"
	"github.com/smallbiznis/quickinvoice/internal/entitlement"
	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
	"github.com/smallbiznis/quickinvoice/internal/invoice/editor"
	"github.com/smallbiznis/quickinvoice/internal/usage"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// validationFields maps domain validation sentinels to the request field
// they concern.
var validationFields = map[error]string{
	domain.ErrInvalidItemIndex:     "index",
	domain.ErrInvalidTaxRate:       "taxRate",
	domain.ErrInvalidDiscount:      "discount",
	editor.ErrUnknownCurrency:      "currency",
	editor.ErrUnknownTemplate:      "template",
	editor.ErrLogoTooLarge:         "logo",
	editor.ErrLogoNotImage:         "logo",
	editor.ErrNoParsedItems:        "items",
	assist.ErrPromptTooShort:       "prompt",
	assist.ErrNoItems:              "prompt",
	entitlement.ErrInvalidCheckout: "subscription",
	entitlement.ErrUnknownPlan:     "plan",
	draft.ErrUnsupportedFormat:     "format",
	ErrInvalidRequest:              "request",
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var missing *domain.ValidationError
	if errors.As(err, &missing) {
		details := make([]ValidationError, 0, len(missing.Missing))
		for _, field := range missing.Missing {
			details = append(details, ValidationError{Field: field, Code: "required", Message: field + " is required"})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: missing.Error(),
			Errors:  details,
		}
	}

	var rejected *assist.RejectedError
	if errors.As(err, &rejected) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: rejected.Message,
			Errors:  []ValidationError{{Field: "prompt", Code: "not_understood", Message: rejected.Message}},
		}
	}

	for sentinel, field := range validationFields {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: "validation error",
				Errors:  []ValidationError{{Field: field, Code: sentinel.Error(), Message: validationMessage(sentinel)}},
			}
		}
	}

	if feature, ok := editor.IsUpsell(err); ok {
		return http.StatusPaymentRequired, errorPayload{
			Type:    "upsell_required",
			Message: err.Error(),
			Errors:  []ValidationError{{Field: feature, Code: "premium_required", Message: err.Error()}},
		}
	}

	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, domain.ErrSnapshotNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, draft.ErrConfirmationRequired):
		return http.StatusConflict, errorPayload{
			Type:    "confirmation_required",
			Message: "starting a new invoice discards the current draft; confirm to continue",
		}
	case errors.Is(err, usage.ErrQuotaExhausted):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "quota_exhausted",
			Message: "daily limit reached, upgrade for unlimited use",
		}
	case errors.Is(err, assist.ErrUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "the assistant is unavailable, please try again later",
		}
	case errors.Is(err, draft.ErrPersistFailed),
		errors.Is(err, entitlement.ErrPersistFailed):
		return http.StatusInternalServerError, errorPayload{
			Type:    "storage_error",
			Message: "could not save, storage may be full",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidItemIndex):
		return "no line item at that position"
	case errors.Is(err, domain.ErrInvalidTaxRate):
		return "tax rate must be zero or more"
	case errors.Is(err, domain.ErrInvalidDiscount):
		return "discount must be a percentage or fixed amount of zero or more"
	case errors.Is(err, editor.ErrUnknownCurrency):
		return "unknown currency"
	case errors.Is(err, editor.ErrUnknownTemplate):
		return "unknown template"
	case errors.Is(err, editor.ErrLogoTooLarge):
		return "logo file is too large"
	case errors.Is(err, editor.ErrLogoNotImage):
		return "logo must be an image"
	case errors.Is(err, editor.ErrNoParsedItems),
		errors.Is(err, assist.ErrNoItems):
		return "no line items could be identified"
	case errors.Is(err, assist.ErrPromptTooShort):
		return "prompt too short"
	case errors.Is(err, entitlement.ErrInvalidCheckout):
		return "customer and subscription ids are required"
	case errors.Is(err, entitlement.ErrUnknownPlan):
		return "plan must be monthly, yearly or lifetime"
	case errors.Is(err, draft.ErrUnsupportedFormat):
		return "format must be pdf or html"
	default:
		return "invalid request"
	}
}

// classifyErrorForLog returns the error type and code for request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, err.Error()
	}
	return payload.Type, payload.Type
}
