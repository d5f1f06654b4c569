package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/quickinvoice/internal/assist"
	"github.com/smallbiznis/quickinvoice/internal/draft"
	"github.com/smallbiznis/quickinvoice/internal/entitlement"
	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
	"github.com/smallbiznis/quickinvoice/internal/storage/storagetest"
	"github.com/smallbiznis/quickinvoice/internal/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubParser struct {
	err error
}

func (p *stubParser) Parse(context.Context, string) (domain.ParsedInvoice, error) {
	if p.err != nil {
		return domain.ParsedInvoice{}, p.err
	}
	qty := domain.Number(2)
	price := domain.Number(75)
	name := "Globex"
	return domain.ParsedInvoice{
		Client: domain.ParsedClient{Name: &name},
		Items:  []domain.ParsedItem{{Description: "Consulting", Quantity: &qty, Price: &price}},
	}, nil
}

type testServer struct {
	router *gin.Engine
	env    *storagetest.Env
	parser *stubParser
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := storagetest.New(t)
	log := zaptest.NewLogger(t)
	ents := entitlement.NewService(env.Store, env.Clock, log)

	ctl := draft.NewController(draft.Params{
		Store:        env.Store,
		Entitlements: ents,
		Clock:        env.Clock,
		Settings:     env.Settings,
		Config:       env.Config,
		Log:          log,
	})
	ctl.Start(context.Background())
	t.Cleanup(func() { _ = ctl.Stop(context.Background()) })

	parser := &stubParser{}
	limiter := usage.NewLimiter(usage.Params{
		Store:    env.Store,
		Clock:    env.Clock,
		Settings: env.Settings,
		Config:   env.Config,
		Log:      log,
	})
	assistSvc := assist.NewService(assist.Params{
		Parser:       parser,
		Limiter:      limiter,
		Entitlements: ents,
		Log:          log,
	})

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	NewServer(ServerParams{
		Gin:         router,
		Draft:       ctl,
		Assist:      assistSvc,
		Entitlement: ents,
		Store:       env.Store,
		Settings:    env.Settings,
		Log:         log,
	})
	return &testServer{router: router, env: env, parser: parser}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out.Error
}

type viewResponse struct {
	Data draft.View `json:"data"`
}

func decodeView(t *testing.T, resp *httptest.ResponseRecorder) draft.View {
	t.Helper()
	var out viewResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out.Data
}

func (ts *testServer) fill(t *testing.T) {
	t.Helper()
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/invoice/business", `{"name":"Acme"}`).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/invoice/client", `{"name":"Globex"}`).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/invoice/items/0", `{"description":"Design","quantity":"10","price":50}`).Code)
}

func TestGetInvoiceReturnsFreshForm(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/invoice", "")
	require.Equal(t, http.StatusOK, resp.Code)

	v := decodeView(t, resp)
	assert.Equal(t, "USD", v.Invoice.Currency)
	assert.Len(t, v.Invoice.Items, 1)
	assert.False(t, v.Entitled)
}

func TestEditsRecomputeTotals(t *testing.T) {
	ts := newTestServer(t)
	ts.fill(t)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/invoice/discount", `{"type":"percentage","value":10}`).Code)
	resp := ts.do(t, http.MethodPut, "/api/invoice/tax", `{"rate":8}`)
	require.Equal(t, http.StatusOK, resp.Code)

	v := decodeView(t, resp)
	assert.InDelta(t, 500.0, v.Totals.Subtotal, 1e-9)
	assert.InDelta(t, 486.0, v.Totals.Total, 1e-9)
}

func TestInvalidInputIsRejected(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPut, "/api/invoice/items/abc", `{"description":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "validation_error", decodeError(t, resp).Type)

	resp = ts.do(t, http.MethodPut, "/api/invoice/items/7", `{"description":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.do(t, http.MethodPut, "/api/invoice/tax", `{"rate":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "taxRate", payload.Errors[0].Field)
}

func TestPremiumFeaturesRequireSubscription(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPut, "/api/invoice/currency", `{"currency":"EUR"}`)
	assert.Equal(t, http.StatusPaymentRequired, resp.Code)
	assert.Equal(t, "upsell_required", decodeError(t, resp).Type)

	resp = ts.do(t, http.MethodPost, "/api/subscription", `{"customer_id":"cus_1","subscription_id":"sub_1","plan":"lifetime"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.do(t, http.MethodPut, "/api/invoice/currency", `{"currency":"EUR"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	v := decodeView(t, resp)
	assert.Equal(t, "EUR", v.Invoice.Currency)
	assert.True(t, v.Entitled)
}

func TestActivateSubscriptionValidates(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/subscription", `{"plan":"monthly"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.do(t, http.MethodPost, "/api/subscription", `{"customer_id":"c","subscription_id":"s","plan":"weekly"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestExportRequiresFields(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/invoice/export", `{"format":"pdf"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	payload := decodeError(t, resp)
	assert.Equal(t, "validation_error", payload.Type)
	assert.Contains(t, payload.Message, "business name")
	assert.Len(t, payload.Errors, 3)
	assert.Empty(t, ts.env.Store.History(context.Background()))
}

func TestExportStreamsAttachmentAndSavesHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.fill(t)

	resp := ts.do(t, http.MethodPost, "/api/invoice/export?format=pdf&save=true", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "globex.pdf")
	assert.True(t, bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")))

	id := resp.Header().Get("X-History-Id")
	require.NotEmpty(t, id)

	resp = ts.do(t, http.MethodGet, "/api/history/"+id, "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.do(t, http.MethodPost, "/api/invoice/export", `{"format":"docx"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHistoryLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.fill(t)

	resp := ts.do(t, http.MethodPost, "/api/history", "")
	require.Equal(t, http.StatusCreated, resp.Code)
	var created struct {
		Data domain.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.Equal(t, "Globex", created.Data.ClientName)

	resp = ts.do(t, http.MethodPost, "/api/history/"+created.Data.ID+"/duplicate", "")
	require.Equal(t, http.StatusOK, resp.Code)
	dup := decodeView(t, resp)
	assert.NotEqual(t, created.Data.InvoiceNumber, dup.Invoice.Meta.Number)
	assert.Equal(t, "Globex", dup.Invoice.Client.Name)

	resp = ts.do(t, http.MethodGet, "/api/exports/history.xlsx", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, xlsxContentType, resp.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/history/"+created.Data.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/history/"+created.Data.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/history/missing/load", "").Code)
}

func TestNewInvoiceNeedsConfirmation(t *testing.T) {
	ts := newTestServer(t)
	ts.fill(t)

	resp := ts.do(t, http.MethodPost, "/api/invoice/new", "")
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "confirmation_required", decodeError(t, resp).Type)

	resp = ts.do(t, http.MethodPost, "/api/invoice/new", `{"confirmed":true}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decodeView(t, resp).Invoice.Client.Name)
}

func TestParseConsumesDailyQuota(t *testing.T) {
	ts := newTestServer(t)
	quota := ts.env.Settings.Get().DailyQuota

	for i := 0; i < quota; i++ {
		resp := ts.do(t, http.MethodPost, "/api/invoice/parse", `{"prompt":"two hours of consulting for Globex at 75"}`)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}

	resp := ts.do(t, http.MethodPost, "/api/invoice/parse", `{"prompt":"two hours of consulting for Globex at 75"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)

	resp = ts.do(t, http.MethodGet, "/api/usage", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"remaining":0`)

	state := decodeView(t, ts.do(t, http.MethodGet, "/api/invoice", ""))
	assert.Equal(t, "Globex", state.Invoice.Client.Name)
	require.Len(t, state.Invoice.Items, 1)
	assert.Equal(t, "Consulting", state.Invoice.Items[0].Description)
}

func TestParseErrors(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/invoice/parse", `{"prompt":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	ts.parser.err = assist.ErrUnavailable
	resp = ts.do(t, http.MethodPost, "/api/invoice/parse", `{"prompt":"build a website"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	ts.parser.err = &assist.RejectedError{Message: "could not understand the request"}
	resp = ts.do(t, http.MethodPost, "/api/invoice/parse", `{"prompt":"build a website"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "could not understand the request", decodeError(t, resp).Message)
}

func TestPreviewRendersHTML(t *testing.T) {
	ts := newTestServer(t)
	ts.fill(t)

	resp := ts.do(t, http.MethodGet, "/api/invoice/preview", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.HasPrefix(resp.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, resp.Body.String(), "Globex")
}

func TestReferenceLists(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/currencies", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"code":"JPY"`)

	resp = ts.do(t, http.MethodGet, "/api/templates", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), domain.TemplateModern)
}
