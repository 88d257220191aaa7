package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolpay/internal/audit"
	"poolpay/internal/escrow"
	"poolpay/internal/ledger/service"
	"poolpay/internal/ledger/store"
	"poolpay/pkg/domain"
	"poolpay/pkg/platform/middleware/auth"
	"poolpay/pkg/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *chi.Mux) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewService(
		"ledger/test",
		store.New(),
		escrow.NewAccounts("ledger/test"),
		escrow.TransferFunc(func(context.Context, domain.Account, uint64) error { return nil }),
		audit.NewPublisher(audit.NewInMemoryStore()),
		logger,
	)
	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterQuoteRoute(r)
	return h, r
}

func doRequest(r http.Handler, method, path string, body string, as domain.Account) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if !as.IsZero() {
		req = req.WithContext(auth.WithAccount(req.Context(), as))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRegisterServiceEndpoint(t *testing.T) {
	_, r := newTestHandler(t)

	rec := doRequest(r, http.MethodPost, "/services", `{"service_id":"1","price":500}`, testutil.TestIDs.Provider1)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ServiceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1", resp.ServiceID)
	assert.Equal(t, uint64(500), resp.Price)
	assert.Equal(t, testutil.TestIDs.Provider1.String(), resp.Provider)
}

func TestRegisterServiceRejectsUnauthenticated(t *testing.T) {
	_, r := newTestHandler(t)

	rec := doRequest(r, http.MethodPost, "/services", `{"service_id":"1","price":500}`, domain.Account{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterServiceRejectsZeroPrice(t *testing.T) {
	_, r := newTestHandler(t)

	rec := doRequest(r, http.MethodPost, "/services", `{"service_id":"1","price":0}`, testutil.TestIDs.Provider1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterServiceDuplicateConflicts(t *testing.T) {
	_, r := newTestHandler(t)

	rec := doRequest(r, http.MethodPost, "/services", `{"service_id":"1","price":500}`, testutil.TestIDs.Provider1)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(r, http.MethodPost, "/services", `{"service_id":"1","price":900}`, testutil.TestIDs.Provider2)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUseServiceEndpoint(t *testing.T) {
	_, r := newTestHandler(t)
	doRequest(r, http.MethodPost, "/services", `{"service_id":"7","price":400}`, testutil.TestIDs.Provider1)

	rec := doRequest(r, http.MethodPost, "/services/7/use", `{"payment":450}`, testutil.TestIDs.Buyer1)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UseServiceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(400), resp.Charged)
	assert.Equal(t, uint64(50), resp.Refunded)
	assert.Equal(t, uint64(1), resp.UsageCount)
}

func TestUseServiceUnderpaymentIsPaymentRequired(t *testing.T) {
	_, r := newTestHandler(t)
	doRequest(r, http.MethodPost, "/services", `{"service_id":"7","price":400}`, testutil.TestIDs.Provider1)

	rec := doRequest(r, http.MethodPost, "/services/7/use", `{"payment":399}`, testutil.TestIDs.Buyer1)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient_payment")
}

func TestGetServiceEndpoint(t *testing.T) {
	_, r := newTestHandler(t)
	doRequest(r, http.MethodPost, "/services", `{"service_id":"7","price":400}`, testutil.TestIDs.Provider1)

	rec := doRequest(r, http.MethodGet, "/services/7", "", domain.Account{})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodGet, "/services/8", "", domain.Account{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(r, http.MethodGet, "/services/not-a-number", "", domain.Account{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceCountEndpoint(t *testing.T) {
	_, r := newTestHandler(t)
	doRequest(r, http.MethodPost, "/services", `{"service_id":"1","price":100}`, testutil.TestIDs.Provider1)
	doRequest(r, http.MethodPost, "/services", `{"service_id":"2","price":100}`, testutil.TestIDs.Provider2)

	rec := doRequest(r, http.MethodGet, "/services/count", "", domain.Account{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ServiceCountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(2), resp.Count)
}

func TestWithdrawAndBalanceEndpoints(t *testing.T) {
	_, r := newTestHandler(t)
	doRequest(r, http.MethodPost, "/services", `{"service_id":"1","price":300}`, testutil.TestIDs.Provider1)
	doRequest(r, http.MethodPost, "/services/1/use", `{"payment":300}`, testutil.TestIDs.Buyer1)

	rec := doRequest(r, http.MethodGet, "/ledger/balance", "", testutil.TestIDs.Provider1)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
	assert.Equal(t, uint64(300), balance.Balance)

	rec = doRequest(r, http.MethodPost, "/ledger/withdraw", "", testutil.TestIDs.Provider1)
	require.Equal(t, http.StatusOK, rec.Code)
	var withdraw WithdrawResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &withdraw))
	assert.Equal(t, uint64(300), withdraw.Amount)

	// A drained balance cannot be withdrawn again.
	rec = doRequest(r, http.MethodPost, "/ledger/withdraw", "", testutil.TestIDs.Provider1)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "zero_balance")
}

func TestQuoteEndpoint(t *testing.T) {
	_, r := newTestHandler(t)
	doRequest(r, http.MethodPost, "/services", `{"service_id":"9","price":750}`, testutil.TestIDs.Provider2)

	rec := doRequest(r, http.MethodGet, "/registry/services/9", "", domain.Account{})
	require.Equal(t, http.StatusOK, rec.Code)
	var quote struct {
		Price    uint64 `json:"price"`
		Provider string `json:"provider"`
		Exists   bool   `json:"exists"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.True(t, quote.Exists)
	assert.Equal(t, uint64(750), quote.Price)
	assert.Equal(t, testutil.TestIDs.Provider2.String(), quote.Provider)

	// Unknown services report non-existence without an error status.
	rec = doRequest(r, http.MethodGet, "/registry/services/10", "", domain.Account{})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.False(t, quote.Exists)
}
