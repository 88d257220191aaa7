package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"poolpay/contracts/registry"
	"poolpay/internal/ledger/models"
	"poolpay/pkg/domain"
	dErrors "poolpay/pkg/domain-errors"
	"poolpay/pkg/platform/httputil"
)

// LedgerService defines the interface for ledger operations used by handlers.
// Methods accept typed accounts and service ids so parsing happens at the edge.
type LedgerService interface {
	RegisterService(ctx context.Context, provider domain.Account, id domain.ServiceID, price uint64) (*models.Service, error)
	UseService(ctx context.Context, caller domain.Account, id domain.ServiceID, payment uint64) (*models.UseReceipt, error)
	Withdraw(ctx context.Context, account domain.Account) (uint64, error)
	GetService(ctx context.Context, id domain.ServiceID) (*models.Service, error)
	ServiceCount(ctx context.Context) (uint64, error)
	Balance(account domain.Account) uint64
	Query(ctx context.Context, id domain.ServiceID) (uint64, domain.Account, bool, error)
}

// Handler handles HTTP requests for service registration, paid use, and payouts.
type Handler struct {
	service LedgerService
	logger  *slog.Logger
}

// New creates a new ledger handler.
func New(service LedgerService, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the handler routes on the given router.
// The registry quote route is unauthenticated; everything else requires a caller account.
func (h *Handler) Register(r chi.Router) {
	r.Post("/services", h.HandleRegisterService)
	r.Get("/services/count", h.HandleServiceCount)
	r.Get("/services/{serviceID}", h.HandleGetService)
	r.Post("/services/{serviceID}/use", h.HandleUseService)
	r.Post("/ledger/withdraw", h.HandleWithdraw)
	r.Get("/ledger/balance", h.HandleBalance)
}

// RegisterQuoteRoute mounts the cross-registry quote endpoint. Pools composing
// services from this registry resolve prices and providers through it.
func (h *Handler) RegisterQuoteRoute(r chi.Router) {
	r.Get("/registry/services/{serviceID}", h.HandleQuote)
}

// RegisterServiceRequest is the request body for service registration.
type RegisterServiceRequest struct {
	ServiceID string `json:"service_id"`
	Price     uint64 `json:"price"`
}

// Validate validates the registration request using domain primitives.
func (r *RegisterServiceRequest) Validate() error {
	if _, err := domain.ParseServiceID(r.ServiceID); err != nil {
		return err
	}
	if r.Price == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "price must be positive")
	}
	return nil
}

// ServiceResponse is the response body for service reads and registration.
type ServiceResponse struct {
	ServiceID  string `json:"service_id"`
	Price      uint64 `json:"price"`
	Provider   string `json:"provider"`
	UsageCount uint64 `json:"usage_count"`
	CreatedAt  string `json:"created_at"`
}

func toServiceResponse(service *models.Service) ServiceResponse {
	return ServiceResponse{
		ServiceID:  service.ID.String(),
		Price:      service.Price,
		Provider:   service.Provider.String(),
		UsageCount: service.UsageCount,
		CreatedAt:  service.CreatedAt.Format(time.RFC3339),
	}
}

// HandleRegisterService handles POST /services requests.
func (h *Handler) HandleRegisterService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	provider, err := httputil.RequireAccount(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RegisterServiceRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	serviceID, _ := domain.ParseServiceID(req.ServiceID)

	service, err := h.service.RegisterService(ctx, provider, serviceID, req.Price)
	if err != nil {
		h.logger.ErrorContext(ctx, "service registration failed",
			"service_id", req.ServiceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toServiceResponse(service))
}

// UseServiceRequest is the request body for a paid service use.
type UseServiceRequest struct {
	Payment uint64 `json:"payment"`
}

// UseServiceResponse is the response body for a settled service use.
type UseServiceResponse struct {
	ServiceID  string `json:"service_id"`
	Provider   string `json:"provider"`
	Charged    uint64 `json:"charged"`
	Refunded   uint64 `json:"refunded"`
	UsageCount uint64 `json:"usage_count"`
}

// HandleUseService handles POST /services/{serviceID}/use requests.
func (h *Handler) HandleUseService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, err := httputil.RequireAccount(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	serviceID, err := domain.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UseServiceRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	receipt, err := h.service.UseService(ctx, caller, serviceID, req.Payment)
	if err != nil {
		h.logger.WarnContext(ctx, "service use failed",
			"service_id", serviceID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, UseServiceResponse{
		ServiceID:  receipt.ServiceID.String(),
		Provider:   receipt.Provider.String(),
		Charged:    receipt.Charged,
		Refunded:   receipt.Refunded,
		UsageCount: receipt.UsageCount,
	})
}

// HandleGetService handles GET /services/{serviceID} requests.
func (h *Handler) HandleGetService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	serviceID, err := domain.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	service, err := h.service.GetService(ctx, serviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toServiceResponse(service))
}

// ServiceCountResponse is the response body for the service count.
type ServiceCountResponse struct {
	Count uint64 `json:"count"`
}

// HandleServiceCount handles GET /services/count requests.
func (h *Handler) HandleServiceCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := h.service.ServiceCount(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ServiceCountResponse{Count: count})
}

// WithdrawResponse is the response body for a successful payout.
type WithdrawResponse struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// HandleWithdraw handles POST /ledger/withdraw requests.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := httputil.RequireAccount(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	amount, err := h.service.Withdraw(ctx, account)
	if err != nil {
		h.logger.WarnContext(ctx, "withdrawal failed",
			"account", account.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, WithdrawResponse{
		Account: account.String(),
		Amount:  amount,
	})
}

// BalanceResponse is the response body for an earnings balance read.
type BalanceResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

// HandleBalance handles GET /ledger/balance requests.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := httputil.RequireAccount(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{
		Account: account.String(),
		Balance: h.service.Balance(account),
	})
}

// HandleQuote handles GET /registry/services/{serviceID} requests.
// Missing services answer with Exists=false rather than 404 so callers can
// distinguish "not registered" from transport failure.
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	serviceID, err := domain.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	price, provider, exists, err := h.service.Query(ctx, serviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	quote := registry.ServiceQuote{Exists: exists}
	if exists {
		quote.Price = price
		quote.Provider = provider.String()
	}
	httputil.WriteJSON(w, http.StatusOK, quote)
}
