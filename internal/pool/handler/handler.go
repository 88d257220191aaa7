package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"poolpay/contracts/registry"
	"poolpay/internal/pool/models"
	"poolpay/internal/pool/service"
	"poolpay/pkg/accesswindow"
	"poolpay/pkg/domain"
	dErrors "poolpay/pkg/domain-errors"
	"poolpay/pkg/platform/httputil"
)

// PoolService defines the interface for pool operations used by handlers.
type PoolService interface {
	CreatePool(ctx context.Context, operator domain.Account, id domain.PoolID, price uint64, feeBps uint32, accessDuration uint64, affiliate domain.Account, members []service.MemberSpec) (*models.Pool, error)
	AddMember(ctx context.Context, caller domain.Account, id domain.PoolID, key models.MemberKey, shares uint64) error
	RemoveMember(ctx context.Context, caller domain.Account, id domain.PoolID, key models.MemberKey) error
	SetShares(ctx context.Context, caller domain.Account, id domain.PoolID, key models.MemberKey, shares uint64) error
	Pause(ctx context.Context, caller domain.Account, id domain.PoolID) error
	Unpause(ctx context.Context, caller domain.Account, id domain.PoolID) error
	PurchasePool(ctx context.Context, buyer domain.Account, id domain.PoolID, payment uint64) (*models.PurchaseReceipt, error)
	HasPoolAccess(ctx context.Context, account domain.Account, id domain.PoolID) (bool, uint64, error)
	Withdraw(ctx context.Context, account domain.Account) (uint64, error)
	GetPool(ctx context.Context, id domain.PoolID) (*models.Pool, error)
	GetPoolMembersDetailed(ctx context.Context, id domain.PoolID) ([]models.MemberQuote, error)
	PoolCount(ctx context.Context) (uint64, error)
	Balance(account domain.Account) uint64
	Query(ctx context.Context, id domain.ServiceID) (uint64, domain.Account, bool, error)
}

// Handler handles HTTP requests for pool management, purchases, and payouts.
type Handler struct {
	service PoolService
	logger  *slog.Logger
}

// New creates a new pool handler.
func New(service PoolService, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the handler routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/pools", h.HandleCreatePool)
	r.Get("/pools/count", h.HandlePoolCount)
	r.Get("/pools/{poolID}", h.HandleGetPool)
	r.Get("/pools/{poolID}/members", h.HandleListMembers)
	r.Post("/pools/{poolID}/members", h.HandleAddMember)
	r.Post("/pools/{poolID}/members/remove", h.HandleRemoveMember)
	r.Post("/pools/{poolID}/members/shares", h.HandleSetShares)
	r.Post("/pools/{poolID}/pause", h.HandlePause)
	r.Post("/pools/{poolID}/unpause", h.HandleUnpause)
	r.Post("/pools/{poolID}/purchase", h.HandlePurchase)
	r.Get("/pools/{poolID}/access", h.HandleAccess)
	r.Post("/pools/withdraw", h.HandleWithdraw)
	r.Get("/pools/balance", h.HandleBalance)
}

// RegisterQuoteRoute mounts the cross-registry quote endpoint, which lets
// other pools compose this host's pools as members.
func (h *Handler) RegisterQuoteRoute(r chi.Router) {
	r.Get("/registry/pools/{poolID}", h.HandleQuote)
}

// MemberPayload names one member in requests and responses.
type MemberPayload struct {
	Registry  string `json:"registry"`
	ServiceID string `json:"service_id"`
	Shares    uint64 `json:"shares"`
}

func (p *MemberPayload) toSpec() (service.MemberSpec, error) {
	registryRef, err := domain.ParseRegistryRef(p.Registry)
	if err != nil {
		return service.MemberSpec{}, err
	}
	serviceID, err := domain.ParseServiceID(p.ServiceID)
	if err != nil {
		return service.MemberSpec{}, err
	}
	return service.MemberSpec{
		Key:    models.MemberKey{Registry: registryRef, ServiceID: serviceID},
		Shares: p.Shares,
	}, nil
}

// CreatePoolRequest is the request body for pool creation.
type CreatePoolRequest struct {
	PoolID         string          `json:"pool_id"`
	Price          uint64          `json:"price"`
	OperatorFeeBps uint32          `json:"operator_fee_bps"`
	AccessDuration uint64          `json:"access_duration"`
	Affiliate      string          `json:"affiliate,omitempty"`
	Members        []MemberPayload `json:"members,omitempty"`
}

// Validate validates the creation request using domain primitives.
func (r *CreatePoolRequest) Validate() error {
	if _, err := domain.ParsePoolID(r.PoolID); err != nil {
		return err
	}
	if r.Price == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "price must be positive")
	}
	if r.Affiliate != "" {
		if _, err := domain.ParseAccount(r.Affiliate); err != nil {
			return err
		}
	}
	for i := range r.Members {
		if _, err := r.Members[i].toSpec(); err != nil {
			return err
		}
	}
	return nil
}

// PoolResponse is the response body for pool reads and creation.
type PoolResponse struct {
	PoolID         string `json:"pool_id"`
	Operator       string `json:"operator"`
	Affiliate      string `json:"affiliate,omitempty"`
	Price          uint64 `json:"price"`
	OperatorFeeBps uint32 `json:"operator_fee_bps"`
	AccessDuration uint64 `json:"access_duration"`
	Paused         bool   `json:"paused"`
	TotalShares    uint64 `json:"total_shares"`
	UsageCount     uint64 `json:"usage_count"`
	CreatedAt      string `json:"created_at"`
}

func toPoolResponse(pool *models.Pool) PoolResponse {
	resp := PoolResponse{
		PoolID:         pool.ID.String(),
		Operator:       pool.Operator.String(),
		Price:          pool.Price,
		OperatorFeeBps: pool.OperatorFeeBps,
		AccessDuration: pool.AccessDuration,
		Paused:         pool.Paused,
		TotalShares:    pool.TotalShares,
		UsageCount:     pool.UsageCount,
		CreatedAt:      pool.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if !pool.Affiliate.IsZero() {
		resp.Affiliate = pool.Affiliate.String()
	}
	return resp
}

// HandleCreatePool handles POST /pools requests.
func (h *Handler) HandleCreatePool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	operator, err := httputil.RequireAccount(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreatePoolRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	poolID, _ := domain.ParsePoolID(req.PoolID)
	var affiliate domain.Account
	if req.Affiliate != "" {
		affiliate, _ = domain.ParseAccount(req.Affiliate)
	}
	members := make([]service.MemberSpec, 0, len(req.Members))
	for i := range req.Members {
		spec, _ := req.Members[i].toSpec()
		members = append(members, spec)
	}

	pool, err := h.service.CreatePool(ctx, operator, poolID, req.Price, req.OperatorFeeBps, req.AccessDuration, affiliate, members)
	if err != nil {
		h.logger.ErrorContext(ctx, "pool creation failed",
			"pool_id", req.PoolID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toPoolResponse(pool))
}

// HandleGetPool handles GET /pools/{poolID} requests.
func (h *Handler) HandleGetPool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	poolID, err := domain.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pool, err := h.service.GetPool(ctx, poolID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPoolResponse(pool))
}

// MemberDetailResponse is one member joined with its live registry answer.
type MemberDetailResponse struct {
	Registry  string `json:"registry"`
	ServiceID string `json:"service_id"`
	Shares    uint64 `json:"shares"`
	Price     uint64 `json:"price"`
	Provider  string `json:"provider,omitempty"`
	Exists    bool   `json:"exists"`
}

// HandleListMembers handles GET /pools/{poolID}/members requests.
func (h *Handler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	poolID, err := domain.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	detailed, err := h.service.GetPoolMembersDetailed(ctx, poolID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	members := make([]MemberDetailResponse, 0, len(detailed))
	for _, d := range detailed {
		member := MemberDetailResponse{
			Registry:  d.Key.Registry.String(),
			ServiceID: d.Key.ServiceID.String(),
			Shares:    d.Shares,
			Price:     d.Price,
			Exists:    d.Exists,
		}
		if d.Exists {
			member.Provider = d.Provider.String()
		}
		members = append(members, member)
	}
	httputil.WriteJSON(w, http.StatusOK, members)
}

// HandleAddMember handles POST /pools/{poolID}/members requests.
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	h.memberMutation(w, r, func(ctx context.Context, caller domain.Account, poolID domain.PoolID, spec service.MemberSpec) error {
		return h.service.AddMember(ctx, caller, poolID, spec.Key, spec.Shares)
	})
}

// HandleRemoveMember handles POST /pools/{poolID}/members/remove requests.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	h.memberMutation(w, r, func(ctx context.Context, caller domain.Account, poolID domain.PoolID, spec service.MemberSpec) error {
		return h.service.RemoveMember(ctx, caller, poolID, spec.Key)
	})
}

// HandleSetShares handles POST /pools/{poolID}/members/shares requests.
func (h *Handler) HandleSetShares(w http.ResponseWriter, r *http.Request) {
	h.memberMutation(w, r, func(ctx context.Context, caller domain.Account, poolID domain.PoolID, spec service.MemberSpec) error {
		return h.service.SetShares(ctx, caller, poolID, spec.Key, spec.Shares)
	})
}

func (h *Handler) memberMutation(w http.ResponseWriter, r *http.Request, mutate func(context.Context, domain.Account, domain.PoolID, service.MemberSpec) error) {
	ctx := r.Context()

	caller, err := httputil.RequireAccount(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	poolID, err := domain.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	payload, ok := httputil.DecodeJSON[MemberPayload](w, r, h.logger, ctx)
	if !ok {
		return
	}
	spec, err := payload.toSpec()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := mutate(ctx, caller, poolID, spec); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePause handles POST /pools/{poolID}/pause requests.
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.pauseMutation(w, r, h.service.Pause)
}

// HandleUnpause handles POST /pools/{poolID}/unpause requests.
func (h *Handler) HandleUnpause(w http.ResponseWriter, r *http.Request) {
	h.pauseMutation(w, r, h.service.Unpause)
}

func (h *Handler) pauseMutation(w http.ResponseWriter, r *http.Request, mutate func(context.Context, domain.Account, domain.PoolID) error) {
	ctx := r.Context()

	caller, err := httputil.RequireAccount(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	poolID, err := domain.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := mutate(ctx, caller, poolID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PurchaseRequest is the request body for a pool purchase.
type PurchaseRequest struct {
	Payment uint64 `json:"payment"`
}

// PurchaseResponse is the response body for a settled purchase.
type PurchaseResponse struct {
	PoolID      string `json:"pool_id"`
	Charged     uint64 `json:"charged"`
	Refunded    uint64 `json:"refunded"`
	OperatorCut uint64 `json:"operator_cut"`
	Distributed uint64 `json:"distributed"`
	UsageCount  uint64 `json:"usage_count"`
	ExpiresAt   string `json:"expires_at"`
	Permanent   bool   `json:"permanent"`
}

// HandlePurchase handles POST /pools/{poolID}/purchase requests.
func (h *Handler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buyer, err := httputil.RequireAccount(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	poolID, err := domain.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[PurchaseRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	receipt, err := h.service.PurchasePool(ctx, buyer, poolID, req.Payment)
	if err != nil {
		h.logger.WarnContext(ctx, "pool purchase failed",
			"pool_id", poolID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, PurchaseResponse{
		PoolID:      receipt.PoolID.String(),
		Charged:     receipt.Charged,
		Refunded:    receipt.Refunded,
		OperatorCut: receipt.OperatorCut,
		Distributed: receipt.Distributed,
		UsageCount:  receipt.UsageCount,
		ExpiresAt:   formatExpiry(receipt.ExpiresAt),
		Permanent:   receipt.ExpiresAt == accesswindow.Permanent,
	})
}

// AccessResponse is the response body for an access check.
type AccessResponse struct {
	PoolID    string `json:"pool_id"`
	HasAccess bool   `json:"has_access"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Permanent bool   `json:"permanent"`
}

// HandleAccess handles GET /pools/{poolID}/access requests.
func (h *Handler) HandleAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := httputil.RequireAccount(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	poolID, err := domain.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	hasAccess, expiresAt, err := h.service.HasPoolAccess(ctx, account, poolID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := AccessResponse{
		PoolID:    poolID.String(),
		HasAccess: hasAccess,
		Permanent: expiresAt == accesswindow.Permanent,
	}
	if expiresAt != 0 {
		resp.ExpiresAt = formatExpiry(expiresAt)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// WithdrawResponse is the response body for a successful payout.
type WithdrawResponse struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// HandleWithdraw handles POST /pools/withdraw requests.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := httputil.RequireAccount(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	amount, err := h.service.Withdraw(ctx, account)
	if err != nil {
		h.logger.WarnContext(ctx, "pool withdrawal failed",
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

// HandleBalance handles GET /pools/balance requests.
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

// PoolCountResponse is the response body for the pool count.
type PoolCountResponse struct {
	Count uint64 `json:"count"`
}

// HandlePoolCount handles GET /pools/count requests.
func (h *Handler) HandlePoolCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := h.service.PoolCount(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PoolCountResponse{Count: count})
}

// HandleQuote handles GET /registry/pools/{poolID} requests.
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	poolID, err := domain.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	price, operator, exists, err := h.service.Query(ctx, domain.ServiceID(poolID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	quote := registry.ServiceQuote{Exists: exists}
	if exists {
		quote.Price = price
		quote.Provider = operator.String()
	}
	httputil.WriteJSON(w, http.StatusOK, quote)
}

// formatExpiry renders a unix-second expiry, with the permanent sentinel
// spelled out.
func formatExpiry(expiresAt uint64) string {
	if expiresAt == accesswindow.Permanent {
		return "permanent"
	}
	return strconv.FormatUint(expiresAt, 10)
}
