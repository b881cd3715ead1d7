package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-billing/internal/adjustment"
	"github.com/odyssey-erp/odyssey-billing/internal/platform/billingapi"
	"github.com/odyssey-erp/odyssey-billing/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-billing/jobs"
)

const (
	chargeRateLimit  = 30
	chargeRateWindow = time.Minute
)

// ChargeService is the subset of adjustment.Service used by the handler.
type ChargeService interface {
	Charge(ctx context.Context, in adjustment.ChargeInput) (adjustment.Submission, error)
	History(ctx context.Context, accountCode string, limit int) ([]adjustment.Submission, error)
	Remote(ctx context.Context, accountCode string) ([]adjustment.Adjustment, error)
}

// Enqueuer schedules charges for the worker.
type Enqueuer interface {
	EnqueueCharge(ctx context.Context, payload jobs.ChargePayload) (*asynq.TaskInfo, error)
}

// Handler exposes the charges API.
type Handler struct {
	logger  *slog.Logger
	service ChargeService
	queue   Enqueuer
}

// NewHandler builds the handler. queue may be nil, which disables async
// submission.
func NewHandler(logger *slog.Logger, service ChargeService, queue Enqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, queue: queue}
}

// MountRoutes registers the account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(chargeRateLimit, chargeRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
		}),
	)
	r.Route("/accounts/{code}", func(r chi.Router) {
		r.With(limiter).Post("/charges", h.createCharge)
		r.Get("/charges", h.listCharges)
		r.Get("/adjustments", h.listAdjustments)
	})
}

type chargeRequest struct {
	AmountInCents  int    `json:"amount_in_cents"`
	Quantity       *int   `json:"quantity"`
	Description    string `json:"description"`
	Currency       string `json:"currency"`
	AccountingCode string `json:"accounting_code"`
	IdempotencyKey string `json:"idempotency_key"`
}

type queuedResponse struct {
	TaskID         string `json:"task_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Queue          string `json:"queue"`
}

func (h *Handler) createCharge(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	in := adjustment.ChargeInput{
		AccountCode:    chi.URLParam(r, "code"),
		AmountInCents:  req.AmountInCents,
		Quantity:       adjustment.DefaultQuantity,
		Description:    req.Description,
		Currency:       req.Currency,
		AccountingCode: req.AccountingCode,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.Quantity != nil {
		in.Quantity = *req.Quantity
	}
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		in.IdempotencyKey = key
	}

	if r.URL.Query().Get("async") == "1" {
		h.enqueueCharge(w, r, in)
		return
	}

	sub, err := h.service.Charge(r.Context(), in)
	if err != nil {
		h.logger.Warn("create charge failed", slog.String("account", in.AccountCode), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newSubmissionView(sub))
}

func (h *Handler) enqueueCharge(w http.ResponseWriter, r *http.Request, in adjustment.ChargeInput) {
	if h.queue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "async submission is not configured")
		return
	}
	// echoed in the response so the caller can resubmit with it
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = uuid.NewString()
	}
	info, err := h.queue.EnqueueCharge(r.Context(), jobs.ChargePayload{
		Charge:    in,
		RequestID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			h.respondError(w, adjustment.ErrDuplicateRequest)
			return
		}
		h.logger.Error("enqueue charge", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	out := queuedResponse{IdempotencyKey: in.IdempotencyKey, Queue: jobs.QueueDefault}
	if info != nil {
		out.TaskID = info.ID
		out.Queue = info.Queue
	}
	httpx.JSON(w, http.StatusAccepted, out)
}

func (h *Handler) listCharges(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	subs, err := h.service.History(r.Context(), chi.URLParam(r, "code"), limit)
	if err != nil {
		h.logger.Error("list charges failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	views := make([]submissionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, newSubmissionView(sub))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"charges": views})
}

func (h *Handler) listAdjustments(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Remote(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.logger.Error("list adjustments failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	views := make([]adjustmentView, 0, len(items))
	for _, adj := range items {
		views = append(views, newAdjustmentView(adj))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"adjustments": views})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	httpx.RespondError(w, err,
		httpx.ErrorMapping{Err: adjustment.ErrInvalidCharge, Status: http.StatusBadRequest, Title: "Invalid Charge"},
		httpx.ErrorMapping{Err: adjustment.ErrDuplicateRequest, Status: http.StatusConflict, Title: "Duplicate Request"},
		httpx.ErrorMapping{Err: billingapi.ErrNotFound, Status: http.StatusNotFound, Title: "Account Not Found"},
		httpx.ErrorMapping{Err: billingapi.ErrRejected, Status: http.StatusBadGateway, Title: "Billing API Rejected Request"},
	)
}

// DisplayAmount renders cents in major units, e.g. 1250 -> "12.50".
func DisplayAmount(cents int) string {
	return decimal.New(int64(cents), -2).StringFixed(2)
}

type submissionView struct {
	adjustment.Submission
	Amount string `json:"amount"`
}

func newSubmissionView(sub adjustment.Submission) submissionView {
	return submissionView{Submission: sub, Amount: DisplayAmount(sub.AmountInCents)}
}

type adjustmentView struct {
	ID             string     `json:"id"`
	AmountInCents  int        `json:"amount_in_cents"`
	Amount         string     `json:"amount"`
	Quantity       int        `json:"quantity"`
	Currency       string     `json:"currency"`
	Description    string     `json:"description"`
	AccountingCode string     `json:"accounting_code,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
}

func newAdjustmentView(adj adjustment.Adjustment) adjustmentView {
	id, _ := adj.ID()
	code, _ := adj.AccountingCode()
	v := adjustmentView{
		ID:             id,
		AmountInCents:  adj.AmountInCents(),
		Amount:         DisplayAmount(adj.AmountInCents()),
		Quantity:       adj.Quantity(),
		Currency:       adj.Currency(),
		Description:    adj.Description(),
		AccountingCode: code,
	}
	if start, ok := adj.StartDate(); ok {
		v.StartDate = &start
	}
	if end, ok := adj.EndDate(); ok {
		v.EndDate = &end
	}
	return v
}
