package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-billing/internal/adjustment"
	"github.com/odyssey-erp/odyssey-billing/internal/platform/billingapi"
	"github.com/odyssey-erp/odyssey-billing/jobs"
)

type stubService struct {
	got        adjustment.ChargeInput
	chargeErr  error
	history    []adjustment.Submission
	historyLim int
	remote     []adjustment.Adjustment
	remoteErr  error
}

func (s *stubService) Charge(ctx context.Context, in adjustment.ChargeInput) (adjustment.Submission, error) {
	s.got = in
	if s.chargeErr != nil {
		return adjustment.Submission{}, s.chargeErr
	}
	return adjustment.Submission{
		ID:             uuid.New(),
		IdempotencyKey: in.IdempotencyKey,
		AccountCode:    in.AccountCode,
		AmountInCents:  in.AmountInCents,
		Quantity:       in.Quantity,
		Currency:       "USD",
		Description:    in.Description,
		Status:         adjustment.StatusSubmitted,
		SubmittedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (s *stubService) History(ctx context.Context, accountCode string, limit int) ([]adjustment.Submission, error) {
	s.historyLim = limit
	return s.history, nil
}

func (s *stubService) Remote(ctx context.Context, accountCode string) ([]adjustment.Adjustment, error) {
	return s.remote, s.remoteErr
}

type stubQueue struct {
	payloads []jobs.ChargePayload
	err      error
}

func (q *stubQueue) EnqueueCharge(ctx context.Context, payload jobs.ChargePayload) (*asynq.TaskInfo, error) {
	q.payloads = append(q.payloads, payload)
	if q.err != nil {
		return nil, q.err
	}
	return &asynq.TaskInfo{ID: jobs.TaskChargeSubmit + ":" + payload.Charge.IdempotencyKey, Queue: jobs.QueueDefault}, nil
}

// taskQueue builds the real task the worker would receive.
type taskQueue struct {
	task *asynq.Task
}

func (q *taskQueue) EnqueueCharge(ctx context.Context, payload jobs.ChargePayload) (*asynq.TaskInfo, error) {
	task, err := jobs.NewChargeTask(payload)
	if err != nil {
		return nil, err
	}
	q.task = task
	var queued jobs.ChargePayload
	if err := json.Unmarshal(task.Payload(), &queued); err != nil {
		return nil, err
	}
	return &asynq.TaskInfo{ID: jobs.ChargeTaskID(queued.Charge.IdempotencyKey), Queue: jobs.QueueDefault}, nil
}

func newRouter(svc ChargeService, queue Enqueuer) http.Handler {
	r := chi.NewRouter()
	NewHandler(nil, svc, queue).MountRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateChargeSubmitsSynchronously(t *testing.T) {
	svc := &stubService{}
	rec := do(t, newRouter(svc, nil), http.MethodPost, "/accounts/acct1/charges",
		`{"amount_in_cents":1250,"description":"Setup fee","idempotency_key":"body-key"}`, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "acct1", svc.got.AccountCode)
	require.Equal(t, 1, svc.got.Quantity)
	require.Equal(t, "body-key", svc.got.IdempotencyKey)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "12.50", out["amount"])
	require.Equal(t, "submitted", out["status"])
	require.Equal(t, "acct1", out["account_code"])
}

func TestCreateChargeHeaderKeyWins(t *testing.T) {
	svc := &stubService{}
	rec := do(t, newRouter(svc, nil), http.MethodPost, "/accounts/acct1/charges",
		`{"amount_in_cents":100,"quantity":3,"idempotency_key":"body-key"}`,
		map[string]string{"Idempotency-Key": "header-key"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "header-key", svc.got.IdempotencyKey)
	require.Equal(t, 3, svc.got.Quantity)
}

func TestCreateChargeExplicitZeroQuantityReachesValidation(t *testing.T) {
	svc := &stubService{chargeErr: adjustment.ErrInvalidCharge}
	rec := do(t, newRouter(svc, nil), http.MethodPost, "/accounts/acct1/charges", `{"amount_in_cents":100,"quantity":0}`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0, svc.got.Quantity)
}

func TestCreateChargeRejectsMalformedBody(t *testing.T) {
	svc := &stubService{}
	rec := do(t, newRouter(svc, nil), http.MethodPost, "/accounts/acct1/charges", `{"amount":1}`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	require.Empty(t, svc.got.AccountCode)
}

func TestCreateChargeErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", adjustment.ErrInvalidCharge, http.StatusBadRequest},
		{"duplicate", adjustment.ErrDuplicateRequest, http.StatusConflict},
		{"unknown account", &billingapi.StatusError{Method: "POST", Path: "/accounts/x/adjustments", Code: http.StatusNotFound}, http.StatusNotFound},
		{"rejected", &billingapi.StatusError{Method: "POST", Path: "/accounts/x/adjustments", Code: http.StatusUnprocessableEntity}, http.StatusBadGateway},
		{"upstream down", &billingapi.StatusError{Method: "POST", Path: "/accounts/x/adjustments", Code: http.StatusServiceUnavailable}, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{chargeErr: tc.err}
			rec := do(t, newRouter(svc, nil), http.MethodPost, "/accounts/x/charges", `{"amount_in_cents":100}`, nil)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestCreateChargeAsync(t *testing.T) {
	svc := &stubService{}
	queue := &stubQueue{}
	rec := do(t, newRouter(svc, queue), http.MethodPost, "/accounts/acct1/charges?async=1",
		`{"amount_in_cents":700}`, map[string]string{"Idempotency-Key": "k-1"})

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.payloads, 1)
	require.Equal(t, "acct1", queue.payloads[0].Charge.AccountCode)
	require.Equal(t, 700, queue.payloads[0].Charge.AmountInCents)
	require.Empty(t, svc.got.AccountCode)

	var out queuedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "billing:charge:k-1", out.TaskID)
	require.Equal(t, "k-1", out.IdempotencyKey)
	require.Equal(t, jobs.QueueDefault, out.Queue)
}

func TestCreateChargeAsyncEchoesGeneratedKey(t *testing.T) {
	queue := &taskQueue{}
	rec := do(t, newRouter(&stubService{}, queue), http.MethodPost, "/accounts/acct1/charges?async=1",
		`{"amount_in_cents":700}`, nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, queue.task)

	var queued jobs.ChargePayload
	require.NoError(t, json.Unmarshal(queue.task.Payload(), &queued))
	require.NotEmpty(t, queued.Charge.IdempotencyKey)

	var out queuedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, queued.Charge.IdempotencyKey, out.IdempotencyKey)
	require.Equal(t, jobs.ChargeTaskID(queued.Charge.IdempotencyKey), out.TaskID)
}

func TestCreateChargeAsyncDuplicate(t *testing.T) {
	queue := &stubQueue{err: asynq.ErrTaskIDConflict}
	rec := do(t, newRouter(&stubService{}, queue), http.MethodPost, "/accounts/acct1/charges?async=1",
		`{"amount_in_cents":700}`, map[string]string{"Idempotency-Key": "k-1"})

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateChargeAsyncWithoutQueue(t *testing.T) {
	rec := do(t, newRouter(&stubService{}, nil), http.MethodPost, "/accounts/acct1/charges?async=1", `{"amount_in_cents":700}`, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListCharges(t *testing.T) {
	svc := &stubService{history: []adjustment.Submission{
		{AccountCode: "acct1", AmountInCents: 99, Status: adjustment.StatusFailed, Error: "boom"},
	}}
	rec := do(t, newRouter(svc, nil), http.MethodGet, "/accounts/acct1/charges?limit=10", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 10, svc.historyLim)
	var out struct {
		Charges []map[string]any `json:"charges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Charges, 1)
	require.Equal(t, "0.99", out.Charges[0]["amount"])
	require.Equal(t, "failed", out.Charges[0]["status"])
}

func TestListAdjustments(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := &stubService{remote: []adjustment.Adjustment{
		adjustment.NewBuilder().ID("a1").AmountInCents(-450).Currency("EUR").StartDate(start).Build(),
	}}
	rec := do(t, newRouter(svc, nil), http.MethodGet, "/accounts/acct1/adjustments", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Adjustments []adjustmentView `json:"adjustments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Adjustments, 1)
	got := out.Adjustments[0]
	require.Equal(t, "a1", got.ID)
	require.Equal(t, "-4.50", got.Amount)
	require.Equal(t, "EUR", got.Currency)
	require.NotNil(t, got.StartDate)
	require.True(t, got.StartDate.Equal(start))
	require.Nil(t, got.EndDate)
}

func TestListAdjustmentsUnknownAccount(t *testing.T) {
	svc := &stubService{remoteErr: &billingapi.StatusError{Method: "GET", Path: "/accounts/nope/adjustments", Code: http.StatusNotFound}}
	rec := do(t, newRouter(svc, nil), http.MethodGet, "/accounts/nope/adjustments", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDisplayAmount(t *testing.T) {
	require.Equal(t, "12.50", DisplayAmount(1250))
	require.Equal(t, "0.05", DisplayAmount(5))
	require.Equal(t, "-3.00", DisplayAmount(-300))
	require.Equal(t, "0.00", DisplayAmount(0))
}
