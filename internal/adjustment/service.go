package adjustment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-billing/internal/shared"
)

// idempotencyModule namespaces charge keys in the shared key store.
const idempotencyModule = "billing.charge"

// SubmissionStatus records the outcome of a charge request.
type SubmissionStatus string

const (
	// StatusSubmitted means the billing API accepted the charge.
	StatusSubmitted SubmissionStatus = "submitted"
	// StatusFailed means the billing API call returned an error.
	StatusFailed SubmissionStatus = "failed"
)

// Submission is the journal entry kept for every charge request.
type Submission struct {
	ID             uuid.UUID        `json:"id"`
	IdempotencyKey string           `json:"idempotency_key"`
	AccountCode    string           `json:"account_code"`
	AmountInCents  int              `json:"amount_in_cents"`
	Quantity       int              `json:"quantity"`
	Currency       string           `json:"currency"`
	Description    string           `json:"description"`
	AccountingCode string           `json:"accounting_code,omitempty"`
	Status         SubmissionStatus `json:"status"`
	Error          string           `json:"error,omitempty"`
	SubmittedAt    time.Time        `json:"submitted_at"`
}

// Journal persists submissions.
type Journal interface {
	Record(ctx context.Context, sub Submission) error
	ListByAccount(ctx context.Context, accountCode string, limit int) ([]Submission, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// KeyStore reserves idempotency keys.
type KeyStore interface {
	Reserve(ctx context.Context, module, key string) error
	Release(ctx context.Context, module, key string) error
}

// Service orchestrates charge submission: validation, idempotency, the remote
// call and journaling.
type Service struct {
	transport Transport
	journal   Journal
	keys      KeyStore
	logger    *slog.Logger
	validate  *validator.Validate
	inflight  singleflight.Group
	now       func() time.Time
}

// NewService constructs the service. journal and keys may be nil.
func NewService(transport Transport, journal Journal, keys KeyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		transport: transport,
		journal:   journal,
		keys:      keys,
		logger:    logger,
		validate:  newValidator(),
		now:       time.Now,
	}
}

// Charge validates in and posts it to the billing API exactly once per
// idempotency key. Concurrent calls sharing a key share one result.
func (s *Service) Charge(ctx context.Context, in ChargeInput) (Submission, error) {
	in = in.normalize()
	if err := validateInput(s.validate, in); err != nil {
		return Submission{}, err
	}
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = uuid.NewString()
	}

	v, err, _ := s.inflight.Do(in.IdempotencyKey, func() (interface{}, error) {
		return s.charge(ctx, in)
	})
	if err != nil {
		return Submission{}, err
	}
	return v.(Submission), nil
}

func (s *Service) charge(ctx context.Context, in ChargeInput) (Submission, error) {
	if s.keys != nil {
		if err := s.keys.Reserve(ctx, idempotencyModule, in.IdempotencyKey); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Submission{}, ErrDuplicateRequest
			}
			return Submission{}, fmt.Errorf("adjustment: reserve idempotency key: %w", err)
		}
	}

	sub := Submission{
		ID:             uuid.New(),
		IdempotencyKey: in.IdempotencyKey,
		AccountCode:    in.AccountCode,
		AmountInCents:  in.AmountInCents,
		Quantity:       in.Quantity,
		Currency:       in.Currency,
		Description:    in.Description,
		AccountingCode: in.AccountingCode,
		SubmittedAt:    s.now().UTC(),
	}
	if sub.Currency == "" {
		sub.Currency = DefaultCurrency
	}

	adj, err := Charge(ctx, s.transport, in.AccountCode, ChargeParams{
		AmountInCents:  in.AmountInCents,
		Quantity:       in.Quantity,
		Description:    in.Description,
		Currency:       in.Currency,
		AccountingCode: in.AccountingCode,
	})
	if err != nil {
		if s.keys != nil {
			if relErr := s.keys.Release(ctx, idempotencyModule, in.IdempotencyKey); relErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", in.IdempotencyKey), slog.Any("error", relErr))
			}
		}
		sub.Status = StatusFailed
		sub.Error = err.Error()
		s.record(ctx, sub)
		return Submission{}, err
	}

	if start, ok := adj.StartDate(); ok {
		sub.SubmittedAt = start
	}
	sub.Status = StatusSubmitted
	s.record(ctx, sub)
	s.logger.Info("charge submitted",
		slog.String("account", sub.AccountCode),
		slog.Int("amount_in_cents", sub.AmountInCents),
		slog.Int("quantity", sub.Quantity),
		slog.String("idempotency_key", sub.IdempotencyKey),
	)
	return sub, nil
}

// record journals sub. The remote call already happened, so journal failures
// are logged rather than returned.
func (s *Service) record(ctx context.Context, sub Submission) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, sub); err != nil {
		s.logger.Error("journal charge submission",
			slog.String("id", sub.ID.String()),
			slog.String("status", string(sub.Status)),
			slog.Any("error", err),
		)
	}
}

// History returns journaled submissions for an account, newest first.
func (s *Service) History(ctx context.Context, accountCode string, limit int) ([]Submission, error) {
	if accountCode == "" {
		return nil, fmt.Errorf("%w: account code is required", ErrInvalidCharge)
	}
	if s.journal == nil {
		return nil, errors.New("adjustment: journal not configured")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.journal.ListByAccount(ctx, accountCode, limit)
}

// Remote lists the adjustments the billing API holds for an account.
func (s *Service) Remote(ctx context.Context, accountCode string) ([]Adjustment, error) {
	return ListForAccount(ctx, s.transport, accountCode, WithLogger(s.logger))
}

// PruneJournal removes submissions older than retention.
func (s *Service) PruneJournal(ctx context.Context, retention time.Duration) (int64, error) {
	if s.journal == nil {
		return 0, nil
	}
	return s.journal.Prune(ctx, s.now().Add(-retention))
}
