package routines

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/voice-planner/internal/logger"
	"github.com/benvon/voice-planner/internal/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// DefaultExpiringWindowDays is how many days before expiry a routine is surfaced for renewal
	DefaultExpiringWindowDays = 7
	// maxCASAttempts bounds retries when a concurrent update wins a compare-and-set
	maxCASAttempts = 3
	// maxRollMonths bounds how far an expired routine is rolled forward in one renewal
	maxRollMonths = 1200
)

var (
	// ErrConcurrentUpdate is returned when a routine kept changing under a compare-and-set
	ErrConcurrentUpdate = errors.New("routine was modified concurrently")
	// ErrNotFound is returned by stores when a routine does not exist
	ErrNotFound = errors.New("routine not found")
)

// Store is the persistence a lifecycle needs. Every mutation is a
// compare-and-set on expires_at so sweeps and user decisions never overwrite
// each other; a false result means the expectation no longer held.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Routine, error)
	// ListDue returns active routines with expires_at before now, optionally for one user
	ListDue(ctx context.Context, userID *uuid.UUID, now time.Time) ([]*models.Routine, error)
	// ListExpiring returns active routines with now <= expires_at <= until and no renewal_asked_at
	ListExpiring(ctx context.Context, userID *uuid.UUID, now, until time.Time) ([]*models.Routine, error)
	// CompareAndRenew sets expires_at to next and clears renewal_asked_at
	CompareAndRenew(ctx context.Context, id uuid.UUID, expected, next time.Time) (bool, error)
	// CompareAndDeactivate clears is_active on a still-active routine
	CompareAndDeactivate(ctx context.Context, id uuid.UUID, expected time.Time) (bool, error)
	// CompareAndMarkAsked stamps renewal_asked_at
	CompareAndMarkAsked(ctx context.Context, id uuid.UUID, expected, at time.Time) (bool, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// SweepFailure records one routine the sweep could not process
type SweepFailure struct {
	RoutineID uuid.UUID `json:"routineId"`
	Error     string    `json:"error"`
}

// SweepReport summarizes one lifecycle sweep
type SweepReport struct {
	Renewed     int            `json:"renewed"`
	Deactivated int            `json:"deactivated"`
	Skipped     int            `json:"skipped"`
	Failed      int            `json:"failed"`
	Failures    []SweepFailure `json:"failures,omitempty"`
}

// Lifecycle drives routine expiration, automatic renewal and renewal prompts
type Lifecycle struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	window time.Duration
}

// LifecycleOption configures a Lifecycle
type LifecycleOption func(*Lifecycle)

// WithClock overrides the time source
func WithClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) { l.now = now }
}

// WithExpiringWindow overrides how long before expiry routines are surfaced
func WithExpiringWindow(days int) LifecycleOption {
	return func(l *Lifecycle) {
		if days > 0 {
			l.window = time.Duration(days) * 24 * time.Hour
		}
	}
}

// NewLifecycle creates a lifecycle manager over store
func NewLifecycle(store Store, log *zap.Logger, opts ...LifecycleOption) *Lifecycle {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Lifecycle{
		store:  store,
		logger: log,
		now:    time.Now,
		window: DefaultExpiringWindowDays * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NextExpiry extends current by one month, repeating until the result is after now.
// It never returns a value before current.
func NextExpiry(current, now time.Time) time.Time {
	next := current.AddDate(0, 1, 0)
	for i := 0; i < maxRollMonths && !next.After(now); i++ {
		next = next.AddDate(0, 1, 0)
	}
	return next
}

// Sweep renews or deactivates every active routine whose expiry has passed,
// for one user or for everyone when userID is nil. Each routine is processed
// independently; a failure is logged and recorded, then the sweep continues.
// The error is non-nil only when the due set could not be loaded.
func (l *Lifecycle) Sweep(ctx context.Context, userID *uuid.UUID) (*SweepReport, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "routines.sweep")
	defer span.End()

	now := l.now()
	due, err := l.store.ListDue(ctx, userID, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list due routines")
		return nil, fmt.Errorf("failed to list due routines: %w", err)
	}

	report := &SweepReport{}
	for _, r := range due {
		outcome, err := l.settle(ctx, r, now)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, SweepFailure{RoutineID: r.ID, Error: err.Error()})
			l.logger.Error("routine_sweep_failed",
				zap.String("routine_id", r.ID.String()),
				zap.String("user_id", r.UserID.String()),
				zap.Error(err),
			)
			continue
		}
		switch outcome {
		case outcomeRenewed:
			report.Renewed++
		case outcomeDeactivated:
			report.Deactivated++
		default:
			report.Skipped++
		}
	}

	span.SetAttributes(
		attribute.Int("routines.due", len(due)),
		attribute.Int("routines.renewed", report.Renewed),
		attribute.Int("routines.deactivated", report.Deactivated),
		attribute.Int("routines.failed", report.Failed),
	)
	l.logger.Info("routine_sweep_completed",
		zap.Int("due", len(due)),
		zap.Int("renewed", report.Renewed),
		zap.Int("deactivated", report.Deactivated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeRenewed
	outcomeDeactivated
)

// settle applies the expiry transition to one routine, reloading it when a
// concurrent update invalidates the compare-and-set.
func (l *Lifecycle) settle(ctx context.Context, r *models.Routine, now time.Time) (outcome, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if !r.IsActive || !r.ExpiresAt.Before(now) {
			return outcomeSkipped, nil
		}

		var ok bool
		var err error
		if r.AutoRenew {
			next := NextExpiry(r.ExpiresAt, now)
			ok, err = l.store.CompareAndRenew(ctx, r.ID, r.ExpiresAt, next)
			if err != nil {
				return outcomeSkipped, fmt.Errorf("failed to renew routine: %w", err)
			}
			if ok {
				l.logger.Info("routine_auto_renewed",
					zap.String("routine_id", r.ID.String()),
					zap.Time("expires_at", next),
				)
				return outcomeRenewed, nil
			}
		} else {
			ok, err = l.store.CompareAndDeactivate(ctx, r.ID, r.ExpiresAt)
			if err != nil {
				return outcomeSkipped, fmt.Errorf("failed to deactivate routine: %w", err)
			}
			if ok {
				l.logger.Info("routine_deactivated_on_expiry",
					zap.String("routine_id", r.ID.String()),
				)
				return outcomeDeactivated, nil
			}
		}

		fresh, err := l.store.GetByID(ctx, r.ID)
		if errors.Is(err, ErrNotFound) {
			return outcomeSkipped, nil
		}
		if err != nil {
			return outcomeSkipped, fmt.Errorf("failed to reload routine: %w", err)
		}
		r = fresh
	}
	return outcomeSkipped, ErrConcurrentUpdate
}

// ExpiringSoon lists routines that expire within the window and have not been
// surfaced in the current cycle. A nil userID lists them for every user.
func (l *Lifecycle) ExpiringSoon(ctx context.Context, userID *uuid.UUID) ([]models.ExpiringRoutine, error) {
	now := l.now()
	routines, err := l.store.ListExpiring(ctx, userID, now, now.Add(l.window))
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring routines: %w", err)
	}
	out := make([]models.ExpiringRoutine, 0, len(routines))
	for _, r := range routines {
		out = append(out, models.ExpiringRoutine{
			ID:        r.ID,
			UserID:    r.UserID,
			Title:     r.Title,
			ExpiresAt: r.ExpiresAt,
			AutoRenew: r.AutoRenew,
		})
	}
	return out, nil
}

// Renew extends the routine by one month from its current expiry and restarts
// the renewal prompt cycle. Renewing twice extends twice. An already expired
// routine is rolled forward until it lies in the future.
func (l *Lifecycle) Renew(ctx context.Context, id uuid.UUID) (*models.Routine, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		r, err := l.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		next := NextExpiry(r.ExpiresAt, l.now())
		ok, err := l.store.CompareAndRenew(ctx, id, r.ExpiresAt, next)
		if err != nil {
			return nil, fmt.Errorf("failed to renew routine: %w", err)
		}
		if ok {
			r.ExpiresAt = next
			r.RenewalAskedAt = nil
			l.logger.Info("routine_renewed",
				zap.String("routine_id", id.String()),
				zap.Time("expires_at", next),
			)
			return r, nil
		}
	}
	return nil, ErrConcurrentUpdate
}

// MarkRenewalAsked records that the user declined renewal in the current cycle.
// If the routine was renewed meanwhile the new cycle is left untouched.
func (l *Lifecycle) MarkRenewalAsked(ctx context.Context, id uuid.UUID) error {
	r, err := l.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	ok, err := l.store.CompareAndMarkAsked(ctx, id, r.ExpiresAt, l.now())
	if err != nil {
		return fmt.Errorf("failed to mark renewal asked: %w", err)
	}
	if !ok {
		l.logger.Debug("renewal_mark_skipped_cycle_changed",
			zap.String("routine_id", id.String()),
		)
	}
	return nil
}

// Deactivate turns the routine off regardless of its expiry
func (l *Lifecycle) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := l.store.SetActive(ctx, id, false); err != nil {
		return fmt.Errorf("failed to deactivate routine: %w", err)
	}
	l.logger.Info("routine_deactivated", zap.String("routine_id", id.String()))
	return nil
}

// Reactivate turns a routine back on. A routine whose expiry has passed is
// renewed so it generates tasks again at once.
func (l *Lifecycle) Reactivate(ctx context.Context, id uuid.UUID) (*models.Routine, error) {
	if err := l.store.SetActive(ctx, id, true); err != nil {
		return nil, fmt.Errorf("failed to reactivate routine: %w", err)
	}
	r, err := l.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.ExpiresAt.After(l.now()) {
		return l.Renew(ctx, id)
	}
	return r, nil
}

// ApplyDecision renews or declines a single surfaced routine
func (l *Lifecycle) ApplyDecision(ctx context.Context, d models.RenewalDecision) error {
	if d.Renew {
		_, err := l.Renew(ctx, d.RoutineID)
		return err
	}
	return l.MarkRenewalAsked(ctx, d.RoutineID)
}

// ApplyDecisions applies every decision independently and joins the failures
func (l *Lifecycle) ApplyDecisions(ctx context.Context, decisions []models.RenewalDecision) error {
	var errs []error
	for _, d := range decisions {
		if err := l.ApplyDecision(ctx, d); err != nil {
			l.logger.Warn("renewal_decision_failed",
				zap.String("routine_id", d.RoutineID.String()),
				zap.Bool("renew", d.Renew),
				zap.String("error", logger.SanitizeError(err)),
			)
			errs = append(errs, fmt.Errorf("routine %s: %w", d.RoutineID, err))
		}
	}
	return errors.Join(errs...)
}

const tracerName = "github.com/benvon/voice-planner/internal/routines"
