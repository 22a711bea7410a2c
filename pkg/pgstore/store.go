package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/gallerybilling/pkg/billing"
	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists users, subscriptions and refunds in PostgreSQL.
type Store struct {
	db DB
}

var _ billing.Store = (*Store)(nil)

// New creates a store on top of an open pool.
func New(db DB) *Store {
	if db == nil {
		panic("pgstore: db cannot be nil")
	}
	return &Store{db: db}
}

const subscriptionColumns = `user_id, plan, status, cancel_at_period_end, pending_plan,
	pending_plan_change_at, processing_change, current_period_end,
	gateway_subscription_id, created_at, updated_at, version`

// FetchUser loads the user row. A missing user yields billing.ErrUserNotFound.
func (s *Store) FetchUser(ctx context.Context, userID uuid.UUID) (subscription.User, error) {
	var (
		u    subscription.User
		tier string
	)
	err := s.db.QueryRow(ctx, `SELECT id, email, plan FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Email, &tier)
	if err != nil {
		if IsNotFoundError(err) {
			return subscription.User{}, billing.ErrUserNotFound
		}
		return subscription.User{}, errors.Join(ErrFailedToQuery, err)
	}
	u.Plan = plan.Tier(tier)
	return u, nil
}

// FetchSubscription returns (nil, nil) for a user who never subscribed.
func (s *Store) FetchSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, nil
		}
		return nil, errors.Join(ErrFailedToQuery, err)
	}
	return rec, nil
}

// FetchNonTerminalRefunds returns the user's pending and approved refunds.
func (s *Store) FetchNonTerminalRefunds(ctx context.Context, userID uuid.UUID) ([]subscription.RefundRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, status, reason, eligibility_details, created_at
		FROM refunds
		WHERE user_id = $1 AND status IN ('pending', 'approved')
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, errors.Join(ErrFailedToQuery, err)
	}
	refunds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (subscription.RefundRecord, error) {
		var (
			r      subscription.RefundRecord
			status string
		)
		if err := row.Scan(&r.ID, &r.UserID, &status, &r.Reason, &r.EligibilityDetails, &r.CreatedAt); err != nil {
			return r, err
		}
		r.Status = subscription.RefundStatus(status)
		return r, nil
	})
	if err != nil {
		return nil, errors.Join(ErrFailedToQuery, err)
	}
	return refunds, nil
}

// ClaimProcessing sets processing_change in a single conditional update.
// Losing the race on either the version or the flag yields billing.ErrChangeInProgress.
func (s *Store) ClaimProcessing(ctx context.Context, userID uuid.UUID, version int64) (*subscription.Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, `
		UPDATE subscriptions
		SET processing_change = true, version = version + 1, updated_at = now()
		WHERE user_id = $1 AND version = $2 AND NOT processing_change
		RETURNING `+subscriptionColumns, userID, version))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, billing.ErrChangeInProgress
		}
		return nil, errors.Join(ErrFailedToQuery, err)
	}
	return rec, nil
}

// ReleaseProcessing clears the processing flag. Releasing an unclaimed record is a no-op.
func (s *Store) ReleaseProcessing(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE subscriptions
		SET processing_change = false, version = version + 1, updated_at = now()
		WHERE user_id = $1 AND processing_change`, userID)
	if err != nil {
		return errors.Join(ErrFailedToQuery, err)
	}
	return nil
}

// SaveSubscription writes rec guarded by its version and mirrors the plan onto
// the user row in the same transaction. rec.Version is advanced on success.
func (s *Store) SaveSubscription(ctx context.Context, rec *subscription.Record) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return errors.Join(ErrFailedToQuery, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE subscriptions SET
			plan = $3,
			status = $4,
			cancel_at_period_end = $5,
			pending_plan = $6,
			pending_plan_change_at = $7,
			processing_change = $8,
			current_period_end = $9,
			gateway_subscription_id = $10,
			updated_at = $11,
			version = version + 1
		WHERE user_id = $1 AND version = $2`,
		rec.UserID, rec.Version,
		string(rec.Plan), string(rec.Status), rec.CancelAtPeriodEnd,
		nullString(string(rec.PendingPlan)), rec.PendingPlanChangeAt,
		rec.ProcessingChange, rec.CurrentPeriodEnd,
		nullString(rec.GatewaySubscriptionID), updatedAt(rec.UpdatedAt),
	)
	if err != nil {
		return errors.Join(ErrFailedToQuery, err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrStaleRecord
	}

	if _, err = tx.Exec(ctx, `UPDATE users SET plan = $2 WHERE id = $1`, rec.UserID, string(rec.Plan)); err != nil {
		return errors.Join(ErrFailedToQuery, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return errors.Join(ErrFailedToQuery, err)
	}
	rec.Version++
	return nil
}

// CreateRefund inserts a refund request. The partial unique index on open
// refunds turns a concurrent second request into billing.ErrRefundExists.
func (s *Store) CreateRefund(ctx context.Context, r subscription.RefundRecord) error {
	details := r.EligibilityDetails
	if details == nil {
		details = map[string]any{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO refunds (id, user_id, status, reason, eligibility_details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID, string(r.Status), r.Reason, details, r.CreatedAt)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return billing.ErrRefundExists
		}
		if IsForeignKeyViolationError(err) {
			return billing.ErrUserNotFound
		}
		return errors.Join(ErrFailedToQuery, err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*subscription.Record, error) {
	var (
		rec       subscription.Record
		tier      string
		status    string
		pending   *string
		gatewayID *string
		created   string
	)
	err := row.Scan(
		&rec.UserID, &tier, &status, &rec.CancelAtPeriodEnd, &pending,
		&rec.PendingPlanChangeAt, &rec.ProcessingChange, &rec.CurrentPeriodEnd,
		&gatewayID, &created, &rec.UpdatedAt, &rec.Version,
	)
	if err != nil {
		return nil, err
	}
	rec.Plan = plan.Tier(tier)
	rec.Status = subscription.Status(status)
	if pending != nil {
		rec.PendingPlan = plan.Tier(*pending)
	}
	if gatewayID != nil {
		rec.GatewaySubscriptionID = *gatewayID
	}
	rec.CreatedAt = subscription.Timestamp(created)
	return &rec, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func updatedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
