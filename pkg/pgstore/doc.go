// Package pgstore is the PostgreSQL persistence layer for subscriptions, refunds
// and account plans, built on pgx/v5 with goose migrations embedded in the binary.
//
// Store implements billing.Store and the subscription fetch contracts. The two
// writes that race under concurrent requests are made atomic in SQL:
//
//   - ClaimProcessing is a single conditional UPDATE on (user_id, version,
//     processing_change = false); zero affected rows means someone else holds the
//     claim and billing.ErrChangeInProgress is returned
//   - CreateRefund relies on a partial unique index over refunds in pending or
//     approved state; the unique violation maps to billing.ErrRefundExists
//
// Usage:
//
//	var cfg pgstore.Config
//	config.MustLoad(&cfg)
//	pool, err := pgstore.Connect(ctx, cfg)
//	if err != nil { ... }
//	defer pool.Close()
//	if err := pgstore.Migrate(ctx, pool, cfg, slog.Default()); err != nil { ... }
//	store := pgstore.New(pool)
package pgstore
