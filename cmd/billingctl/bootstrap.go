package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/gallerybilling/pkg/auditlog"
	"github.com/dmitrymomot/gallerybilling/pkg/billing"
	"github.com/dmitrymomot/gallerybilling/pkg/config"
	"github.com/dmitrymomot/gallerybilling/pkg/logger"
	"github.com/dmitrymomot/gallerybilling/pkg/metrics"
	"github.com/dmitrymomot/gallerybilling/pkg/notify"
	"github.com/dmitrymomot/gallerybilling/pkg/pgstore"
	"github.com/dmitrymomot/gallerybilling/pkg/refund"
	"github.com/dmitrymomot/gallerybilling/pkg/upgradepath"
	"github.com/dmitrymomot/gallerybilling/pkg/usage"
)

// runtime is the fully wired billing service and what must be closed after it.
type runtime struct {
	service  *billing.Service
	registry *prometheus.Registry
	closers  []func(context.Context) error
}

func (r *runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// bootstrap connects every store and gateway the service needs.
// Partially opened connections are closed on failure.
func bootstrap(ctx context.Context, opts *rootOptions) (_ *runtime, err error) {
	rt := &runtime{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
		}
	}()
	log := opts.log.With(logger.Component("bootstrap"))

	var pgCfg pgstore.Config
	if err := config.Load(&pgCfg); err != nil {
		return nil, err
	}
	pool, err := pgstore.Connect(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func(context.Context) error { pool.Close(); return nil })
	store := pgstore.New(pool)

	var mongoCfg auditlog.Config
	if err := config.Load(&mongoCfg); err != nil {
		return nil, err
	}
	client, err := auditlog.Connect(ctx, mongoCfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, client.Disconnect)
	coll := client.Database(mongoCfg.Database).Collection(mongoCfg.Collection)
	if err := auditlog.EnsureIndexes(ctx, coll); err != nil {
		log.WarnContext(ctx, "failed to ensure audit indexes", logger.Error(err))
	}
	audit := auditlog.NewMongoStore(coll)

	var s3Cfg usage.S3Config
	if err := config.Load(&s3Cfg); err != nil {
		return nil, err
	}
	sizer, err := usage.NewS3Sizer(ctx, s3Cfg)
	if err != nil {
		return nil, err
	}
	aggOpts := []usage.AggregatorOption{usage.WithLogger(opts.log)}
	if opts.app.UsageCacheEnabled {
		var redisCfg usage.RedisConfig
		if err := config.Load(&redisCfg); err != nil {
			return nil, err
		}
		rdb, err := usage.ConnectRedis(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return rdb.Close() })
		aggOpts = append(aggOpts, usage.WithCache(usage.NewSnapshotCache(rdb, redisCfg.SnapshotTTL)))
	}
	aggregator := usage.NewAggregator(sizer, usage.NewGalleryCounter(pool), aggOpts...)

	var paddleCfg billing.PaddleConfig
	if err := config.Load(&paddleCfg); err != nil {
		return nil, err
	}
	gateway, err := billing.NewPaddleGateway(paddleCfg)
	if err != nil {
		return nil, err
	}

	var notifyCfg notify.Config
	if err := config.Load(&notifyCfg); err != nil {
		return nil, err
	}
	var notifier billing.Notifier
	if notifyCfg.PostmarkServerToken != "" {
		if notifier, err = notify.NewPostmarkSender(notifyCfg); err != nil {
			return nil, err
		}
	} else {
		log.InfoContext(ctx, "postmark not configured, writing notices to outbox", "dir", notifyCfg.OutboxDir)
		notifier = notify.NewFileSender(notifyCfg.OutboxDir)
	}

	resolver := upgradepath.New(
		upgradepath.WithLogger(opts.log),
		upgradepath.WithHistoryLimit(opts.app.AuditHistoryLimit),
	)
	checker := refund.NewChecker(
		refund.NewEngine(opts.catalog),
		store, store, aggregator, audit,
		refund.WithLogger(opts.log),
		refund.WithResolver(resolver),
	)

	rt.service = billing.NewService(opts.catalog, store, gateway, checker,
		billing.WithLogger(opts.log),
		billing.WithNotifier(notifier),
		billing.WithAuditRecorder(audit),
		billing.WithMetrics(metrics.New(rt.registry)),
		billing.WithCheckoutSuccessURL(opts.app.CheckoutSuccessURL),
	)
	return rt, nil
}
