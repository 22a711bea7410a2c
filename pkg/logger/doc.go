// Package logger builds *slog.Logger instances with functional options and
// keeps attribute naming consistent across the billing packages.
//
// New picks a text or JSON handler and wraps it in LogHandlerDecorator, which
// runs ContextExtractor callbacks on every record. BillingContextExtractor pulls
// the user and the operation name stored with WithUserIDContext and
// WithOperationContext, so lower layers need not thread them through.
//
// Attribute helpers (UserID, Plan, Action, Code, UpgradePath, Error, ...) live in
// attr.go. Error and Errors return an empty attribute for nil errors, so
//
//	log.Info("refund evaluated", logger.Code(code), logger.Error(err))
//
// needs no nil check.
//
// Usage:
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "gallery-billing"),
//	    logger.WithContextExtractors(logger.BillingContextExtractor()),
//	)
//	logger.SetAsDefault(log)
package logger
