// Package services implements the business logic behind the HTTP handlers.
//
// RecoveryService owns the dataset sessions. Each upload or generated sample
// is run through the pipeline manager and the outcome is stored in the
// session; the read views (raw preview, segments, risk, insights, report rows)
// only answer for ready sessions and fail with SESSION_NOT_READY otherwise.
//
// HealthService reports liveness, readiness and version information.
//
// Services accept a context for cancellation and tracing, take their
// dependencies through the constructor and log through an injected
// *slog.Logger:
//
//	svc := services.NewRecoveryService(store, manager, cfg.Pipeline, logger)
//	result, err := svc.Upload(ctx, id, "portfolio.csv", file)
package services
