// Package handlers contains HTTP handler interfaces, implementations, and middleware.
//
// This package provides:
//   - Health check interfaces and implementations
//   - Operator authentication (API key exchange and Bearer tokens)
//   - Reusable middleware components
//
// # Health Checks
//
// Dependencies are registered with the impact their loss has on the desk.
// A critical dependency that fails takes the desk down and out of
// readiness; a degraded one is reported but the desk keeps serving:
//
//	monitor := handlers.NewReadinessMonitor("v1.0.0", 5*time.Second)
//	monitor.Register("archive", handlers.ImpactCritical, archiveCheck)
//	monitor.Register("student_service", handlers.ImpactDegraded, handlers.PingCheck(client))
//
//	report := monitor.Check(ctx)
//	if !report.Ready {
//	    log.Printf("not ready: %s", report.Message)
//	}
//
// # Authentication
//
// The operator exchanges the API key for a token once, then sends it as
// "Authorization: Bearer <token>":
//
//	auth, err := handlers.NewTokenAuth(handlers.AuthConfig{
//	    APIKeyHash: cfg.Auth.APIKeyHash,
//	    Secret:     cfg.Auth.JWTSecret,
//	    TTL:        cfg.Auth.TokenTTL,
//	})
//	token, expiresAt, err := auth.Issue(apiKey)
//	router.With(auth.Middleware).Get("/sessions/{id}", getSession)
package handlers
