// Package handlers contains the health checker and gin middleware shared by
// the HTTP server.
//
// # Health Checks
//
// Checks run in parallel, each under its own timeout. A failing check marks
// the service unhealthy; a failing critical check also marks it not ready:
//
//	checker := handlers.NewCompositeHealthChecker("0.1.0")
//	checker.AddCheck("student_store", handlers.NewPingCheck(students), true)
//	checker.AddCheck("enrollment_store", handlers.NewPingCheck(enrollments), false)
//	checker.AddCheck("cache", handlers.NewPingCheck(cache), false)
//
// # Middleware
//
// RequestID, Logger, Recovery and Timeout are installed by the server in
// that order. Logger stores a request-scoped zap logger in the request
// context, so application code picks it up with logger.FromContext.
package handlers
