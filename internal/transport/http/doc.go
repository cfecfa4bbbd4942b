// Package http implements the HTTP handlers of the loan recovery service.
// Handlers stay thin: they parse and validate the request, call the
// services layer and render the result.
//
// # Routes
//
// Session handlers mount under /api/sessions:
//
//	POST   /api/sessions                      create a session
//	GET    /api/sessions/{id}                 session status
//	DELETE /api/sessions/{id}                 reset the session
//	POST   /api/sessions/{id}/upload          multipart "file", .csv or .xlsx
//	POST   /api/sessions/{id}/sample          {"rows":100}
//	GET    /api/sessions/{id}/data            ?limit=50
//	GET    /api/sessions/{id}/segments        ?limit=20
//	GET    /api/sessions/{id}/risk            ?limit=20
//	GET    /api/sessions/{id}/insights/{kind}
//	GET    /api/sessions/{id}/report.csv
//	GET    /api/sessions/{id}/report.xlsx
//
// Run snapshots are read from /api/runs and health endpoints live under
// /api/health.
//
// # Responses
//
// Successful JSON responses use a common envelope:
//
//	{"status": "success", "data": {...}}
//
// Errors are RFC 7807 Problem Details rendered by errors.ErrorHandler:
//
//	{
//	    "type": "/errors/pipeline/schema",
//	    "title": "Schema Validation Failed",
//	    "status": 422,
//	    "detail": "missing required columns: Age",
//	    "instance": "/api/sessions/3f0c.../upload",
//	    "error_kind": "schema",
//	    "missing_columns": ["Age"]
//	}
//
// # Testing
//
// Handlers are tested with httptest against a chi router built the same way
// the application builds it.
package http
