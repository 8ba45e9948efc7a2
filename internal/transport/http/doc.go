// Package http implements the HTTP handlers of the InvestGraph service.
// Handlers stay thin: they decode and validate the wire body, call a
// service and render the result or an RFC 7807 problem.
//
// # Routes
//
//	POST /api/calculate              JSON array of period records
//	POST /api/calculate/export.csv   CSV attachment
//	POST /api/calculate/export.xlsx  spreadsheet attachment
//	POST /api/calculate/chart.png    PNG chart
//	GET  /api/ws/calculate           websocket progress stream
//	GET  /healthz, /readyz, /livez   health, readiness and liveness
//	GET  /api/version                build information
//	GET  /metrics                    Prometheus
//
// # Error Handling
//
// Every failure is a problem document with an "error" member:
//
//	{
//	    "type": "/errors/validation",
//	    "title": "Invalid Input",
//	    "status": 400,
//	    "detail": "ticker is required",
//	    "error": "ticker is required",
//	    "kind": "invalid_input",
//	    "errors": [{"field": "ticker", "message": "ticker is required"}],
//	    "trace_id": "..."
//	}
//
// # Testing
//
// Handlers are tested with httptest against an in-memory price source.
package http
