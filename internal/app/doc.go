// Package app wires the calculation service together and manages its lifecycle.
//
// # Initialization Flow
//
//  1. The caller loads configuration and the logger (see cmd/server)
//  2. OpenTelemetry providers and business metrics are created
//  3. The market data provider is built, observed and optionally cached in sqlite
//  4. The simulator and services are created on top of the source
//  5. The chi router and middleware stack are assembled
//
// # Routes
//
//	POST /api/calculate               JSON records
//	POST /api/calculate/export.csv    CSV attachment
//	POST /api/calculate/export.xlsx   workbook attachment
//	POST /api/calculate/chart.png     line chart
//	GET  /api/ws/calculate            progress stream
//	GET  /api/version, /healthz, /readyz, /livez, /metrics
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests, closes
// the price cache and flushes telemetry. The package never calls os.Exit.
package app
