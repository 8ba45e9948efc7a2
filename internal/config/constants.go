package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "investgraph"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable, e.g. INVESTGRAPH_SERVER_PORT
	EnvPrefix = "INVESTGRAPH"

	// Market data providers
	ProviderYahoo  = "yahoo"
	ProviderEODHD  = "eodhd"
	ProviderMemory = "memory"

	// Simulation limits
	DefaultMaxMonths    = 1200
	DefaultLookbackDays = 5
	DefaultCalcTimeout  = 30 * time.Second

	// File Paths
	DefaultLogFile   = "logs/investgraph.log"
	DefaultCachePath = "data/prices.db"
)

// API Endpoints
const (
	APIBasePath       = "/api"
	CalculateEndpoint = "/api/calculate"
	StreamEndpoint    = "/api/ws/calculate"
	VersionEndpoint   = "/api/version"
	HealthEndpoint    = "/healthz"
	ReadyEndpoint     = "/readyz"
	LiveEndpoint      = "/livez"
	MetricsEndpoint   = "/metrics"
)
