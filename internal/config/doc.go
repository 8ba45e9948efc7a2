// Package config provides centralized configuration management for InvestGraph.
// It loads configuration from multiple sources, validates it, and exposes a
// typed struct to the rest of the application.
//
// # Configuration Sources
//
// Configuration is assembled in three layers, each overriding the previous one:
//
//	1. Default values from Default()
//	2. A YAML file (INVESTGRAPH_CONFIG_FILE, config.yaml or configs/config.yaml)
//	3. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern INVESTGRAPH_<SECTION>_<FIELD>:
//
//	INVESTGRAPH_SERVER_PORT=8080
//	INVESTGRAPH_MARKET_DATA_PROVIDER=eodhd
//	INVESTGRAPH_MARKET_DATA_EODHD_API_KEY=...
//	INVESTGRAPH_SIMULATION_CALC_TIMEOUT=30s
//	INVESTGRAPH_CACHE_ENABLED=false
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
