// Package services implements the business layer between the HTTP handlers
// and the simulation engine.
//
// # Architecture
//
// Services follow these principles:
//
//	1. Interface-driven collaborators for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//
// # Available Services
//
//	- SimulationService: runs DCA calculations and records their metrics
//	- HealthService: liveness, readiness and version reporting
//
// # Error Handling
//
// SimulationService returns the engine's *dca.Error values untouched so the
// transport can map each kind to its status code. Canceled and invalid
// requests are logged below error level; they are not server faults.
//
// # Testing
//
// Services are tested by mocking their collaborators:
//
//	calc := new(MockCalculator)
//	calc.On("RunWithProgress", mock.Anything, raw, mock.Anything).Return(result, nil)
//	svc := NewSimulationService(calc, nil, logger)
package services
