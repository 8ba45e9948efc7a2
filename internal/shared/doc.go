// Package shared holds code used across InvestGraph's layers that belongs to
// none of them.
//
// The testutil subpackage provides:
//
//	- a capturing slog handler with assertions on level, message and attributes
//	- deterministic price fixtures backed by marketdata.MemorySource
//
// Nothing here may be imported by non-test code.
package shared
