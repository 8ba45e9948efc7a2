// Package marketdata provides daily closing price sources for the simulation
// engine: the Yahoo chart API, the EODHD end-of-day API, an in-memory fixture
// source, and a sqlite read-through cache that can sit in front of any of them.
//
// Sources classify failures through *SourceError: NotFound for unknown
// symbols, Temporary for failures worth retrying.
package marketdata
