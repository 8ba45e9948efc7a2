// Package dca implements the dollar-cost-averaging simulation engine.
//
// A calculation runs as a fixed pipeline:
//
//	Validate -> Scheduler.Schedule -> Resolver.ResolveAll -> Fold -> Assemble
//
// Validate normalizes the raw request and reports every invalid field at once,
// before any price lookup. The scheduler produces one purchase per month,
// clamping the day of month and rolling market closures forward on the NYSE
// calendar. The resolver fans price lookups out in chunks and joins them back
// in chronological order; a close missing on a purchase date is searched for
// up to LookbackDays trading days later, and the emitted record carries the
// date actually used. Fold is a strictly sequential accumulation.
//
// Every failure is an *Error with a Kind. A calculation either returns every
// record or none.
package dca
