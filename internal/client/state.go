package client

import "github.com/0rShemesh/InvestGraph/internal/dca"

// State is the consumer's view of a calculation. It is one of Idle, Loading,
// Succeeded or Failed.
type State interface {
	isState()
}

// Idle is the state before any request was made.
type Idle struct{}

// Loading is the state while a request is in flight.
type Loading struct{}

// Succeeded holds the records of a completed calculation.
type Succeeded struct {
	Ticker  string
	Records dca.SimulationResult
}

// Failed holds the reason a calculation could not be displayed.
type Failed struct {
	Err error
}

func (Idle) isState()      {}
func (Loading) isState()   {}
func (Succeeded) isState() {}
func (Failed) isState()    {}
