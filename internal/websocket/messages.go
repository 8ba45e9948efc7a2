package websocket

import (
	"github.com/0rShemesh/InvestGraph/internal/dca"
)

// MessageType tags every frame the server sends on a calculation stream.
type MessageType string

const (
	MessageTypeProgress MessageType = "progress"
	MessageTypeResult   MessageType = "result"
	MessageTypeError    MessageType = "error"
)

// Message is implemented by the three stream frames.
type Message interface {
	MessageType() MessageType
}

// ProgressMessage reports how many purchase prices are resolved so far.
type ProgressMessage struct {
	Type     MessageType `json:"type"`
	Resolved int         `json:"resolved"`
	Total    int         `json:"total"`
}

// ResultMessage carries the finished simulation. It is the last frame of a
// successful stream.
type ResultMessage struct {
	Type    MessageType          `json:"type"`
	Records dca.SimulationResult `json:"records"`
}

// ErrorMessage is the last frame of a failed stream. Status is the HTTP
// status the same failure gets on POST /api/calculate.
type ErrorMessage struct {
	Type    MessageType      `json:"type"`
	Error   string           `json:"error"`
	Status  int              `json:"status"`
	Kind    string           `json:"kind,omitempty"`
	TraceID string           `json:"trace_id,omitempty"`
	Fields  []dca.FieldError `json:"errors,omitempty"`
}

func NewProgressMessage(resolved, total int) ProgressMessage {
	return ProgressMessage{Type: MessageTypeProgress, Resolved: resolved, Total: total}
}

func NewResultMessage(records dca.SimulationResult) ResultMessage {
	return ResultMessage{Type: MessageTypeResult, Records: records}
}

func (ProgressMessage) MessageType() MessageType { return MessageTypeProgress }
func (ResultMessage) MessageType() MessageType   { return MessageTypeResult }
func (ErrorMessage) MessageType() MessageType    { return MessageTypeError }
