// Package studentagent is the contract between tagcheck and the agents it
// validates.
//
// An agent is exposed under the name StudentAgent, either as a symbol in a Go
// plugin (.so) or by an executable that speaks the line protocol below.
//
// # Plugin symbol
//
// The plugin must export a function with one of the shapes
//
//	func StudentAgent(role string) (T, error)
//	func StudentAgent(role string) T
//
// where T has the method GetAction([]float64, string) ([]float64, error).
// The plugin does not need to import this package; the shape is checked by
// reflection when the plugin is opened.
//
// # Process protocol
//
// Executables communicate over stdin/stdout with one JSON object per line.
// The process first writes a Hello line listing its exports, which must
// include "StudentAgent". After that, every Request line read from stdin is
// answered by exactly one Response line:
//
//	{"id":1,"op":"new","role":"prey"}                      -> {"id":1,"instance":1}
//	{"id":2,"op":"act","instance":1,"participant_id":"agent_0","observation":[...]}
//	                                                       -> {"id":2,"action":[0,0,0,0,0]}
//	{"id":3,"op":"free","instance":1}                      -> {"id":3}
//
// A non-empty "error" field in a Response reports a failure of the request.
// Responses may omit "id"; requests are never pipelined, so an untagged
// response answers the pending request. Closing stdin asks the process to
// exit. Go programs can implement the protocol with Serve.
//
// # Python files
//
// A .py file is not run directly. tagcheck starts a bundled runner that
// imports the file and serves its StudentAgent class over this protocol:
// StudentAgent(role) builds an instance and get_action(observation,
// participant_id) returns the action. A file that cannot be imported is
// reported in the Hello line's "error" field.
package studentagent

// ExportName is the name under which an agent constructor must be exported.
const ExportName = "StudentAgent"

// ProtocolVersion is the version announced in the Hello line.
const ProtocolVersion = 1

// ActionDim is the length of the continuous action vector an agent returns.
const ActionDim = 5

// MaxLineSize bounds a single protocol line.
const MaxLineSize = 1 << 20

// Agent computes the action for one participant from its observation.
type Agent interface {
	GetAction(observation []float64, participantID string) ([]float64, error)
}

// Constructor builds an Agent for a role ("prey" or "predator").
type Constructor func(role string) (Agent, error)

// Operation names.
const (
	OpNew  = "new"
	OpAct  = "act"
	OpFree = "free"
)

// Hello is the first line written by an agent process.
type Hello struct {
	Protocol int      `json:"protocol"`
	Exports  []string `json:"exports"`

	// Error is set when the process could not load the agent code.
	Error string `json:"error,omitempty"`
}

// Exposes reports whether name is among the exports.
func (h Hello) Exposes(name string) bool {
	for _, e := range h.Exports {
		if e == name {
			return true
		}
	}
	return false
}

// Request is sent by tagcheck to an agent process.
type Request struct {
	ID            uint64    `json:"id"`
	Op            string    `json:"op"`
	Role          string    `json:"role,omitempty"`
	Instance      int       `json:"instance,omitempty"`
	ParticipantID string    `json:"participant_id,omitempty"`
	Observation   []float64 `json:"observation,omitempty"`
}

// Response answers a Request.
// ID may be zero when the process does not track request ids.
type Response struct {
	ID       uint64    `json:"id,omitempty"`
	Instance int       `json:"instance,omitempty"`
	Action   []float64 `json:"action,omitempty"`
	Error    string    `json:"error,omitempty"`
}
