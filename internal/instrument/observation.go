package instrument

import (
	"encoding/json"
	"sync"
	"unicode/utf8"
)

// EvalMinLength is the code length at which an eval call is flagged.
const EvalMinLength = 50

// Kind names an intercepted primitive.
type Kind string

const (
	KindEval   Kind = "eval"
	KindDecode Kind = "atob"
)

// Event is one intercepted call as reported by the page hook. Payload may be
// truncated; Length is the length of the full string in characters.
type Event struct {
	Kind    Kind   `json:"kind"`
	Payload string `json:"payload"`
	Length  int    `json:"length"`
}

// Result is the read-once view of an Observation.
type Result struct {
	Installed     bool `json:"installed"`
	EvalFlagged   bool `json:"eval_flagged"`
	DecodeFlagged bool `json:"decode_flagged"`
	EvalCalls     int  `json:"eval_calls"`
	DecodeCalls   int  `json:"decode_calls"`
}

// Observation is the session-scoped context the hooks write into. One
// Observation belongs to exactly one browsing session.
type Observation struct {
	evalMin int

	mu     sync.Mutex
	result Result
}

// NewObservation creates an Observation. evalMinLength <= 0 uses EvalMinLength.
func NewObservation(evalMinLength int) *Observation {
	if evalMinLength <= 0 {
		evalMinLength = EvalMinLength
	}
	return &Observation{evalMin: evalMinLength}
}

// MarkInstalled records that the hooks were in place before page scripts ran.
func (o *Observation) MarkInstalled() {
	o.mu.Lock()
	o.result.Installed = true
	o.mu.Unlock()
}

// Handle applies one intercepted call.
func (o *Observation) Handle(ev Event) {
	// Length is in UTF-16 units as the page saw it; the payload may be truncated.
	length := max(ev.Length, utf8.RuneCountInString(ev.Payload))

	var flagged bool
	switch ev.Kind {
	case KindEval:
		flagged = length >= o.evalMin
	case KindDecode:
		flagged = PayloadSuspicious(ev.Payload)
	default:
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	switch ev.Kind {
	case KindEval:
		o.result.EvalCalls++
		o.result.EvalFlagged = o.result.EvalFlagged || flagged
	case KindDecode:
		o.result.DecodeCalls++
		o.result.DecodeFlagged = o.result.DecodeFlagged || flagged
	}
}

// HandleJSON decodes a binding payload and applies it. Malformed payloads
// are ignored.
func (o *Observation) HandleJSON(payload string) error {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return err
	}
	o.Handle(ev)
	return nil
}

// Snapshot returns the current state. Without installed hooks nothing is
// reported as detected.
func (o *Observation) Snapshot() Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.result.Installed {
		return Result{}
	}
	return o.result
}
