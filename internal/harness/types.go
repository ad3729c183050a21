package harness

// Trace entry types besides the notification event types.
const (
	TraceSubmit  = "submit"
	TraceCycle   = "cycle"
	TraceRestart = "restart"
)

// TraceEvent is one entry in a scenario trace.
// At is the offset from the scenario start, rendered as a Go duration.
type TraceEvent struct {
	Type        string `json:"type"`
	At          string `json:"at"`
	OperationID string `json:"operation_id,omitempty"`
	TxRef       string `json:"tx_ref,omitempty"`
	RecordID    string `json:"record_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Message     string `json:"message,omitempty"`
	Remaining   *int   `json:"remaining,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains submissions, cycles and notifications in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// count returns how many trace entries have type typ.
func (r *Result) count(typ string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
