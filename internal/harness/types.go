package harness

// Trace entry kinds.
const (
	KindStep    = "step"
	KindOutcome = "outcome"
	KindEvent   = "event"
)

// OutcomeOK marks a step that returned no error.
const OutcomeOK = "ok"

// TraceEvent is one entry of the scenario trace: a step being performed,
// its outcome, or an event the game emitted in between.
type TraceEvent struct {
	Seq     int64          `json:"seq"`
	Kind    string         `json:"kind"`
	Action  string         `json:"action,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome string         `json:"outcome,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
	Type    string         `json:"type,omitempty"`
	Source  string         `json:"source,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every step, outcome and event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Notifications are the titles delivered to the notifier.
	Notifications []string `json:"notifications,omitempty"`

	seq int64
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

func (r *Result) next() int64 {
	r.seq++
	return r.seq
}

// AddStepTrace records a step about to run.
func (r *Result) AddStepTrace(action string, args map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{Seq: r.next(), Kind: KindStep, Action: action, Args: args})
}

// AddOutcomeTrace records the outcome of the preceding step.
func (r *Result) AddOutcomeTrace(action, outcome string, result map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{Seq: r.next(), Kind: KindOutcome, Action: action, Outcome: outcome, Result: result})
}

// AddEventTrace records an emitted game event.
func (r *Result) AddEventTrace(eventType, source string) {
	r.Trace = append(r.Trace, TraceEvent{Seq: r.next(), Kind: KindEvent, Type: eventType, Source: source})
}

// EventTypes returns the emitted event types in order.
func (r *Result) EventTypes() []string {
	var out []string
	for _, e := range r.Trace {
		if e.Kind == KindEvent {
			out = append(out, e.Type)
		}
	}
	return out
}
