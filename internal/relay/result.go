package relay

import (
	"time"

	"go.uber.org/multierr"

	"github.com/papapumpkin/scriptorium/internal/event"
)

// Status is the outcome of one send to one relay.
type Status string

// Outcome statuses. Every status is reported distinctly; none of them is
// collapsed into a plain boolean.
const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusTimedOut Status = "timed-out"
	StatusFailed   Status = "failed"
	StatusAborted  Status = "aborted"
)

// Outcome records one send attempt to one relay.
type Outcome struct {
	URL     string
	Status  Status
	Message string
	Err     error
	Elapsed time.Duration
	// Attempt is the 1-based pass number; 0 marks URLs refused before any I/O.
	Attempt  int
	Fallback bool
}

// Accepted reports whether the relay took the event.
func (o Outcome) Accepted() bool {
	return o.Status == StatusAccepted
}

// Result aggregates every outcome of one event broadcast.
type Result struct {
	EventID string
	Kind    event.Kind
	// Outcomes lists every send in pass order, relays in input order within a pass.
	Outcomes     []Outcome
	Attempts     int
	UsedFallback bool
	Aborted      bool
	// Notes carries relay NOTICE messages and diagnostics for the user.
	Notes []string
}

// Success reports whether at least one relay accepted the event.
func (r *Result) Success() bool {
	for _, o := range r.Outcomes {
		if o.Accepted() {
			return true
		}
	}
	return false
}

// Successful returns the distinct relays that accepted the event, in first
// acceptance order.
func (r *Result) Successful() []string {
	var out []string
	seen := make(map[string]bool)
	for _, o := range r.Outcomes {
		if o.Accepted() && !seen[o.URL] {
			seen[o.URL] = true
			out = append(out, o.URL)
		}
	}
	return out
}

// Failed returns the distinct relays that were tried and never accepted the
// event, in first attempt order.
func (r *Result) Failed() []string {
	ok := make(map[string]bool)
	for _, o := range r.Outcomes {
		if o.Accepted() {
			ok[o.URL] = true
		}
	}
	var out []string
	seen := make(map[string]bool)
	for _, o := range r.Outcomes {
		if !ok[o.URL] && !seen[o.URL] {
			seen[o.URL] = true
			out = append(out, o.URL)
		}
	}
	return out
}

// Err returns nil when some relay accepted the event, and a
// *PartialBroadcastFailure combining the per-relay errors otherwise.
func (r *Result) Err() error {
	if r.Success() {
		return nil
	}
	var errs error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = multierr.Append(errs, o.Err)
		}
	}
	if errs == nil {
		errs = ErrNoRelays
	}
	return &PartialBroadcastFailure{EventID: r.EventID, Relays: r.Failed(), Err: errs}
}

// Counts returns the number of outcomes per status.
func (r *Result) Counts() map[Status]int {
	out := make(map[Status]int)
	for _, o := range r.Outcomes {
		out[o.Status]++
	}
	return out
}
