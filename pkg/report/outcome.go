// Package report collects per-item outcomes and renders the run summary
// that is written at the end of every run, including failed ones.
package report

import (
	"fmt"
	"sync"
	"unicode/utf8"
)

// Action is what happened to one item.
type Action int

// Actions.
const (
	Created Action = iota
	Updated
	Skipped
	Failed
)

var actionNames = [...]string{
	Created: "CREATED",
	Updated: "UPDATED",
	Skipped: "SKIPPED",
	Failed:  "FAILED",
}

// Actions lists every action in display order.
func Actions() []Action {
	return []Action{Created, Updated, Skipped, Failed}
}

// String returns the action name.
func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionNames[a]
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	for i, name := range actionNames {
		if name == string(text) {
			*a = Action(i)
			return nil
		}
	}
	return fmt.Errorf("unknown action %q", text)
}

// Outcome is the result of one remote or local operation. Key is a natural
// key or a filename.
type Outcome struct {
	Key    string `json:"key" yaml:"key"`
	Action Action `json:"action" yaml:"action"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Fail builds a Failed outcome with the error text truncated to maxLen runes.
func Fail(key string, err error, maxLen int) Outcome {
	detail := ""
	if err != nil {
		detail = Truncate(err.Error(), maxLen)
	}
	return Outcome{Key: key, Action: Failed, Detail: detail}
}

// Truncate shortens s to at most n runes. n <= 0 disables truncation.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Counts tallies outcomes per action.
type Counts map[Action]int

// Tally counts outcomes by action. Every action is present.
func Tally(outcomes []Outcome) Counts {
	c := make(Counts, len(actionNames))
	for _, a := range Actions() {
		c[a] = 0
	}
	for _, o := range outcomes {
		c[o.Action]++
	}
	return c
}

// Total is the sum over all actions.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Collector is an append-only outcome list safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	outcomes []Outcome
}

// NewCollector returns an empty collector with room for n outcomes.
func NewCollector(n int) *Collector {
	return &Collector{outcomes: make([]Outcome, 0, n)}
}

// Add appends one outcome.
func (c *Collector) Add(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

// Len is the number of outcomes collected so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

// Outcomes returns a copy of the collected outcomes.
func (c *Collector) Outcomes() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Outcome, len(c.outcomes))
	copy(out, c.outcomes)
	return out
}
