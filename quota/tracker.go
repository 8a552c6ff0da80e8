package quota

import "time"

// API operation names, matching the external API's method identifiers.
const (
	OpChannelsList      = "channels.list"
	OpPlaylistItemsList = "playlistItems.list"
	OpVideosList        = "videos.list"
)

// CostTable maps an API operation to its quota cost in units. Operations
// without an entry cost one unit.
type CostTable map[string]int64

// DefaultCosts returns the cost table for the operations the pipeline
// issues. All three cost a single unit.
func DefaultCosts() CostTable {
	return CostTable{
		OpChannelsList:      1,
		OpPlaylistItemsList: 1,
		OpVideosList:        1,
	}
}

// Usage is a point-in-time report of budget consumption.
type Usage struct {
	Used        int64     `json:"used"`
	Budget      int64     `json:"budget"`
	Calls       int       `json:"calls"`
	WindowStart time.Time `json:"window_start"`
}

// Percent returns the share of the budget consumed, 0-100.
func (u Usage) Percent() float64 {
	if u.Budget <= 0 {
		return 0
	}
	return float64(u.Used) / float64(u.Budget) * 100
}

// Tracker debits API call costs from a per-window budget. It is an
// explicit instance handed to the API client, not process-global state,
// and holds no cross-run persistence: each run starts from a configured
// ceiling. Single-writer by design, the pipeline is sequential.
type Tracker struct {
	budget      int64
	used        int64
	calls       int
	costs       CostTable
	loc         *time.Location
	windowStart time.Time
}

// New creates a tracker with the given budget and cost table. loc names
// the time zone whose midnight rolls the budget window; nil means UTC.
func New(budget int64, costs CostTable, loc *time.Location) *Tracker {
	if costs == nil {
		costs = DefaultCosts()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{
		budget: budget,
		costs:  costs,
		loc:    loc,
	}
}

// Cost returns the cost of one call of the given operation.
func (t *Tracker) Cost(op string) int64 {
	if c, ok := t.costs[op]; ok {
		return c
	}
	return 1
}

// Reserve debits the cost of op from the remaining budget. It returns
// false and leaves the ledger untouched when the budget cannot cover the
// call; the caller must not issue the request in that case.
func (t *Tracker) Reserve(op string) bool {
	cost := t.Cost(op)
	if t.used+cost > t.budget {
		return false
	}
	t.used += cost
	t.calls++
	return true
}

// Used returns the units consumed in the current window.
func (t *Tracker) Used() int64 {
	return t.used
}

// Remaining returns the units still available in the current window.
func (t *Tracker) Remaining() int64 {
	return t.budget - t.used
}

// ResetIfNewWindow zeroes the ledger when now falls in a later budget
// window than the last reset. The orchestrator calls this once at run
// start; components never consult the wall clock themselves.
func (t *Tracker) ResetIfNewWindow(now time.Time) {
	local := now.In(t.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, t.loc)

	if t.windowStart.IsZero() {
		t.windowStart = day
		return
	}
	if day.After(t.windowStart) {
		t.used = 0
		t.calls = 0
		t.windowStart = day
	}
}

// Report returns the current usage snapshot for run logging.
func (t *Tracker) Report() Usage {
	return Usage{
		Used:        t.used,
		Budget:      t.budget,
		Calls:       t.calls,
		WindowStart: t.windowStart,
	}
}
