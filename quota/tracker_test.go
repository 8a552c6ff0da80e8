package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerReserve(t *testing.T) {
	tests := []struct {
		name      string
		budget    int64
		costs     CostTable
		ops       []string
		wantOK    []bool
		wantUsed  int64
		wantCalls int
	}{
		{
			name:      "reserves within budget",
			budget:    3,
			ops:       []string{OpChannelsList, OpPlaylistItemsList, OpVideosList},
			wantOK:    []bool{true, true, true},
			wantUsed:  3,
			wantCalls: 3,
		},
		{
			name:      "refuses beyond budget",
			budget:    2,
			ops:       []string{OpChannelsList, OpPlaylistItemsList, OpVideosList},
			wantOK:    []bool{true, true, false},
			wantUsed:  2,
			wantCalls: 2,
		},
		{
			name:      "zero budget refuses everything",
			budget:    0,
			ops:       []string{OpChannelsList},
			wantOK:    []bool{false},
			wantUsed:  0,
			wantCalls: 0,
		},
		{
			name:      "custom cost table",
			budget:    10,
			costs:     CostTable{OpVideosList: 8},
			ops:       []string{OpVideosList, OpVideosList},
			wantOK:    []bool{true, false},
			wantUsed:  8,
			wantCalls: 1,
		},
		{
			name:      "unknown operation costs one unit",
			budget:    1,
			ops:       []string{"search.list"},
			wantOK:    []bool{true},
			wantUsed:  1,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := New(tt.budget, tt.costs, nil)
			for i, op := range tt.ops {
				ok := tracker.Reserve(op)
				assert.Equal(t, tt.wantOK[i], ok, "reservation %d (%s)", i, op)
			}
			assert.Equal(t, tt.wantUsed, tracker.Used())
			assert.Equal(t, tt.budget-tt.wantUsed, tracker.Remaining())
			assert.Equal(t, tt.wantCalls, tracker.Report().Calls)
		})
	}
}

func TestTrackerRefusalLeavesLedgerUntouched(t *testing.T) {
	tracker := New(5, CostTable{OpVideosList: 3}, nil)

	assert.True(t, tracker.Reserve(OpVideosList))
	assert.Equal(t, int64(3), tracker.Used())

	// 3 + 3 > 5: refusal must not debit anything
	assert.False(t, tracker.Reserve(OpVideosList))
	assert.Equal(t, int64(3), tracker.Used())
	assert.Equal(t, int64(2), tracker.Remaining())

	// a cheaper call still fits
	assert.True(t, tracker.Reserve(OpChannelsList))
	assert.Equal(t, int64(4), tracker.Used())
}

func TestTrackerResetIfNewWindow(t *testing.T) {
	tracker := New(10, nil, time.UTC)

	day1 := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	tracker.ResetIfNewWindow(day1)
	assert.True(t, tracker.Reserve(OpChannelsList))
	assert.True(t, tracker.Reserve(OpVideosList))
	assert.Equal(t, int64(2), tracker.Used())

	// later the same day keeps the ledger
	tracker.ResetIfNewWindow(day1.Add(8 * time.Hour))
	assert.Equal(t, int64(2), tracker.Used())

	// crossing midnight rolls the window
	day2 := time.Date(2026, 8, 29, 0, 0, 1, 0, time.UTC)
	tracker.ResetIfNewWindow(day2)
	assert.Equal(t, int64(0), tracker.Used())
	assert.Equal(t, 0, tracker.Report().Calls)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), tracker.Report().WindowStart)
}

func TestTrackerResetHonorsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	tracker := New(10, nil, loc)

	// 2026-08-28 20:00 UTC is already 2026-08-29 05:00 in UTC+9
	tracker.ResetIfNewWindow(time.Date(2026, 8, 28, 20, 0, 0, 0, time.UTC))
	assert.True(t, tracker.Reserve(OpChannelsList))

	// 2026-08-28 23:00 UTC is still 2026-08-29 in UTC+9, no roll
	tracker.ResetIfNewWindow(time.Date(2026, 8, 28, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, int64(1), tracker.Used())

	// 2026-08-29 16:00 UTC is 2026-08-30 01:00 in UTC+9, rolls
	tracker.ResetIfNewWindow(time.Date(2026, 8, 29, 16, 0, 0, 0, time.UTC))
	assert.Equal(t, int64(0), tracker.Used())
}

func TestUsagePercent(t *testing.T) {
	assert.InDelta(t, 25.0, Usage{Used: 2500, Budget: 10000}.Percent(), 0.001)
	assert.Equal(t, 0.0, Usage{Used: 5, Budget: 0}.Percent())
}
