package engine

import (
	"time"

	"github.com/hailam/chesscore/internal/board"
)

// TimeManager turns UCI clock limits into a time budget for one move.
type TimeManager struct {
	baseOptimum time.Duration // Target before stability adjustments
	optimumTime time.Duration // Target time for this move
	maximumTime time.Duration // Hard limit
	startTime   time.Time
	unlimited   bool
}

// NewTimeManager creates a new time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init allocates time for a search by us at the given game ply.
func (tm *TimeManager) Init(limits SearchLimits, us board.Color, ply int) {
	tm.startTime = time.Now()
	tm.unlimited = false

	// Fixed move time mode
	if limits.MoveTime > 0 {
		tm.optimumTime = limits.MoveTime
		tm.maximumTime = limits.MoveTime
		tm.baseOptimum = limits.MoveTime
		return
	}

	if limits.Infinite || limits.Time[us] <= 0 {
		tm.unlimited = true
		tm.optimumTime = 0
		tm.maximumTime = 0
		return
	}

	timeLeft := limits.Time[us]
	inc := limits.Inc[us]

	mtg := limits.MovesToGo
	if mtg <= 0 {
		// Sudden death: expect fewer remaining moves as the game goes on.
		mtg = min(max(50-ply/4, 10), 50)
	}

	tm.optimumTime = timeLeft/time.Duration(mtg) + inc*9/10
	if ply < 8 {
		tm.optimumTime = tm.optimumTime * 85 / 100
	}

	tm.maximumTime = min(tm.optimumTime*5, timeLeft*8/10)
	tm.maximumTime = min(tm.maximumTime, timeLeft*95/100)

	tm.optimumTime = max(tm.optimumTime, 10*time.Millisecond)
	tm.maximumTime = max(tm.maximumTime, 50*time.Millisecond)
	if tm.optimumTime > tm.maximumTime {
		tm.optimumTime = tm.maximumTime
	}
	tm.baseOptimum = tm.optimumTime
}

// Unlimited reports whether no clock constrains the search.
func (tm *TimeManager) Unlimited() bool {
	return tm.unlimited
}

// Deadline is the hard stop, or the zero time when unlimited.
func (tm *TimeManager) Deadline() time.Time {
	if tm.unlimited {
		return time.Time{}
	}
	return tm.startTime.Add(tm.maximumTime)
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// OptimumTime returns the target time for this move.
func (tm *TimeManager) OptimumTime() time.Duration {
	return tm.optimumTime
}

// MaximumTime returns the maximum time allowed.
func (tm *TimeManager) MaximumTime() time.Duration {
	return tm.maximumTime
}

// PastOptimum reports whether the target time is used up, in which case no
// new iteration should start.
func (tm *TimeManager) PastOptimum() bool {
	return !tm.unlimited && tm.Elapsed() >= tm.optimumTime
}

// AdjustForStability scales the target time by how many consecutive
// depths returned the same best move. A fixed move time is never shortened.
func (tm *TimeManager) AdjustForStability(stability int, fixed bool) {
	if fixed || tm.unlimited {
		return
	}
	pct := 100
	switch {
	case stability >= 6:
		pct = 40
	case stability >= 4:
		pct = 60
	case stability >= 2:
		pct = 80
	}
	tm.optimumTime = tm.baseOptimum * time.Duration(pct) / 100
}
