package grading

import (
	"context"
	"sync"
	"time"
)

// State identifies where the grading pipeline currently is.
type State string

const (
	StateIdle            State = "idle"
	StateFakeProgress    State = "streaming-fake-progress"
	StateRealProgress    State = "streaming-real-progress"
	StateFallbackPending State = "fallback-pending"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

const fakeProgressCeiling = 90

// Snapshot is the point-in-time view the owning view polls while a
// submission is in flight.
type Snapshot struct {
	State    State
	Progress float64
	Status   string
	Result   *Result
}

// Tracker owns the observable progress/status/result state for the active
// submission. A locally ticking indicator advances the bar until the first
// server-reported progress value arrives, at which point the ticker is
// cancelled and real values take over. At most one writer (the active
// request) touches the tracker at a time; the mutex guards reader snapshots.
type Tracker struct {
	mu         sync.Mutex
	state      State
	progress   float64
	status     string
	result     *Result
	closed     bool
	cancelTick context.CancelFunc
}

// NewTracker returns a tracker in the idle state.
func NewTracker() *Tracker {
	return &Tracker{state: StateIdle}
}

// Reset prepares the tracker for a fresh submission and discards any
// previous result.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	t.stopTickLocked()
	t.state = StateIdle
	t.progress = 0
	t.status = ""
	t.result = nil
}

// StartStreaming enters the fake-progress state and begins the local ticker.
func (t *Tracker) StartStreaming(interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	t.stopTickLocked()
	t.state = StateFakeProgress
	t.progress = 0
	t.status = "正在连接批改服务…"

	if interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancelTick = cancel
	go t.tick(ctx, interval)
}

func (t *Tracker) tick(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.closed || t.state != StateFakeProgress {
				t.mu.Unlock()
				return
			}
			if t.progress < fakeProgressCeiling {
				t.progress += 2
			}
			t.mu.Unlock()
		}
	}
}

// SetRealProgress cancels the fake ticker and applies a server-reported value.
func (t *Tracker) SetRealProgress(progress float64, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	t.stopTickLocked()
	t.state = StateRealProgress
	t.progress = progress
	if status != "" {
		t.status = status
	}
}

// SetPartialResult replaces the displayed result with an interim one.
func (t *Tracker) SetPartialResult(result *Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.result = result
}

// BeginFallback marks the silent degradation to the one-shot path. Partial
// streaming state is discarded.
func (t *Tracker) BeginFallback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	t.stopTickLocked()
	t.state = StateFallbackPending
	t.result = nil
	t.status = "正在批改…"
}

// Complete records the finalized result.
func (t *Tracker) Complete(result *Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	t.stopTickLocked()
	t.state = StateDone
	t.progress = 100
	t.status = "批改完成"
	t.result = result
}

// Fail records a terminal failure with a user-facing message.
func (t *Tracker) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	t.stopTickLocked()
	t.state = StateFailed
	t.status = message
}

// Snapshot returns the current observable state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{State: t.state, Progress: t.progress, Status: t.status, Result: t.result}
}

// Close tears the tracker down. No state update lands after Close returns,
// even if an in-flight stream read is still draining.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTickLocked()
	t.closed = true
}

func (t *Tracker) stopTickLocked() {
	if t.cancelTick != nil {
		t.cancelTick()
		t.cancelTick = nil
	}
}
