// Package pomodoro implements the focus/break study timer.
package pomodoro

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Mode string

const (
	Focus Mode = "focus"
	Break Mode = "break"
)

const (
	DefaultFocusMinutes = 25
	DefaultBreakMinutes = 5
)

// State is a point-in-time view of a Timer.
type State struct {
	Mode     Mode
	Left     int // seconds
	Total    int // seconds of the current mode
	Active   bool
	Progress float64 // percent of the current mode elapsed
}

// Clock renders the remaining time as mm:ss.
func (s State) Clock() string {
	return Format(s.Left)
}

// Timer counts down one second per Tick. Reaching zero switches mode and keeps
// running. Safe for concurrent use.
type Timer struct {
	mu           sync.Mutex
	focusMinutes int
	breakMinutes int
	mode         Mode
	left         int
	active       bool
	onSwitch     func(Mode)
}

// New returns a paused timer in focus mode. Non-positive durations take the defaults.
func New(focusMinutes, breakMinutes int) *Timer {
	t := &Timer{mode: Focus}
	t.SetDurations(focusMinutes, breakMinutes)
	return t
}

// OnSwitch registers fn to run, outside the timer lock, whenever the mode flips on its own.
func (t *Timer) OnSwitch(fn func(Mode)) {
	t.mu.Lock()
	t.onSwitch = fn
	t.mu.Unlock()
}

// SetDurations changes both durations and resets the current mode.
func (t *Timer) SetDurations(focusMinutes, breakMinutes int) {
	if focusMinutes <= 0 {
		focusMinutes = DefaultFocusMinutes
	}
	if breakMinutes <= 0 {
		breakMinutes = DefaultBreakMinutes
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.focusMinutes = focusMinutes
	t.breakMinutes = breakMinutes
	t.resetLocked()
}

func (t *Timer) total() int {
	if t.mode == Focus {
		return t.focusMinutes * 60
	}
	return t.breakMinutes * 60
}

func (t *Timer) resetLocked() {
	t.active = false
	t.left = t.total()
}

func (t *Timer) Start() {
	t.mu.Lock()
	t.active = true
	t.mu.Unlock()
}

func (t *Timer) Pause() {
	t.mu.Lock()
	t.active = false
	t.mu.Unlock()
}

// Toggle starts a paused timer and pauses a running one.
func (t *Timer) Toggle() {
	t.mu.Lock()
	t.active = !t.active
	t.mu.Unlock()
}

// Reset stops the timer and refills the current mode.
func (t *Timer) Reset() {
	t.mu.Lock()
	t.resetLocked()
	t.mu.Unlock()
}

// Tick advances a running timer by one second. It reports whether the mode switched.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	if !t.active || t.left <= 0 {
		t.mu.Unlock()
		return false
	}

	t.left--
	if t.left > 0 {
		t.mu.Unlock()
		return false
	}

	if t.mode == Focus {
		t.mode = Break
	} else {
		t.mode = Focus
	}
	t.left = t.total()
	mode, fn := t.mode, t.onSwitch
	t.mu.Unlock()

	if fn != nil {
		fn(mode)
	}
	return true
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := t.total()
	s := State{Mode: t.mode, Left: t.left, Total: total, Active: t.active}
	if total > 0 {
		s.Progress = float64(total-t.left) / float64(total) * 100
	}
	return s
}

// Run ticks the timer on every value from ticks until ctx ends or ticks closes.
func (t *Timer) Run(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			t.Tick()
		}
	}
}

// Format renders seconds as mm:ss. Minutes are not wrapped into hours.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
