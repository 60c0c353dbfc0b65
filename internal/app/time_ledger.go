package app

import "time"

// timeLedger accumulates dwell time per question index across revisits.
// Revisiting a question adds to its existing total, never replaces it.
type timeLedger struct {
	totals    map[int]time.Duration
	current   int
	enteredAt time.Time
	open      bool
}

func newTimeLedger() *timeLedger {
	return &timeLedger{totals: make(map[int]time.Duration)}
}

// enter records that index became the current question at the given time.
func (l *timeLedger) enter(index int, at time.Time) {
	l.current = index
	l.enteredAt = at
	l.open = true
	if _, ok := l.totals[index]; !ok {
		l.totals[index] = 0
	}
}

// leave closes the open interval for index and adds its duration to the
// total. A leave without a matching enter is a no-op; a clock running
// backwards never produces negative time.
func (l *timeLedger) leave(index int, at time.Time) {
	if !l.open || l.current != index {
		return
	}
	if d := at.Sub(l.enteredAt); d > 0 {
		l.totals[index] += d
	}
	l.open = false
}

// closeCurrent closes whatever interval is open. Used on ordinary navigation
// and immediately before submission so the last question's dwell time is
// never lost.
func (l *timeLedger) closeCurrent(at time.Time) {
	if l.open {
		l.leave(l.current, at)
	}
}

func (l *timeLedger) total(index int) time.Duration {
	return l.totals[index]
}

func (l *timeLedger) snapshot() map[int]time.Duration {
	out := make(map[int]time.Duration, len(l.totals))
	for index, d := range l.totals {
		out[index] = d
	}
	return out
}
