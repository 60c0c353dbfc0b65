package app

import "fmt"

// navigator holds the current question index and enforces bounds [0, count).
// Every transition goes through moveTo, which fires onMove before the index
// changes; the session wires dwell-time accounting into that hook so the
// pairing cannot be skipped by a new navigation path.
type navigator struct {
	index  int
	count  int
	onMove func(from, to int)
}

func newNavigator(count int, onMove func(from, to int)) *navigator {
	return &navigator{count: count, onMove: onMove}
}

// next advances by one. No-op at the last question.
func (n *navigator) next() {
	if n.index >= n.count-1 {
		return
	}
	n.moveTo(n.index + 1)
}

// previous steps back by one. No-op at the first question.
func (n *navigator) previous() {
	if n.index <= 0 {
		return
	}
	n.moveTo(n.index - 1)
}

// jumpTo moves directly to index. An out-of-range index is a programming
// error in the caller: clamping it silently would corrupt the time ledger's
// enter/leave pairing, so it panics instead.
func (n *navigator) jumpTo(index int) {
	if index < 0 || index >= n.count {
		panic(fmt.Sprintf("navigator: index %d out of range [0,%d)", index, n.count))
	}
	if index == n.index {
		return
	}
	n.moveTo(index)
}

func (n *navigator) moveTo(to int) {
	if n.onMove != nil {
		n.onMove(n.index, to)
	}
	n.index = to
}
