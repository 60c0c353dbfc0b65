package app

// answerLedger maps question index to the chosen option label. Absence of a
// key means unanswered; set overwrites unconditionally.
type answerLedger struct {
	choices map[int]string
}

func newAnswerLedger() *answerLedger {
	return &answerLedger{choices: make(map[int]string)}
}

func (l *answerLedger) set(index int, label string) {
	l.choices[index] = label
}

func (l *answerLedger) get(index int) (string, bool) {
	label, ok := l.choices[index]
	return label, ok
}

// unansweredIndices returns every index in [0, total) with no recorded
// answer, in ascending order. The ordering is surfaced verbatim to the
// learner before a risky submit.
func (l *answerLedger) unansweredIndices(total int) []int {
	missing := make([]int, 0)
	for i := 0; i < total; i++ {
		if _, ok := l.choices[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}
