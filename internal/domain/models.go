package domain

const (
	// NoAnswer is the sentinel label submitted for a question the learner
	// never answered.
	NoAnswer = "No Answer"
	// UnusedOption marks an empty slot in a fixed five-slot option row.
	UnusedOption = "N/A"
	// MaxOptions is the number of option slots per question.
	MaxOptions = 5
)

// OptionLabels are the letters shown next to options, in slot order.
var OptionLabels = [MaxOptions]string{"A", "B", "C", "D", "E"}

// Question is one MCQ item. Options holds up to five slots; unused slots
// carry the UnusedOption sentinel and are filtered before display.
// Questions are immutable once loaded.
type Question struct {
	Prompt     string   `json:"question_text"`
	Options    []string `json:"options"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// ActiveOptions returns the usable option texts in slot order.
func (q Question) ActiveOptions() []string {
	active := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		if opt == UnusedOption || opt == "" {
			continue
		}
		active = append(active, opt)
	}
	return active
}

// Quiz is an ordered question set served by the content collaborator.
type Quiz struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Response is the per-question record sent to the scoring collaborator.
type Response struct {
	QuestionText   string  `json:"question_text"`
	SelectedAnswer string  `json:"selected_answer"`
	TimeTaken      float64 `json:"time_taken"`
}

// Submission is the full payload for one finished attempt.
type Submission struct {
	UserID    string     `json:"user_id"`
	QuizID    string     `json:"quiz_id"`
	Responses []Response `json:"responses"`
}

// Receipt is the attempt handle the scoring collaborator returns on success.
// It is everything a caller needs to route to a results view.
type Receipt struct {
	UserID        string `json:"user_id"`
	QuizID        string `json:"quiz_id"`
	AttemptNumber int    `json:"attempt_number"`
}
