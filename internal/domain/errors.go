package domain

import "errors"

var (
	// ErrQuizNotFound indicates the content collaborator has no quiz for the ID.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz indicates the content collaborator returned no questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrSessionNotFound is returned when no live session matches the ID.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionNotActive is returned for input arriving outside InProgress.
	ErrSessionNotActive = errors.New("session is not accepting input")
	// ErrOptionNotFound indicates the chosen label is not on the current question.
	ErrOptionNotFound = errors.New("option not found on current question")
	// ErrScoringFailed wraps failures from the scoring collaborator.
	ErrScoringFailed = errors.New("scoring service rejected the submission")
	// ErrRetryExhausted is returned when a failed submission has already been retried.
	ErrRetryExhausted = errors.New("submission retry already used")
)
