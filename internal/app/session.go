package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"quiz-session-engine/internal/domain"
)

// State is the lifecycle phase of a quiz session.
type State string

const (
	StateLoading      State = "loading"
	StateInProgress   State = "in_progress"
	StateSubmitting   State = "submitting"
	StateSubmitFailed State = "submit_failed"
	StateTerminated   State = "terminated"
)

// SubmitReason distinguishes the two triggers that share the submit path.
type SubmitReason string

const (
	SubmitManual  SubmitReason = "manual"
	SubmitTimeout SubmitReason = "timeout"
)

// Scorer is the external collaborator that grades a finished attempt.
type Scorer interface {
	Score(ctx context.Context, sub domain.Submission) (domain.Receipt, error)
}

// EventType tags the updates a session publishes to subscribers.
type EventType string

const (
	EventCountdown    EventType = "countdown"
	EventSubmitted    EventType = "submitted"
	EventSubmitFailed EventType = "submitFailed"
)

// Event is pushed to subscribers when the session's observable state changes
// without a caller-initiated method (countdown ticks, timeout submission).
type Event struct {
	Type      EventType
	Remaining int
	State     State
	Receipt   domain.Receipt
	Err       string
}

// Session drives one learner's timed attempt at one quiz: countdown, answer
// and time ledgers, bounded navigation, and the at-most-once submission
// protocol. All entry points are serialized by a single mutex; the only
// other goroutine is the tick loop draining the Clock.
type Session struct {
	ID        string
	QuizID    string
	LearnerID string

	clock  Clock
	scorer Scorer

	mu          sync.Mutex
	state       State
	questions   []domain.Question
	nav         *navigator
	answers     *answerLedger
	times       *timeLedger
	remaining   int
	receipt     domain.Receipt
	submitErr   error
	retried     bool
	subscribers map[chan Event]struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// NewSession builds a session in the Loading state. Begin supplies the
// question set and starts the countdown.
func NewSession(id, quizID, learnerID string, clock Clock, scorer Scorer, durationSeconds int) *Session {
	return &Session{
		ID:          id,
		QuizID:      quizID,
		LearnerID:   learnerID,
		clock:       clock,
		scorer:      scorer,
		state:       StateLoading,
		remaining:   durationSeconds,
		answers:     newAnswerLedger(),
		times:       newTimeLedger(),
		subscribers: make(map[chan Event]struct{}),
		done:        make(chan struct{}),
	}
}

// Begin installs the question set, moves to InProgress, and starts the tick
// loop. Navigation begins at index 0 with its dwell interval open.
func (s *Session) Begin(questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoading {
		return domain.ErrSessionNotActive
	}
	if len(questions) == 0 {
		return domain.ErrEmptyQuiz
	}

	s.questions = questions
	s.nav = newNavigator(len(questions), func(from, to int) {
		now := s.clock.Now()
		s.times.leave(from, now)
		s.times.enter(to, now)
	})
	s.times.enter(0, s.clock.Now())
	s.state = StateInProgress

	go s.run()
	return nil
}

func (s *Session) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.clock.Tick():
			s.tick()
		}
	}
}

// tick decrements the countdown by one second. Reaching zero triggers an
// unconditional submission: no confirmation, no unanswered-question gate.
func (s *Session) tick() {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	remaining := s.remaining
	s.broadcastLocked(Event{Type: EventCountdown, Remaining: remaining, State: s.state})
	s.mu.Unlock()

	if remaining == 0 {
		if _, err := s.submit(context.Background(), SubmitTimeout); err != nil {
			log.Printf("session %s: timeout submission: %v", s.ID, err)
		}
	}
}

// Answer records the chosen option label for the current question,
// overwriting any previous choice.
func (s *Session) Answer(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return domain.ErrSessionNotActive
	}
	active := s.questions[s.nav.index].ActiveOptions()
	valid := false
	for i := range active {
		if domain.OptionLabels[i] == label {
			valid = true
			break
		}
	}
	if !valid {
		return domain.ErrOptionNotFound
	}
	s.answers.set(s.nav.index, label)
	return nil
}

// Next moves to the following question; a no-op at the last one.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.ErrSessionNotActive
	}
	s.nav.next()
	return nil
}

// Previous moves to the preceding question; a no-op at the first one.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.ErrSessionNotActive
	}
	s.nav.previous()
	return nil
}

// Jump moves directly to index. Callers own bounds validation of untrusted
// input; an out-of-range index here panics.
func (s *Session) Jump(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.ErrSessionNotActive
	}
	s.nav.jumpTo(index)
	return nil
}

// RequestSubmit starts a learner-initiated submission. When questions remain
// unanswered nothing changes: the returned slice holds their 1-based
// positions for the confirmation prompt, and the countdown keeps running
// until the caller either confirms (ConfirmSubmit) or abandons the attempt.
// With every question answered the submission proceeds immediately.
func (s *Session) RequestSubmit(ctx context.Context) ([]int, domain.Receipt, error) {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return nil, domain.Receipt{}, domain.ErrSessionNotActive
	}
	unanswered := s.answers.unansweredIndices(len(s.questions))
	s.mu.Unlock()

	if len(unanswered) > 0 {
		positions := make([]int, len(unanswered))
		for i, index := range unanswered {
			positions[i] = index + 1
		}
		return positions, domain.Receipt{}, nil
	}

	receipt, err := s.submit(ctx, SubmitManual)
	return nil, receipt, err
}

// ConfirmSubmit submits despite unanswered questions, after the learner has
// seen the warning.
func (s *Session) ConfirmSubmit(ctx context.Context) (domain.Receipt, error) {
	return s.submit(ctx, SubmitManual)
}

// submit is the single path shared by the timeout and manual triggers. The
// state machine makes it at-most-once: only InProgress can enter Submitting,
// and the clock stops before the scoring call so a late tick cannot race a
// second submission.
func (s *Session) submit(ctx context.Context, reason SubmitReason) (domain.Receipt, error) {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return domain.Receipt{}, domain.ErrSessionNotActive
	}
	s.state = StateSubmitting
	s.stop()
	s.times.closeCurrent(s.clock.Now())
	sub := s.buildSubmissionLocked()
	s.mu.Unlock()

	log.Printf("session %s: submitting quiz %s (%s)", s.ID, s.QuizID, reason)
	return s.callScorer(ctx, sub)
}

// RetrySubmit re-sends the frozen payload after a failed submission. One
// retry is allowed; the countdown never restarts and the time ledger stays
// closed, so the recorded dwell times are identical to the first attempt.
func (s *Session) RetrySubmit(ctx context.Context) (domain.Receipt, error) {
	s.mu.Lock()
	if s.state != StateSubmitFailed {
		s.mu.Unlock()
		return domain.Receipt{}, domain.ErrSessionNotActive
	}
	if s.retried {
		s.mu.Unlock()
		return domain.Receipt{}, domain.ErrRetryExhausted
	}
	s.retried = true
	s.state = StateSubmitting
	sub := s.buildSubmissionLocked()
	s.mu.Unlock()

	log.Printf("session %s: retrying submission for quiz %s", s.ID, s.QuizID)
	return s.callScorer(ctx, sub)
}

func (s *Session) callScorer(ctx context.Context, sub domain.Submission) (domain.Receipt, error) {
	receipt, err := s.scorer.Score(ctx, sub)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateSubmitFailed
		s.submitErr = err
		log.Printf("session %s: submission failed: %v", s.ID, err)
		s.broadcastLocked(Event{Type: EventSubmitFailed, State: s.state, Err: err.Error()})
		return domain.Receipt{}, fmt.Errorf("%w: %v", domain.ErrScoringFailed, err)
	}
	s.state = StateTerminated
	s.receipt = receipt
	s.broadcastLocked(Event{Type: EventSubmitted, State: s.state, Receipt: receipt})
	return receipt, nil
}

func (s *Session) buildSubmissionLocked() domain.Submission {
	responses := make([]domain.Response, len(s.questions))
	for i, q := range s.questions {
		label, ok := s.answers.get(i)
		if !ok {
			label = domain.NoAnswer
		}
		responses[i] = domain.Response{
			QuestionText:   q.Prompt,
			SelectedAnswer: label,
			TimeTaken:      s.times.total(i).Seconds(),
		}
	}
	return domain.Submission{
		UserID:    s.LearnerID,
		QuizID:    s.QuizID,
		Responses: responses,
	}
}

// Close tears the session down without submitting: the clock stops and the
// tick loop exits. Used when the learner disconnects mid-session.
func (s *Session) Close() {
	s.stop()
}

// stop halts the clock and tick loop exactly once.
func (s *Session) stop() {
	s.stopOnce.Do(func() {
		s.clock.Stop()
		close(s.done)
	})
}

// State reports the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Remaining reports countdown seconds left.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Current returns the current question index and the question itself.
func (s *Session) Current() (int, domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.index, s.questions[s.nav.index]
}

// QuestionCount reports the size of the question set.
func (s *Session) QuestionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions)
}

// AnswerFor returns the recorded label for index, if any.
func (s *Session) AnswerFor(index int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.get(index)
}

// TimeSpent reports the accumulated dwell time for index.
func (s *Session) TimeSpent(index int) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.times.total(index)
}

// Receipt returns the attempt handle once the session has terminated.
func (s *Session) Receipt() (domain.Receipt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receipt, s.state == StateTerminated
}

// SubmissionError returns the recorded scoring failure, if any.
func (s *Session) SubmissionError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitErr
}

// Subscribe returns a channel of session events, starting with a countdown
// snapshot. The caller must invoke the returned cancel function to avoid
// leaks.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := Event{Type: EventCountdown, Remaining: s.remaining, State: s.state}
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(ev Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// A slow subscriber only ever misses stale updates.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
