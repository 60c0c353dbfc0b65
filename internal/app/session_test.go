package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-session-engine/internal/domain"
)

// fakeClock lets tests control both the countdown and the wall clock.
// Ticks are driven by calling session.tick directly, so tests stay
// deterministic: advance moves now, then tick accounts for one second.
type fakeClock struct {
	now time.Time
	ch  chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ch:  make(chan time.Time),
	}
}

func (c *fakeClock) Now() time.Time         { return c.now }
func (c *fakeClock) Tick() <-chan time.Time { return c.ch }
func (c *fakeClock) Stop()                  {}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeScorer struct {
	mu    sync.Mutex
	calls int
	last  domain.Submission
	err   error
	next  domain.Receipt
}

func (f *fakeScorer) Score(_ context.Context, sub domain.Submission) (domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = sub
	if f.err != nil {
		return domain.Receipt{}, f.err
	}
	return f.next, nil
}

func threeQuestions() []domain.Question {
	return []domain.Question{
		{Prompt: "Q1", Options: []string{"a", "b", "c", domain.UnusedOption, domain.UnusedOption}},
		{Prompt: "Q2", Options: []string{"a", "b", domain.UnusedOption, domain.UnusedOption, domain.UnusedOption}},
		{Prompt: "Q3", Options: []string{"a", "b", "c", "d", domain.UnusedOption}},
	}
}

func newTestSession(t *testing.T, duration int, scorer *fakeScorer) (*Session, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	session := NewSession("s1", "quiz-1", "learner-1", clock, scorer, duration)
	if err := session.Begin(threeQuestions()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	t.Cleanup(session.Close)
	return session, clock
}

func TestBeginRequiresQuestions(t *testing.T) {
	session := NewSession("s1", "quiz-1", "learner-1", newFakeClock(), &fakeScorer{}, 10)
	if err := session.Begin(nil); !errors.Is(err, domain.ErrEmptyQuiz) {
		t.Fatalf("expected ErrEmptyQuiz, got %v", err)
	}
	if session.State() != StateLoading {
		t.Fatalf("expected session still loading, got %s", session.State())
	}
}

// 3 questions, 5-second countdown. The learner answers Q1
// with "B" at t=1s, moves to Q2 at t=2s, and lets the timer expire without
// touching Q2 or Q3.
func TestTimeoutSubmitsUnconditionally(t *testing.T) {
	scorer := &fakeScorer{next: domain.Receipt{UserID: "learner-1", QuizID: "quiz-1", AttemptNumber: 1}}
	session, clock := newTestSession(t, 5, scorer)

	clock.advance(time.Second)
	session.tick()
	if err := session.Answer("B"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	clock.advance(time.Second)
	session.tick()
	if err := session.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}

	for i := 0; i < 3; i++ {
		clock.advance(time.Second)
		session.tick()
	}

	if session.State() != StateTerminated {
		t.Fatalf("expected terminated, got %s", session.State())
	}
	if scorer.calls != 1 {
		t.Fatalf("expected exactly one scoring call, got %d", scorer.calls)
	}

	sub := scorer.last
	if sub.UserID != "learner-1" || sub.QuizID != "quiz-1" {
		t.Fatalf("unexpected submission identifiers: %+v", sub)
	}
	wantTimes := []float64{2, 3, 0}
	wantAnswers := []string{"B", domain.NoAnswer, domain.NoAnswer}
	for i, resp := range sub.Responses {
		if resp.TimeTaken != wantTimes[i] {
			t.Fatalf("q%d: expected %vs dwell, got %v", i+1, wantTimes[i], resp.TimeTaken)
		}
		if resp.SelectedAnswer != wantAnswers[i] {
			t.Fatalf("q%d: expected answer %q, got %q", i+1, wantAnswers[i], resp.SelectedAnswer)
		}
	}

	receipt, ok := session.Receipt()
	if !ok || receipt.AttemptNumber != 1 {
		t.Fatalf("expected attempt receipt, got %+v ok=%v", receipt, ok)
	}
}

// All questions answered, manual submit with time remaining.
// No confirmation gate, clock stopped, exactly one scoring call.
func TestManualSubmitAllAnsweredSkipsConfirmation(t *testing.T) {
	scorer := &fakeScorer{next: domain.Receipt{AttemptNumber: 2}}
	session, clock := newTestSession(t, 10, scorer)

	for i := 0; i < 3; i++ {
		if err := session.Answer("A"); err != nil {
			t.Fatalf("answer q%d: %v", i, err)
		}
		if err := session.Next(); err != nil {
			t.Fatalf("next: %v", err)
		}
	}

	unanswered, receipt, err := session.RequestSubmit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if unanswered != nil {
		t.Fatalf("expected no confirmation gate, got %v", unanswered)
	}
	if receipt.AttemptNumber != 2 {
		t.Fatalf("expected receipt, got %+v", receipt)
	}
	if scorer.calls != 1 {
		t.Fatalf("expected one scoring call, got %d", scorer.calls)
	}

	// Late ticks must not decrement or resubmit.
	clock.advance(time.Second)
	session.tick()
	if scorer.calls != 1 || session.State() != StateTerminated {
		t.Fatalf("late tick changed session: calls=%d state=%s", scorer.calls, session.State())
	}
}

// Submit with Q3 unanswered, confirmation lists [3], learner
// cancels, session keeps running with no extra time lost.
func TestConfirmationGateAndCancel(t *testing.T) {
	scorer := &fakeScorer{}
	session, clock := newTestSession(t, 10, scorer)

	_ = session.Answer("A")
	_ = session.Next()
	_ = session.Answer("B")

	unanswered, _, err := session.RequestSubmit(context.Background())
	if err != nil {
		t.Fatalf("request submit: %v", err)
	}
	if len(unanswered) != 1 || unanswered[0] != 3 {
		t.Fatalf("expected unanswered list [3], got %v", unanswered)
	}
	if scorer.calls != 0 {
		t.Fatalf("gate must not call the scorer, calls=%d", scorer.calls)
	}

	// Cancelling is doing nothing: the session never left InProgress.
	if session.State() != StateInProgress {
		t.Fatalf("expected in_progress after cancel, got %s", session.State())
	}
	clock.advance(time.Second)
	session.tick()
	if session.Remaining() != 9 {
		t.Fatalf("expected countdown still running at 9, got %d", session.Remaining())
	}

	// Confirming proceeds with the unanswered sentinel in place.
	if _, err := session.ConfirmSubmit(context.Background()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if scorer.calls != 1 {
		t.Fatalf("expected one scoring call after confirm, got %d", scorer.calls)
	}
	if got := scorer.last.Responses[2].SelectedAnswer; got != domain.NoAnswer {
		t.Fatalf("expected %q sentinel for q3, got %q", domain.NoAnswer, got)
	}
}

func TestSubmitIsAtMostOncePerSession(t *testing.T) {
	scorer := &fakeScorer{}
	session, clock := newTestSession(t, 1, scorer)
	_ = session.Answer("A")

	// Countdown expiry submits first; a manual click racing it is ignored.
	clock.advance(time.Second)
	session.tick()
	if _, _, err := session.RequestSubmit(context.Background()); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected racing submit rejected, got %v", err)
	}
	if scorer.calls != 1 {
		t.Fatalf("expected exactly one scoring call, got %d", scorer.calls)
	}
}

func TestRevisitAccumulatesDwellTime(t *testing.T) {
	scorer := &fakeScorer{}
	session, clock := newTestSession(t, 100, scorer)

	clock.advance(2 * time.Second) // a = 2s on q0
	_ = session.Next()
	clock.advance(4 * time.Second)
	_ = session.Previous()
	clock.advance(3 * time.Second) // b = 3s on q0
	_ = session.Jump(2)

	if got := session.TimeSpent(0); got != 5*time.Second {
		t.Fatalf("expected a+b=5s on q0, got %v", got)
	}
	if got := session.TimeSpent(1); got != 4*time.Second {
		t.Fatalf("expected 4s on q1, got %v", got)
	}
}

func TestAnswerRejectsUnknownLabel(t *testing.T) {
	session, _ := newTestSession(t, 10, &fakeScorer{})

	// Q1 has three active options, so D is off the end.
	if err := session.Answer("D"); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
	if err := session.Answer("C"); err != nil {
		t.Fatalf("expected C accepted, got %v", err)
	}
}

func TestScoringFailureParksSessionAndAllowsOneRetry(t *testing.T) {
	scorer := &fakeScorer{err: errors.New("boom")}
	session, _ := newTestSession(t, 10, scorer)
	for i := 0; i < 3; i++ {
		_ = session.Answer("A")
		_ = session.Next()
	}

	if _, _, err := session.RequestSubmit(context.Background()); !errors.Is(err, domain.ErrScoringFailed) {
		t.Fatalf("expected wrapped scoring failure, got %v", err)
	}
	if session.State() != StateSubmitFailed {
		t.Fatalf("expected submit_failed, got %s", session.State())
	}
	if session.SubmissionError() == nil {
		t.Fatalf("expected recorded submission error")
	}

	// Navigation and answers are refused once the ledgers are closed.
	if err := session.Next(); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected navigation refused, got %v", err)
	}

	frozen := scorer.last
	scorer.err = nil
	scorer.next = domain.Receipt{AttemptNumber: 3}
	receipt, err := session.RetrySubmit(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if receipt.AttemptNumber != 3 || session.State() != StateTerminated {
		t.Fatalf("expected terminated with receipt, got %+v state=%s", receipt, session.State())
	}
	// The retry re-sends the frozen payload byte for byte.
	for i := range frozen.Responses {
		if frozen.Responses[i] != scorer.last.Responses[i] {
			t.Fatalf("retry payload drifted at %d: %+v vs %+v", i, frozen.Responses[i], scorer.last.Responses[i])
		}
	}

	if _, err := session.RetrySubmit(context.Background()); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected retry refused after termination, got %v", err)
	}
}

func TestRetryIsSingleUse(t *testing.T) {
	scorer := &fakeScorer{err: errors.New("unreachable")}
	session, _ := newTestSession(t, 10, scorer)
	_ = session.Answer("A")

	if _, err := session.ConfirmSubmit(context.Background()); err == nil {
		t.Fatalf("expected first submission to fail")
	}
	if _, err := session.RetrySubmit(context.Background()); err == nil {
		t.Fatalf("expected retry to fail")
	}
	if _, err := session.RetrySubmit(context.Background()); !errors.Is(err, domain.ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
}

func TestSubscribeReceivesCountdownAndResult(t *testing.T) {
	scorer := &fakeScorer{next: domain.Receipt{AttemptNumber: 7}}
	session, clock := newTestSession(t, 5, scorer)

	events, cancel := session.Subscribe()
	defer cancel()

	first := <-events
	if first.Type != EventCountdown || first.Remaining != 5 {
		t.Fatalf("expected initial countdown snapshot of 5, got %+v", first)
	}

	clock.advance(time.Second)
	session.tick()
	ev := <-events
	if ev.Type != EventCountdown || ev.Remaining != 4 {
		t.Fatalf("expected countdown 4, got %+v", ev)
	}

	_ = session.Answer("A")
	if _, err := session.ConfirmSubmit(context.Background()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	ev = <-events
	if ev.Type != EventSubmitted || ev.Receipt.AttemptNumber != 7 {
		t.Fatalf("expected submitted event, got %+v", ev)
	}
}
