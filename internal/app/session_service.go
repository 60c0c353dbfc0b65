package app

import (
	"context"

	"github.com/google/uuid"

	"quiz-session-engine/internal/domain"
)

// SessionRegistry abstracts how live sessions are tracked.
type SessionRegistry interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Remove(sessionID string)
}

// ContentRepository loads quiz content (from cache/backing store).
type ContentRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SessionService owns session construction and lookup. Each session gets its
// own clock and ledgers; nothing is shared between sessions.
type SessionService struct {
	content  ContentRepository
	scorer   Scorer
	sessions SessionRegistry
	duration int
	newClock func() Clock
}

func NewSessionService(content ContentRepository, scorer Scorer, registry SessionRegistry, durationSeconds int) *SessionService {
	return &SessionService{
		content:  content,
		scorer:   scorer,
		sessions: registry,
		duration: durationSeconds,
		newClock: NewTickerClock,
	}
}

// NewSessionServiceWithClock is test-only for deterministic countdowns.
func NewSessionServiceWithClock(content ContentRepository, scorer Scorer, registry SessionRegistry, durationSeconds int, newClock func() Clock) *SessionService {
	svc := NewSessionService(content, scorer, registry, durationSeconds)
	svc.newClock = newClock
	return svc
}

// Start fetches the question set for quizID and begins a session for the
// learner. A content fetch failure is fatal: the error propagates and no
// session is registered.
func (s *SessionService) Start(ctx context.Context, quizID, learnerID string) (*Session, error) {
	quiz, err := s.content.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return s.StartWithQuestions(quizID, learnerID, quiz.Questions)
}

// StartWithQuestions begins a session from a caller-supplied question set,
// skipping the content fetch.
func (s *SessionService) StartWithQuestions(quizID, learnerID string, questions []domain.Question) (*Session, error) {
	session := NewSession(uuid.NewString(), quizID, learnerID, s.newClock(), s.scorer, s.duration)
	if err := session.Begin(questions); err != nil {
		return nil, err
	}
	s.sessions.Put(session)
	return session, nil
}

// Get looks up a live session by ID.
func (s *SessionService) Get(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Release tears down a session and drops it from the registry.
func (s *SessionService) Release(sessionID string) {
	if session, ok := s.sessions.Get(sessionID); ok {
		session.Close()
	}
	s.sessions.Remove(sessionID)
}
