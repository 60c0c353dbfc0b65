package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/domain"
)

// WSHandler runs one quiz session per websocket connection. The connection
// is the host event queue from the session's point of view: learner input
// arrives on the read loop, countdown and submission events arrive from the
// session's subscription, and the writer goroutine serializes everything.
type WSHandler struct {
	service  *app.SessionService
	learners *LearnerResolver
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService, learners *LearnerResolver) *WSHandler {
	return &WSHandler{
		service:  service,
		learners: learners,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// NewRouter wires the engine's HTTP surface.
func NewRouter(h *WSHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", h.ServeWS)
	return r
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type jumpPayload struct {
	Index int `json:"index"`
}

type questionView struct {
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options"`
	Labels    []string `json:"labels"`
	Answer    string   `json:"answer,omitempty"`
	Remaining int      `json:"remaining"`
}

type countdownPayload struct {
	Remaining int `json:"remaining"`
}

type confirmPayload struct {
	Unanswered []int `json:"unanswered"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives a full session: start, navigate,
// answer, submit, hand back the attempt receipt.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	learnerID, err := h.learners.Resolve(r.URL.Query().Get("token"), r.URL.Query().Get("userId"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.Start(r.Context(), quizID, learnerID)
	if err != nil {
		// Content fetch failure is fatal for the session; the client is
		// expected to navigate away.
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.service.Release(session.ID)

	events, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				var msg outboundMessage[any]
				switch ev.Type {
				case app.EventCountdown:
					msg = outboundMessage[any]{Type: "countdown", Payload: countdownPayload{Remaining: ev.Remaining}}
				case app.EventSubmitted:
					msg = outboundMessage[any]{Type: "submitted", Payload: ev.Receipt}
				case app.EventSubmitFailed:
					msg = outboundMessage[any]{Type: "submitFailed", Payload: errorPayload{Message: ev.Err}}
				default:
					continue
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "question", Payload: h.currentView(session)}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid answer payload")
				continue
			}
			if err := session.Answer(payload.Option); err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: h.currentView(session)}
		case "next":
			if err := session.Next(); err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: h.currentView(session)}
		case "previous":
			if err := session.Previous(); err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: h.currentView(session)}
		case "jump":
			var payload jumpPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid jump payload")
				continue
			}
			// Client input is untrusted; bounds-check here so the
			// navigator's invariant assertion stays a programmer-error trap.
			if payload.Index < 0 || payload.Index >= session.QuestionCount() {
				send <- errorMessage("question index out of range")
				continue
			}
			if err := session.Jump(payload.Index); err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: h.currentView(session)}
		case "submit":
			unanswered, receipt, err := session.RequestSubmit(r.Context())
			if err != nil {
				send <- errorMessage(submissionErrorText(err))
				continue
			}
			if len(unanswered) > 0 {
				send <- outboundMessage[any]{Type: "confirmRequired", Payload: confirmPayload{Unanswered: unanswered}}
				continue
			}
			send <- outboundMessage[any]{Type: "submitted", Payload: receipt}
		case "confirmSubmit":
			receipt, err := session.ConfirmSubmit(r.Context())
			if err != nil {
				send <- errorMessage(submissionErrorText(err))
				continue
			}
			send <- outboundMessage[any]{Type: "submitted", Payload: receipt}
		case "cancelSubmit":
			// Nothing to undo: the confirmation gate never left InProgress.
			send <- outboundMessage[any]{Type: "question", Payload: h.currentView(session)}
		case "retrySubmit":
			receipt, err := session.RetrySubmit(r.Context())
			if err != nil {
				send <- errorMessage(submissionErrorText(err))
				continue
			}
			send <- outboundMessage[any]{Type: "submitted", Payload: receipt}
		default:
			send <- errorMessage("unsupported message type")
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) currentView(session *app.Session) questionView {
	index, question := session.Current()
	options := question.ActiveOptions()
	labels := make([]string, len(options))
	copy(labels, domain.OptionLabels[:len(options)])
	view := questionView{
		Index:     index,
		Total:     session.QuestionCount(),
		Prompt:    question.Prompt,
		Options:   options,
		Labels:    labels,
		Remaining: session.Remaining(),
	}
	if answer, ok := session.AnswerFor(index); ok {
		view.Answer = answer
	}
	return view
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// submissionErrorText maps engine errors onto client-facing text without
// leaking collaborator internals.
func submissionErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrScoringFailed):
		return "submission could not be scored"
	case errors.Is(err, domain.ErrSessionNotActive):
		return "session is no longer active"
	default:
		return err.Error()
	}
}
