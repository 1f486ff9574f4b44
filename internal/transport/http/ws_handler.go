package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"lesson-arcade-service/internal/app"
	"lesson-arcade-service/internal/domain"
)

// WSHandler runs the play screen over a websocket: one connection, one session.
type WSHandler struct {
	service  *app.PlayService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.PlayService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectLevelPayload struct {
	LevelID string `json:"levelId"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type finishPayload struct {
	Name string `json:"name"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type startedPayload struct {
	Lesson      domain.LessonProject      `json:"lesson"`
	Session     domain.SessionSnapshot    `json:"session"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

type evaluatingPayload struct {
	QuestionID string `json:"questionId"`
}

type levelCompletePayload struct {
	LevelID     string                 `json:"levelId"`
	NextLevelID string                 `json:"nextLevelId,omitempty"`
	Session     domain.SessionSnapshot `json:"session"`
}

type leaderboardPayload struct {
	LessonID string                    `json:"lessonId"`
	Entries  []domain.LeaderboardEntry `json:"entries"`
}

// ServeWS upgrades the request and drives a play session from client messages.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	lessonID := r.URL.Query().Get("lessonId")
	if lessonID == "" {
		http.Error(w, "missing lessonId", http.StatusBadRequest)
		return
	}
	defaultName := r.URL.Query().Get("name")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session, err := h.service.Start(ctx, lessonID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	sessionID := session.ID()
	defer h.service.Leave(sessionID)

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	var evaluations sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// emit never blocks once the writer has stopped.
	emit := func(typ string, payload any) {
		select {
		case send <- outboundMessage[any]{Type: typ, Payload: payload}:
		case <-writerDone:
		}
	}
	fail := func(err error) {
		emit("error", errorPayload{Message: err.Error()})
	}

	emit("started", startedPayload{
		Lesson:      session.Lesson(),
		Session:     session.Snapshot(),
		Leaderboard: h.service.Leaderboard(ctx, lessonID),
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "selectLevel":
			var payload selectLevelPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit("error", errorPayload{Message: "invalid selectLevel payload"})
				continue
			}
			snapshot, err := h.service.SelectLevel(sessionID, payload.LevelID)
			if err != nil {
				fail(err)
				continue
			}
			emit("session", snapshot)

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit("error", errorPayload{Message: "invalid answer payload"})
				continue
			}
			if strings.TrimSpace(payload.Answer) == "" {
				fail(domain.ErrEmptyAnswer)
				continue
			}
			emit("evaluating", evaluatingPayload{QuestionID: payload.QuestionID})
			evaluations.Add(1)
			go func() {
				defer evaluations.Done()
				outcome, err := h.service.SubmitAnswer(ctx, sessionID, payload.QuestionID, payload.Answer)
				if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrStaleEvaluation) {
					return
				}
				if err != nil {
					fail(err)
					return
				}
				emit("evaluation", outcome)
			}()

		case "next":
			snapshot, levelDone, err := h.service.Advance(sessionID)
			if err != nil {
				fail(err)
				continue
			}
			if !levelDone {
				emit("advanced", snapshot)
				continue
			}
			done := levelCompletePayload{LevelID: snapshot.CurrentLevelID, Session: snapshot}
			if next, ok := session.NextLevel(); ok {
				done.NextLevelID = next.ID
			}
			emit("levelComplete", done)

		case "finish":
			var payload finishPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					emit("error", errorPayload{Message: "invalid finish payload"})
					continue
				}
			}
			if payload.Name == "" {
				payload.Name = defaultName
			}
			entries, err := h.service.Finish(ctx, sessionID, payload.Name)
			if err != nil {
				fail(err)
				continue
			}
			emit("leaderboard", leaderboardPayload{LessonID: lessonID, Entries: entries})

		case "playAgain":
			snapshot, err := h.service.PlayAgain(sessionID)
			if err != nil {
				fail(err)
				continue
			}
			emit("session", snapshot)

		default:
			emit("error", errorPayload{Message: "unsupported message type"})
		}
	}

	cancel()
	evaluations.Wait()
	close(send)
	<-writerDone
}
