// Package http exposes the session engine to the UI shell over a
// websocket: one socket drives one quiz attempt and streams state plus
// feedback pulses back.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-study-service/internal/app"
	"quiz-study-service/internal/feedback"
)

type WSHandler struct {
	store    *app.QuestionStore
	exams    *app.ExamGenerator
	hub      *feedback.Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(store *app.QuestionStore, exams *app.ExamGenerator, hub *feedback.Hub, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		store:  store,
		exams:  exams,
		hub:    hub,
		logger: logger,
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

type startPayload struct {
	Mode     string `json:"mode"` // all | category | exam
	Category string `json:"category,omitempty"`
}

type selectPayload struct {
	OptionID string `json:"optionId"`
}

type inputPayload struct {
	Text string `json:"text"`
}

type advancePayload struct {
	Mode string `json:"mode,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs one quiz attempt over the socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	session := app.NewSession(h.store, h.hub, h.logger)
	defer session.Stop()

	pulses, cancel := h.hub.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	pulsesDone := make(chan struct{})

	// One writer goroutine; gorilla connections do not allow concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(pulsesDone)
		for {
			select {
			case pulse, ok := <-pulses:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "feedback", Payload: pulse}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMsg("invalid start payload")
				continue
			}
			switch payload.Mode {
			case "exam":
				session.StartExam(h.exams.Generate(h.store.AllQuestions()))
			case "category":
				session.Start(h.store.CategorySet(payload.Category))
			default:
				session.Start(h.store.StudySet())
			}
			send <- stateMsg(session)
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMsg("invalid select payload")
				continue
			}
			if err := session.SelectOption(payload.OptionID); err != nil {
				send <- errorMsg(err.Error())
				continue
			}
			send <- stateMsg(session)
		case "input":
			var payload inputPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMsg("invalid input payload")
				continue
			}
			session.SetInput(payload.Text)
		case "advance":
			var payload advancePayload
			_ = json.Unmarshal(inbound.Payload, &payload)
			session.Advance(r.Context(), payload.Mode)
			send <- stateMsg(session)
			if session.Snapshot().Finished {
				send <- outboundMessage[any]{Type: "result", Payload: session.Result()}
			}
		case "finish":
			var payload advancePayload
			_ = json.Unmarshal(inbound.Payload, &payload)
			session.Finish(r.Context(), payload.Mode)
			send <- stateMsg(session)
			send <- outboundMessage[any]{Type: "result", Payload: session.Result()}
		case "reset":
			session.Reset()
			send <- stateMsg(session)
		default:
			send <- errorMsg("unsupported message type")
		}
	}

	close(closeSignals)
	<-pulsesDone
	close(send)
	<-writerDone
}

func stateMsg(session *app.Session) outboundMessage[any] {
	return outboundMessage[any]{Type: "state", Payload: session.Snapshot()}
}

func errorMsg(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
