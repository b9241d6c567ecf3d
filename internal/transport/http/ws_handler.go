package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"ordering-quiz-service/internal/app"

	"github.com/gorilla/websocket"
)

// WSHandler drives one quiz attempt over a single websocket connection.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(service *app.QuizService, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	SubmittedOrder []string `json:"submittedOrder"`
	TimeTaken      int      `json:"timeTaken"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ServeWS upgrades the request and serves the session named by the sessionId
// and owner query parameters. The client sends "submit" and "results"; the
// server answers with "questionResult", "question", "completed", "results" or
// "error".
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = ownerFrom(r)
	}
	if sessionID == "" || owner == "" {
		http.Error(w, "missing sessionId or owner", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// single writer; gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", "session_id", sessionID, "error", err)
				return
			}
		}
	}()

	if !h.pushCurrent(ctx, send, sessionID, owner) {
		close(send)
		<-writerDone
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage(http.StatusBadRequest, "invalid submit payload")
				continue
			}
			outcome, err := h.service.SubmitAndAdvance(ctx, sessionID, owner, app.Submission{
				Order:     payload.SubmittedOrder,
				TimeTaken: payload.TimeTaken,
			})
			if err != nil {
				send <- h.errorFor(err)
				continue
			}
			send <- outboundMessage[any]{Type: "questionResult", Payload: toSubmitResponse(outcome)}
			h.pushCurrent(ctx, send, sessionID, owner)
		case "results":
			results, err := h.service.Results(ctx, sessionID, owner)
			if err != nil {
				send <- h.errorFor(err)
				continue
			}
			send <- outboundMessage[any]{Type: "results", Payload: toResultsResponse(results)}
		default:
			send <- errorMessage(http.StatusBadRequest, "unsupported message type")
		}
	}

	close(send)
	<-writerDone
}

// pushCurrent queues the next question, or "completed" once the session is done.
// It reports false when the session cannot be served at all.
func (h *WSHandler) pushCurrent(ctx context.Context, send chan<- outboundMessage[any], sessionID, owner string) bool {
	current, err := h.service.CurrentQuestion(ctx, sessionID, owner)
	if err != nil {
		send <- h.errorFor(err)
		return false
	}
	if current.Completed {
		send <- outboundMessage[any]{Type: "completed", Payload: toCurrentResponse(current)}
		return true
	}
	send <- outboundMessage[any]{Type: "question", Payload: toCurrentResponse(current)}
	return true
}

func (h *WSHandler) errorFor(err error) outboundMessage[any] {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("ws request failed", "status", status, "error", err)
	}
	return errorMessage(status, publicMessage(status, err))
}

func errorMessage(status int, message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message, Status: status}}
}
