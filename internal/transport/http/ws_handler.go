package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"exam-simulator/internal/app"
	"exam-simulator/internal/domain"
)

type WSHandler struct {
	service  *app.ExamService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ExamService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log.With().Str("component", "ws").Logger(),
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

type answerPayload struct {
	QuestionID int `json:"questionId"`
	ChoiceID   int `json:"choiceId"`
}

type navigatePayload struct {
	Index int `json:"index"`
}

type extendPayload struct {
	Seconds int `json:"seconds"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type remainingPayload struct {
	RemainingSeconds int `json:"remainingSeconds"`
}

type finishedPayload struct {
	View   *domain.View       `json:"view,omitempty"`
	Result *domain.ExamResult `json:"result,omitempty"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the exam use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	bankID := r.URL.Query().Get("bank")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	view, err := h.service.Open(ctx, sessionID, bankID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	sessionID = view.SessionID
	log := h.log.With().Str("session_id", sessionID).Logger()

	out := newOutbox(16)
	closeSignals := make(chan struct{})
	var pumps sync.WaitGroup

	go func() {
		defer close(out.done)
		for msg := range out.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	subscribe := func() (func(), error) {
		updates, cancel, err := h.service.Subscribe(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		pumps.Add(1)
		go func() {
			defer pumps.Done()
			for {
				select {
				case update, ok := <-updates:
					if !ok {
						return
					}
					select {
					case out.send <- toOutbound(update):
					case <-out.done:
						return
					case <-closeSignals:
						return
					}
				case <-closeSignals:
					return
				}
			}
		}()
		return cancel, nil
	}

	cancel, err := subscribe()
	if err != nil {
		out.push(errorMessage(err))
		close(out.send)
		<-out.done
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply *outboundMessage[any]
		if inbound.Type == "reset" {
			cancel()
			cancel, err = h.reset(ctx, sessionID, bankID, subscribe)
			if err != nil {
				msg := errorMessage(err)
				reply = &msg
				cancel = func() {}
			}
		} else if ev, ok := h.decodeEvent(inbound); !ok {
			reply = &outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type or invalid payload"}}
		} else if _, err := h.service.Dispatch(ctx, sessionID, ev); err != nil {
			msg := errorMessage(err)
			reply = &msg
		}
		if reply != nil && !out.push(*reply) {
			log.Debug().Msg("ws writer gone, closing")
			break
		}
	}

	cancel()
	close(closeSignals)
	pumps.Wait()
	close(out.send)
	<-out.done
}

// outbox queues messages for a connection's writer goroutine, which closes
// done when it stops.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newOutbox(size int) *outbox {
	return &outbox{send: make(chan outboundMessage[any], size), done: make(chan struct{})}
}

// push queues msg. It reports false once the writer is gone.
func (o *outbox) push(msg outboundMessage[any]) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

func (h *WSHandler) reset(ctx context.Context, sessionID, bankID string, subscribe func() (func(), error)) (func(), error) {
	if err := h.service.Reset(ctx, sessionID); err != nil {
		return nil, err
	}
	if _, err := h.service.Open(ctx, sessionID, bankID); err != nil {
		return nil, err
	}
	return subscribe()
}

func (h *WSHandler) decodeEvent(in inboundMessage) (app.Event, bool) {
	switch in.Type {
	case "answer":
		var p answerPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return app.Event{}, false
		}
		return app.AnswerSelected(p.QuestionID, p.ChoiceID), true
	case "navigate":
		var p navigatePayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return app.Event{}, false
		}
		return app.NavigateTo(p.Index), true
	case "next":
		return app.NextRequested(), true
	case "previous":
		return app.PreviousRequested(), true
	case "finish":
		return app.FinishRequested(), true
	case "pause":
		return app.PauseRequested(), true
	case "resume":
		return app.ResumeRequested(), true
	case "extend":
		var p extendPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return app.Event{}, false
		}
		return app.TimeExtended(p.Seconds), true
	}
	return app.Event{}, false
}

func toOutbound(u domain.Update) outboundMessage[any] {
	switch u.Type {
	case domain.UpdateQuestion:
		return outboundMessage[any]{Type: string(u.Type), Payload: u.View}
	case domain.UpdateFinished:
		return outboundMessage[any]{Type: string(u.Type), Payload: finishedPayload{View: u.View, Result: u.Result}}
	default:
		return outboundMessage[any]{Type: string(u.Type), Payload: remainingPayload{RemainingSeconds: u.RemainingSeconds}}
	}
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}
