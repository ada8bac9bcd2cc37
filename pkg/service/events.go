package service

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/theapemachine/agui-go/pkg/a2a"
	"github.com/theapemachine/agui-go/pkg/agui"
	"github.com/theapemachine/agui-go/pkg/display"
	"github.com/theapemachine/agui-go/pkg/translate"
)

/*
handleEvents streams a session's events. Joining writes the current
state snapshot first, then every event committed after the subscribe –
the two happen atomically under the session lock, so nothing published
in between can be missed.
*/
func (srv *BridgeServer) handleEvents(c fiber.Ctx) error {
	sessionID := c.Params("id")

	handler := func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)

		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		snapshot, sub := srv.registry.Join(sessionID)
		defer srv.hub.Unsubscribe(sub)

		writeEvent(w, agui.NewStateSnapshot(snapshot))
		flusher.Flush()

		// heartbeat ticker to keep connection alive in the presence of proxies.
		tickerInterval := 25 * time.Second

		if srv.testMode {
			tickerInterval = 100 * time.Millisecond
		}

		ticker := time.NewTicker(tickerInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-sub.Events:
				if !ok {
					return
				}

				writeEvent(w, ev)
				flusher.Flush()
			case <-ticker.C:
				// comment heartbeat
				_, _ = w.Write([]byte(": heartbeat\n\n"))
				flusher.Flush()
			}
		}
	}

	return fiberadaptor.HTTPHandler(http.HandlerFunc(handler))(c)
}

func writeEvent(w http.ResponseWriter, ev agui.Event) {
	msg, err := json.Marshal(ev)

	if err != nil {
		log.Error("failed to marshal event", "type", ev.Type, "error", err)
		return
	}

	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(msg)
	_, _ = w.Write([]byte("\n\n"))
}

/*
handleIngest accepts one inbound agent event over HTTP. The same
pipeline serves the upstream listener; this endpoint exists for agents
that push instead of streaming.
*/
func (srv *BridgeServer) handleIngest(c fiber.Ctx) error {
	var in struct {
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := c.Bind().Body(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body: " + err.Error(),
		})
	}

	if err := srv.Ingest(in.Kind, in.Payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"applied": true})
}

/*
Ingest runs one inbound payload through parse, translate, and apply.
Parse and translation failures are dropped with a warning; they never
take the pipeline down.
*/
func (srv *BridgeServer) Ingest(kind string, payload []byte) error {
	srv.metrics.RecordIngested(kind)

	ev, err := a2a.ParseEvent(kind, payload)

	if err != nil {
		srv.metrics.RecordParseFailure()
		log.Warn("inbound payload dropped", "kind", kind, "error", err)
		return err
	}

	sessionID := ev.ContextID()

	if ev.Kind == a2a.EventKindMessage {
		srv.messages.Append(sessionID, display.FromA2A(ev.Message))
	}

	events, err := translate.Event(ev, sessionID)

	if err != nil {
		srv.metrics.RecordTranslationFailure()
		log.Warn("untranslatable event skipped", "kind", kind, "session", sessionID, "error", err)
		return err
	}

	srv.registry.Apply(sessionID, events)

	return nil
}
