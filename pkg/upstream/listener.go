package upstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/agui-go/pkg/errors"
)

// Frame is a single server-sent event read off the upstream stream.
type Frame struct {
	ID    string
	Event string
	Data  []byte
}

// Handler receives each decoded frame as an inbound (kind, payload)
// pair. The event field names the kind, the data field carries the
// payload.
type Handler func(kind string, payload []byte)

// Listener subscribes to the upstream agent's event stream and hands
// every frame to the bridge pipeline. Dropped connections are redialed
// with exponential backoff, replaying the last seen event id.
type Listener struct {
	URL     string
	Headers map[string]string

	mu          sync.RWMutex
	conn        *http.Response
	reader      *bufio.Reader
	lastEventID string
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewListener creates a listener for the given stream URL.
func NewListener(url string) *Listener {
	return &Listener{
		URL:      url,
		Headers:  make(map[string]string),
		stopChan: make(chan struct{}),
	}
}

// Listen connects and pumps frames into the handler until the context
// is canceled, Close is called, or the connection fails beyond
// recovery.
func (l *Listener) Listen(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			l.cleanup()
			return ctx.Err()
		case <-l.stopChan:
			l.cleanup()
			return nil
		default:
		}

		if err := l.connect(ctx); err != nil {
			return errors.Join("upstream connect failed", err)
		}

		err := l.pump(ctx, handler)

		select {
		case <-ctx.Done():
			l.cleanup()
			return ctx.Err()
		case <-l.stopChan:
			l.cleanup()
			return nil
		default:
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			log.Warn("upstream stream closed, reconnecting", "url", l.URL)
			l.cleanup()
			continue
		}

		l.cleanup()
		return err
	}
}

// connect dials the stream, retrying with backoff on failure.
func (l *Listener) connect(ctx context.Context) error {
	return errors.RetryWithBackoff(errors.DefaultRetryConfig(), func() error {
		return l.dial(ctx)
	})
}

func (l *Listener) dial(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", l.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")

	l.mu.RLock()
	if l.lastEventID != "" {
		req.Header.Set("Last-Event-ID", l.lastEventID)
	}
	l.mu.RUnlock()

	for k, v := range l.Headers {
		req.Header.Set(k, v)
	}

	// No client timeout: the stream is long-lived and bounded by ctx.
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	l.mu.Lock()
	l.conn = resp
	l.reader = bufio.NewReader(resp.Body)
	l.mu.Unlock()

	return nil
}

// pump reads frames until the stream ends or the listener stops.
func (l *Listener) pump(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopChan:
			return nil
		default:
			frame, err := l.readFrame()
			if err != nil {
				return err
			}

			if frame == nil {
				continue
			}

			if frame.ID != "" {
				l.mu.Lock()
				l.lastEventID = frame.ID
				l.mu.Unlock()
			}

			if frame.Event == "" && len(frame.Data) == 0 {
				continue
			}

			if frame.Event == "" {
				log.Debug("frame without event field skipped", "url", l.URL)
				continue
			}

			handler(frame.Event, frame.Data)
		}
	}
}

// readFrame reads a single SSE frame.
func (l *Listener) readFrame() (*Frame, error) {
	l.mu.RLock()
	reader := l.reader
	l.mu.RUnlock()

	if reader == nil {
		return nil, io.EOF
	}

	frame := &Frame{}
	var data strings.Builder
	inFrame := false

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimRight(line, "\n\r")

		// Empty line marks the end of a frame
		if line == "" {
			if inFrame {
				frame.Data = []byte(data.String())
				return frame, nil
			}
			continue
		}

		// Comment lines carry heartbeats, skip them
		if strings.HasPrefix(line, ":") {
			continue
		}

		inFrame = true

		if strings.HasPrefix(line, "id:") {
			frame.ID = strings.TrimSpace(line[3:])
		} else if strings.HasPrefix(line, "event:") {
			frame.Event = strings.TrimSpace(line[6:])
		} else if strings.HasPrefix(line, "data:") {
			dataLine := strings.TrimPrefix(line, "data:")
			if data.Len() > 0 {
				data.WriteString("\n")
			}
			data.WriteString(strings.TrimPrefix(dataLine, " "))
		}
	}
}

// cleanup closes any existing connection and resets the reader.
func (l *Listener) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		l.conn.Body.Close()
		l.conn = nil
		l.reader = nil
	}
}

// Close stops the listener and closes the connection.
func (l *Listener) Close() error {
	l.stopOnce.Do(func() { close(l.stopChan) })
	l.cleanup()
	return nil
}
