package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type capturedFrame struct {
	kind    string
	payload string
}

func TestNewListener(t *testing.T) {
	Convey("Given a stream URL", t, func() {
		url := "http://example.com/events"

		Convey("When creating a listener", func() {
			listener := NewListener(url)

			Convey("It should initialize correctly", func() {
				So(listener.URL, ShouldEqual, url)
				So(listener.Headers, ShouldNotBeNil)
				So(listener.stopChan, ShouldNotBeNil)
			})
		})
	})
}

func TestListen(t *testing.T) {
	Convey("Given an upstream emitting tagged frames", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("event: status-update\ndata: {\"taskId\":\"t1\"}\n\n"))
			w.(http.Flusher).Flush()
		}))
		defer server.Close()

		listener := NewListener(server.URL)

		Convey("When listening", func() {
			frameCh := make(chan capturedFrame, 1)
			errCh := make(chan error, 1)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			go func() {
				errCh <- listener.Listen(ctx, func(kind string, payload []byte) {
					select {
					case frameCh <- capturedFrame{kind: kind, payload: string(payload)}:
					case <-ctx.Done():
					}
				})
			}()

			var frame capturedFrame
			var err error

			select {
			case frame = <-frameCh:
				cancel()
			case err = <-errCh:
			case <-ctx.Done():
				err = ctx.Err()
			}

			Convey("It should hand the frame to the handler", func() {
				So(err, ShouldBeNil)
				So(frame.kind, ShouldEqual, "status-update")
				So(frame.payload, ShouldEqual, `{"taskId":"t1"}`)
			})
		})
	})
}

func TestListenReconnect(t *testing.T) {
	Convey("Given an upstream that drops the first connection", t, func() {
		var connCount int
		var replayedID string
		var mu sync.Mutex
		serverDone := make(chan struct{})

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			connCount++
			currentConn := connCount

			if currentConn == 2 {
				replayedID = r.Header.Get("Last-Event-ID")
			}
			mu.Unlock()

			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)

			if currentConn == 1 {
				w.Write([]byte("id: 1\nevent: message\ndata: first\n\n"))
				w.(http.Flusher).Flush()
				return
			}

			w.Write([]byte("id: 2\nevent: message\ndata: second\n\n"))
			w.(http.Flusher).Flush()
			<-serverDone
		}))
		defer server.Close()

		listener := NewListener(server.URL)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When the connection is lost", func() {
			frameCh := make(chan capturedFrame, 2)

			go func() {
				listener.Listen(ctx, func(kind string, payload []byte) {
					select {
					case frameCh <- capturedFrame{kind: kind, payload: string(payload)}:
					case <-ctx.Done():
					}
				})
			}()

			var first, second capturedFrame

			select {
			case first = <-frameCh:
			case <-time.After(2 * time.Second):
				t.Fatal("timeout waiting for first frame")
			}

			select {
			case second = <-frameCh:
			case <-time.After(5 * time.Second):
				t.Fatal("timeout waiting for second frame")
			}

			Convey("It should reconnect and keep pumping frames", func() {
				mu.Lock()
				finalConnCount := connCount
				finalReplayedID := replayedID
				mu.Unlock()

				So(finalConnCount, ShouldEqual, 2)
				So(finalReplayedID, ShouldEqual, "1")
				So(first.payload, ShouldEqual, "first")
				So(second.payload, ShouldEqual, "second")
			})

			close(serverDone)
		})
	})
}

func TestListenSkipsHeartbeats(t *testing.T) {
	Convey("Given an upstream sending comment heartbeats", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(": ping\n\nevent: task\ndata: {\"id\":\"t1\"}\n\n"))
			w.(http.Flusher).Flush()
		}))
		defer server.Close()

		listener := NewListener(server.URL)

		Convey("When listening", func() {
			frameCh := make(chan capturedFrame, 2)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			go func() {
				listener.Listen(ctx, func(kind string, payload []byte) {
					select {
					case frameCh <- capturedFrame{kind: kind, payload: string(payload)}:
					case <-ctx.Done():
					}
				})
			}()

			var frame capturedFrame

			select {
			case frame = <-frameCh:
				cancel()
			case <-time.After(2 * time.Second):
				t.Fatal("timeout waiting for frame")
			}

			Convey("Only the tagged frame should come through", func() {
				So(frame.kind, ShouldEqual, "task")
				So(len(frameCh), ShouldEqual, 0)
			})
		})
	})
}

func TestListenerClose(t *testing.T) {
	Convey("Given a connected listener", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("data: test\n\n"))
		}))
		defer server.Close()

		listener := NewListener(server.URL)

		Convey("When closing it", func() {
			err := listener.Close()

			Convey("It should close successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And closing twice should not panic", func() {
				So(listener.Close(), ShouldBeNil)
			})
		})
	})
}
