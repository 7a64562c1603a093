package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/stream"
)

// Encoder renders one value as the data of an event.
type Encoder[T any] func(v T) ([]byte, error)

// JSON encodes values with encoding/json.
func JSON[T any]() Encoder[T] {
	return func(v T) ([]byte, error) { return json.Marshal(v) }
}

// Text writes values with fmt's %v verb.
func Text[T any]() Encoder[T] {
	return func(v T) ([]byte, error) { return []byte(fmt.Sprint(v)), nil }
}

type handlerOptions struct {
	keepAlive  time.Duration
	event      string
	dispatcher stream.Dispatcher
}

// HandlerOption configures Handler.
type HandlerOption func(*handlerOptions)

// WithKeepAlive sets the keep-alive comment interval. Zero disables it.
func WithKeepAlive(d time.Duration) HandlerOption {
	return func(o *handlerOptions) { o.keepAlive = d }
}

// WithEvent names the value events. By default they are unnamed "message" events.
func WithEvent(name string) HandlerOption {
	return func(o *handlerOptions) { o.event = name }
}

// WithDispatcher subscribes on d instead of the default dispatcher.
func WithDispatcher(d stream.Dispatcher) HandlerOption {
	return func(o *handlerOptions) { o.dispatcher = d }
}

type frame struct {
	data []byte
	err  error
}

// Handler serves src as an event stream. Each request subscribes anew;
// a cold src restarts for every client.
func Handler[T any](src *stream.Source[T], encode Encoder[T], opts ...HandlerOption) gin.HandlerFunc {
	o := handlerOptions{keepAlive: 15 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.Get("sse")

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		// Long-lived responses must outlive the server write timeout.
		_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})
		h := c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		frames := make(chan frame)
		var subOpts []stream.SubscribeOption
		if o.dispatcher != nil {
			subOpts = append(subOpts, stream.On(o.dispatcher))
		}
		sub := src.Subscribe(ctx, stream.Consumer[T]{
			OnValue: func(ctx context.Context, v T) {
				data, err := encode(v)
				f := frame{data: data, err: err}
				stream.Suspend(ctx, func() {
					select {
					case frames <- f:
					case <-ctx.Done():
					}
				})
			},
		}, subOpts...)
		defer sub.Cancel()

		fields := logger.Fields(logger.FieldStream, src.Name(), logger.FieldSubscriptionID, sub.ID())
		writeEvent(c.Writer, EventConnected, mustJSON(ConnectedEvent{
			Stream:         src.Name(),
			SubscriptionID: sub.ID(),
			RequestID:      c.GetString(requestIDKey),
		}))
		c.Writer.Flush()
		log.Debug("stream client connected", fields)

		var tick <-chan time.Time
		if o.keepAlive > 0 {
			ticker := time.NewTicker(o.keepAlive)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				log.Debug("stream client disconnected", fields)
				return

			case f := <-frames:
				if f.err != nil {
					sub.Cancel()
					writeError(c.Writer, apperrors.OperatorFailure("encode", f.err))
					c.Writer.Flush()
					return
				}
				writeEvent(c.Writer, o.event, f.data)
				c.Writer.Flush()

			case <-sub.Done():
				if err := sub.Err(); err != nil {
					log.Warn("stream failed", logger.MergeWithError(fields, err))
					writeError(c.Writer, err)
				} else {
					writeEvent(c.Writer, EventComplete, []byte("{}"))
				}
				c.Writer.Flush()
				return

			case <-tick:
				fmt.Fprintf(c.Writer, ": keepalive %d\n\n", time.Now().Unix())
				c.Writer.Flush()
			}
		}
	}
}

// writeEvent writes one event. Multi-line data is split into several data
// fields as the event-stream format requires.
func writeEvent(w io.Writer, event string, data []byte) {
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func writeError(w io.Writer, err error) {
	writeEvent(w, EventError, mustJSON(apperrors.Wrap(err).ToResponse()))
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return b
}
