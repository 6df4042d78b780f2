// Package outputio implements the output shipper (component G): it forwards
// raw child output lines, tagged by stream, over a persistent WebSocket to
// the vault's subprocess-stdout stream, decoupled from ingestion by a
// bounded internal queue.
package outputio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const internalQueueCapacity = 10_000

// Source tags which child stream an output line came from.
type Source string

const (
	// SourceStdout tags a cleaned stdout line.
	SourceStdout Source = "Stdout"
	// SourceStderr tags a stderr line.
	SourceStderr Source = "Stderr"
)

// Line is one raw output line captured from the child, stamped with a
// millisecond Unix timestamp at send time.
type Line struct {
	Text      string
	Source    Source
	Timestamp int64
}

type wireMessage struct {
	Line      string `json:"line"`
	Timestamp int64  `json:"timestamp"`
	Source    Source `json:"source"`
}

// Dialer opens the WebSocket connection; swappable in tests.
type Dialer func(ctx context.Context, url string) (*websocket.Conn, error)

// DefaultDialer dials url with the standard library's default HTTP header
// set and no extra subprotocols.
func DefaultDialer(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}

	return conn, nil
}

// Shipper forwards Lines from an external channel to the vault's output
// stream, reconnecting once on a send failure before giving up.
type Shipper struct {
	url  string
	dial Dialer
	log  *slog.Logger

	in    <-chan Line
	queue chan Line
	stop  chan struct{}
	done  chan struct{}
}

// NewShipper builds a Shipper reading Lines from in and dialing url (already
// rewritten from http(s) to ws(s) by the caller).
func NewShipper(url string, dial Dialer, in <-chan Line, log *slog.Logger) *Shipper {
	return &Shipper{
		url:   url,
		dial:  dial,
		log:   log,
		in:    in,
		queue: make(chan Line, internalQueueCapacity),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run drives the forwarder and sender halves of the shipper until the input
// channel closes and the internal queue drains, ctx is cancelled, or the
// stream gives up after a failed reconnect. Callers should Wait rather than
// call Run twice.
func (s *Shipper) Run(ctx context.Context) {
	defer close(s.done)

	conn, err := s.dial(ctx, s.url)
	if err != nil {
		s.log.Error("failed to connect output stream, dropping output", "error", err, "error-type", "runtime")
		s.drainUntilClosed()

		return
	}
	defer conn.Close() //nolint:errcheck

	forwarderDone := make(chan struct{})
	go s.forward(forwarderDone)

	s.sendLoop(ctx, conn, forwarderDone)
}

// Stop marks an orderly shutdown as requested. It does not end Run on its
// own: the sender returns once the input channel has closed and the queue
// has drained, closing the socket with a normal close frame, whether or not
// Stop was called.
func (s *Shipper) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Wait blocks until Run has returned.
func (s *Shipper) Wait() {
	<-s.done
}

// forward drains the external channel into the internal queue until it
// closes, decoupling ingestion (the extractor's hot path) from socket I/O.
func (s *Shipper) forward(done chan<- struct{}) {
	defer close(done)

	for line := range s.in {
		s.queue <- line
	}
}

// sendLoop is the sender half: it drains the internal queue to the socket,
// reconnecting once on a send failure, and exits once the forwarder has
// closed and the queue is empty (or ctx is cancelled first).
func (s *Shipper) sendLoop(ctx context.Context, conn *websocket.Conn, forwarderDone <-chan struct{}) {
	inputClosed := false

	for {
		if inputClosed && len(s.queue) == 0 {
			s.closeNormally(conn)

			return
		}

		select {
		case line := <-s.queue:
			var ok bool
			conn, ok = s.sendOne(ctx, conn, line)
			if !ok {
				return
			}

		case <-forwarderDone:
			inputClosed = true

		case <-s.stop:
			if inputClosed && len(s.queue) == 0 {
				s.closeNormally(conn)

				return
			}

		case <-ctx.Done():
			s.closeNormally(conn)

			return
		}
	}
}

// sendOne writes one message, reconnecting once on failure and re-sending
// the same message on the new connection. It returns the (possibly new)
// connection and whether the shipper should keep going.
func (s *Shipper) sendOne(ctx context.Context, conn *websocket.Conn, line Line) (*websocket.Conn, bool) {
	msg := wireMessage{Line: line.Text, Timestamp: line.Timestamp, Source: line.Source}

	body, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("failed to marshal output line", "error", err, "error-type", "runtime")

		return conn, true
	}

	if conn.WriteMessage(websocket.TextMessage, body) == nil {
		return conn, true
	}

	newConn, err := s.dial(ctx, s.url)
	if err != nil {
		s.log.Error("output stream reconnect failed, dropping remaining output", "error", err, "error-type", "runtime")
		s.drainUntilClosed()

		return conn, false
	}

	conn.Close() //nolint:errcheck

	if err := newConn.WriteMessage(websocket.TextMessage, body); err != nil {
		s.log.Error("output stream send failed after reconnect, dropping remaining output", "error", err, "error-type", "runtime")
		newConn.Close() //nolint:errcheck
		s.drainUntilClosed()

		return newConn, false
	}

	return newConn, true
}

func (s *Shipper) closeNormally(conn *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

// drainUntilClosed discards remaining lines once the socket has given up,
// so producers blocked sending to the forwarder's channel don't deadlock.
func (s *Shipper) drainUntilClosed() {
	for range s.in {
	}

	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}

// TimestampMillis returns now as milliseconds since the Unix epoch, matching
// the wire format's timestamp field.
func TimestampMillis(now time.Time) int64 {
	return now.UnixMilli()
}

// TrimCR strips a trailing carriage returns a Windows-originated pipe may
// leave on a line before it is shipped or printed.
func TrimCR(line string) string {
	return strings.TrimRight(line, "\r")
}
