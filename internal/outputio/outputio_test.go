package outputio

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoServer(t *testing.T, received chan<- wireMessage) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var msg wireMessage
			if json.Unmarshal(data, &msg) == nil {
				received <- msg
			}
		}
	}))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func Test_Unit_Shipper_ForwardsLinesInOrder(t *testing.T) {
	t.Parallel()

	received := make(chan wireMessage, 10)
	srv := echoServer(t, received)
	defer srv.Close()

	in := make(chan Line, 10)
	s := NewShipper(wsURL(srv.URL), DefaultDialer, in, discardLogger())

	go s.Run(context.Background())

	in <- Line{Text: "one", Source: SourceStdout, Timestamp: 1}
	in <- Line{Text: "two", Source: SourceStderr, Timestamp: 2}
	close(in)

	s.Wait()

	first := <-received
	second := <-received

	require.Equal(t, "one", first.Line)
	require.Equal(t, SourceStdout, first.Source)
	require.Equal(t, "two", second.Line)
	require.Equal(t, SourceStderr, second.Source)
}

func Test_Unit_Shipper_StopDrainsQueueThenCloses(t *testing.T) {
	t.Parallel()

	received := make(chan wireMessage, 10)
	srv := echoServer(t, received)
	defer srv.Close()

	in := make(chan Line, 10)
	s := NewShipper(wsURL(srv.URL), DefaultDialer, in, discardLogger())

	go s.Run(context.Background())

	in <- Line{Text: "queued", Source: SourceStdout, Timestamp: 1}
	close(in)
	s.Stop()

	s.Wait()

	msg := <-received
	require.Equal(t, "queued", msg.Line)
}

func Test_Unit_Shipper_GivesUpWhenDialFails(t *testing.T) {
	t.Parallel()

	in := make(chan Line, 1)
	s := NewShipper("ws://127.0.0.1:0/no-such-server", DefaultDialer, in, discardLogger())

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	in <- Line{Text: "dropped", Source: SourceStdout, Timestamp: 1}
	close(in)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shipper did not exit after failed dial")
	}
}

func Test_Unit_TimestampMillis(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	require.Equal(t, now.UnixMilli(), TimestampMillis(now))
}

func Test_Unit_TrimCR(t *testing.T) {
	t.Parallel()

	require.Equal(t, "hello", TrimCR("hello\r"))
	require.Equal(t, "hello", TrimCR("hello"))
}
