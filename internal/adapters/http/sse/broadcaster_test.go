package sse_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-sos/internal/adapters/http/sse"
)

// readEvent returns the next "event:" and "data:" pair from the stream.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
}

func TestBroadcastReachesConnectedClient(t *testing.T) {
	b := sse.NewBroadcaster()
	srv := httptest.NewServer(http.HandlerFunc(b.HandleSSE))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event, data := readEvent(t, reader)
	assert.Equal(t, "connected", event)
	assert.Contains(t, data, "client-1")
	assert.Equal(t, 1, b.ClientCount())

	b.Broadcast("message_appended", map[string]string{"text": "hello"})
	event, data = readEvent(t, reader)
	assert.Equal(t, "message_appended", event)
	assert.JSONEq(t, `{"text":"hello"}`, data)

	cancel()
	require.Eventually(t, func() bool { return b.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSlowClientIsDropped(t *testing.T) {
	b := sse.NewBroadcaster()
	c := b.AddClient()
	require.Equal(t, 1, b.ClientCount())

	// Nobody drains the client, so its buffer eventually overflows.
	for range 100 {
		b.Broadcast("wait_time_changed", map[string]int{"wait_time": 1})
	}
	assert.Zero(t, b.ClientCount())

	b.RemoveClient(c)
	assert.Zero(t, b.ClientCount())
}
