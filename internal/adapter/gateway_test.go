package adapter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// startGateway runs a one-connection fake gateway that sends the given
// inbound events and collects every reply until the client disconnects.
func startGateway(t *testing.T, events []Inbound) (url string, replies <-chan Outbound) {
	t.Helper()
	out := make(chan Outbound, len(events)+1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for _, ev := range events {
			require.NoError(t, conn.WriteJSON(ev))
		}
		for {
			var reply Outbound
			if err := conn.ReadJSON(&reply); err != nil {
				close(out)
				return
			}
			out <- reply
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), out
}

func TestDialBadURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := Dial("ws://127.0.0.1:1/nope", logger)
	assert.Error(t, err)
}

func TestDialNilLogger(t *testing.T) {
	_, err := Dial("ws://irrelevant", nil)
	assert.Error(t, err)
}

func TestListenRelaysReplies(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	url, replies := startGateway(t, []Inbound{
		{Type: TypeCommand, Name: "/idea", UserID: "user-1", Time: now},
		{Type: TypeText, Body: "silent one", UserID: "user-1", Time: now.Add(time.Second)},
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gw, err := Dial(url, logger)
	require.NoError(t, err)
	defer gw.Close()

	var handled []Inbound
	done := make(chan error, 1)
	go func() {
		done <- gw.Listen(context.Background(), func(ctx context.Context, in Inbound) string {
			handled = append(handled, in)
			if in.Type == TypeCommand {
				return "window open"
			}
			if len(handled) == 2 {
				gw.Close()
			}
			return ""
		})
	}()

	reply := <-replies
	assert.Equal(t, "user-1", reply.UserID)
	assert.Equal(t, "window open", reply.Text)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not return after close")
	}

	require.Len(t, handled, 2)
	assert.Equal(t, "silent one", handled[1].Body)
}

func TestListenFillsMissingTimestamp(t *testing.T) {
	url, _ := startGateway(t, []Inbound{
		{Type: TypeText, Body: "no clock", UserID: "user-1"},
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gw, err := Dial(url, logger)
	require.NoError(t, err)
	defer gw.Close()

	got := make(chan Inbound, 1)
	go gw.Listen(context.Background(), func(ctx context.Context, in Inbound) string {
		got <- in
		gw.Close()
		return ""
	})

	select {
	case in := <-got:
		assert.False(t, in.Time.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("event never arrived")
	}
}

func TestListenStopsOnContextCancel(t *testing.T) {
	// A gateway that never sends keeps the read blocked.
	url, _ := startGateway(t, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gw, err := Dial(url, logger)
	require.NoError(t, err)
	defer gw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- gw.Listen(ctx, func(ctx context.Context, in Inbound) string { return "" })
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("listen kept blocking after cancellation")
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	url, _ := startGateway(t, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gw, err := Dial(url, logger)
	require.NoError(t, err)

	require.NoError(t, gw.Close())
	assert.Error(t, gw.Send("user-1", "too late"))
	assert.NoError(t, gw.Close())
}
