package realtime

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ms-pos/internal/bus"
	"ms-pos/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersTopic = "pos:orders:new"

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(ctx context.Context, topics ...string) (bus.Subscription, error) {
	return nil, errors.New("redis unreachable")
}

func newTestGateway(t *testing.T, sub bus.Subscriber, idle time.Duration) (*Gateway, *httptest.Server) {
	gw := New(sub, logger.Discard(), Options{
		Topics:         []string{ordersTopic, "pos:stats:update"},
		IdleTimeout:    idle,
		WriteTimeout:   time.Second,
		OutboundBuffer: 8,
	})
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.ServeWS)
	mux.HandleFunc("/events", gw.ServeSSE)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		gw.Close()
		srv.Close()
	})
	return gw, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readText(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	return string(data)
}

func TestGateway_ForwardsBusMessages(t *testing.T) {
	mem := bus.NewMemory(8)
	gw, srv := newTestGateway(t, mem, time.Minute)

	ws := dial(t, srv)
	require.Eventually(t, func() bool { return mem.SubscriberCount(ordersTopic) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, gw.ConnectionCount())

	payload := `{"type":"new_order","order":{"id":"1"}}`
	require.NoError(t, mem.Publish(context.Background(), ordersTopic, []byte(payload)))

	assert.JSONEq(t, payload, readText(t, ws))
}

func TestGateway_AnswersPing(t *testing.T) {
	mem := bus.NewMemory(8)
	_, srv := newTestGateway(t, mem, time.Minute)

	ws := dial(t, srv)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("ping")))
	assert.Equal(t, "pong", readText(t, ws))
}

func TestGateway_ProbesIdleClient(t *testing.T) {
	mem := bus.NewMemory(8)
	_, srv := newTestGateway(t, mem, 100*time.Millisecond)

	ws := dial(t, srv)
	assert.Equal(t, "ping", readText(t, ws))
	// still alive after the probe; more probes may arrive before the reply
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("ping")))
	got := ""
	for i := 0; i < 10 && got != "pong"; i++ {
		got = readText(t, ws)
	}
	assert.Equal(t, "pong", got)
}

func TestGateway_SurvivesWithoutFeed(t *testing.T) {
	gw, srv := newTestGateway(t, failingSubscriber{}, time.Minute)

	ws := dial(t, srv)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("ping")))
	assert.Equal(t, "pong", readText(t, ws))
	assert.Equal(t, 1, gw.ConnectionCount())
}

func TestGateway_FeedEndKeepsConnection(t *testing.T) {
	mem := bus.NewMemory(8)
	_, srv := newTestGateway(t, mem, time.Minute)

	ws := dial(t, srv)
	require.Eventually(t, func() bool { return mem.SubscriberCount(ordersTopic) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, mem.Close())

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("ping")))
	assert.Equal(t, "pong", readText(t, ws))
}

func TestGateway_DisconnectReleasesSubscription(t *testing.T) {
	mem := bus.NewMemory(8)
	gw, srv := newTestGateway(t, mem, time.Minute)

	ws := dial(t, srv)
	require.Eventually(t, func() bool { return mem.SubscriberCount(ordersTopic) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	ws.Close()

	assert.Eventually(t, func() bool {
		return gw.ConnectionCount() == 0 && mem.SubscriberCount(ordersTopic) == 0
	}, 2*time.Second, 10*time.Millisecond)

	// publishing to a departed client is harmless
	assert.NoError(t, mem.Publish(context.Background(), ordersTopic, []byte("{}")))
}

func TestGateway_CloseEndsConnections(t *testing.T) {
	mem := bus.NewMemory(8)
	gw, srv := newTestGateway(t, mem, time.Minute)

	ws := dial(t, srv)
	require.Eventually(t, func() bool { return gw.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	gw.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return gw.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}

func TestGateway_ManyClientsAllReceive(t *testing.T) {
	mem := bus.NewMemory(8)
	_, srv := newTestGateway(t, mem, time.Minute)

	const n = 5
	clients := make([]*websocket.Conn, n)
	for i := range clients {
		clients[i] = dial(t, srv)
	}
	require.Eventually(t, func() bool { return mem.SubscriberCount(ordersTopic) == n }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, mem.Publish(context.Background(), ordersTopic, []byte(`{"type":"order_updated","order_id":"7","status":"ready"}`)))
	for _, ws := range clients {
		assert.Contains(t, readText(t, ws), `"order_updated"`)
	}
}

func TestGateway_RejectsForeignOrigin(t *testing.T) {
	gw := New(bus.NewMemory(8), logger.Discard(), Options{
		Topics:         []string{ordersTopic},
		AllowedOrigins: []string{"https://pos.example.com"},
	})
	srv := httptest.NewServer(http.HandlerFunc(gw.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://pos.example.com")
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	ws.Close()
}

func TestServeSSE_StreamsMessages(t *testing.T) {
	mem := bus.NewMemory(8)
	_, srv := newTestGateway(t, mem, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return mem.SubscriberCount(ordersTopic) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, mem.Publish(context.Background(), ordersTopic, []byte(`{"type":"new_order"}`)))

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {\"type\"") {
			break
		}
	}
	assert.Equal(t, "data: {\"type\":\"new_order\"}\n", line)
}

func TestServeSSE_FeedUnavailable(t *testing.T) {
	_, srv := newTestGateway(t, failingSubscriber{}, time.Minute)

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
