// Package realtime pushes order events to kitchen and admin screens over
// WebSocket and Server-Sent Events.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ms-pos/internal/bus"
	"ms-pos/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	probeMessage = "ping"
	replyMessage = "pong"
)

type Options struct {
	Topics         []string
	IdleTimeout    time.Duration
	WriteTimeout   time.Duration
	OutboundBuffer int
	AllowedOrigins []string
}

// Gateway relays bus messages to every connected client. Each connection gets its
// own subscription; a client that cannot keep up loses messages, never the
// connection.
type Gateway struct {
	Bus    bus.Subscriber
	Logger *logger.Logger

	topics       []string
	idleTimeout  time.Duration
	writeTimeout time.Duration
	outBuffer    int
	upgrader     websocket.Upgrader

	mu      sync.Mutex
	conns   map[string]*client
	closing bool
}

type client struct {
	id     string
	kind   string
	cancel context.CancelFunc
	missed atomic.Int64
}

func New(sub bus.Subscriber, log *logger.Logger, opts Options) *Gateway {
	g := &Gateway{
		Bus:          sub,
		Logger:       log,
		topics:       opts.Topics,
		idleTimeout:  opts.IdleTimeout,
		writeTimeout: opts.WriteTimeout,
		outBuffer:    opts.OutboundBuffer,
		conns:        make(map[string]*client),
	}
	if g.idleTimeout <= 0 {
		g.idleTimeout = 30 * time.Second
	}
	if g.writeTimeout <= 0 {
		g.writeTimeout = 10 * time.Second
	}
	if g.outBuffer <= 0 {
		g.outBuffer = 64
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeWS upgrades the request and serves the connection until either side closes it.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		g.Logger.Warn("GATEWAY", fmt.Sprintf("WebSocket upgrade failed from %s: %v", r.RemoteAddr, err))
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c, ok := g.register("ws", cancel)
	if !ok {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		return
	}
	defer g.deregister(c)
	g.Logger.LogGateway(c.id, fmt.Sprintf("connected from %s", r.RemoteAddr))

	err = g.run(ctx, c, ws)
	g.Logger.LogGateway(c.id, fmt.Sprintf("disconnected (missed %d): %v", c.missed.Load(), err))
}

// run drives one connection. Any task that fails ends all of them; a lost bus
// subscription only stops forwarding.
func (g *Gateway) run(ctx context.Context, c *client, ws *websocket.Conn) error {
	grp, ctx := errgroup.WithContext(ctx)

	inbound := make(chan string)
	out := make(chan []byte, g.outBuffer)

	// reader: a timed-out read would poison the connection, so reads never carry a
	// deadline and idleness is tracked by the liveness task instead
	grp.Go(func() error {
		for {
			kind, data, err := ws.ReadMessage()
			if err != nil {
				return err
			}
			if kind != websocket.TextMessage {
				continue
			}
			select {
			case inbound <- string(data):
			case <-ctx.Done():
				return nil
			}
		}
	})

	grp.Go(func() error {
		timer := time.NewTimer(g.idleTimeout)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-inbound:
				if msg == probeMessage {
					if !enqueue(ctx, out, []byte(replyMessage)) {
						return nil
					}
				}
			case <-timer.C:
				if !enqueue(ctx, out, []byte(probeMessage)) {
					return nil
				}
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(g.idleTimeout)
		}
	})

	grp.Go(func() error {
		sub, err := g.Bus.Subscribe(ctx, g.topics...)
		if err != nil {
			g.Logger.Warn("GATEWAY", fmt.Sprintf("Connection %s has no live feed: %v", c.id, err))
			return nil
		}
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-sub.C():
				if !ok {
					g.Logger.Warn("GATEWAY", fmt.Sprintf("Feed for connection %s ended", c.id))
					return nil
				}
				select {
				case out <- msg.Payload:
				default:
					c.missed.Add(1)
				}
			}
		}
	})

	grp.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case data := <-out:
				if err := ws.SetWriteDeadline(time.Now().Add(g.writeTimeout)); err != nil {
					return err
				}
				if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
					return err
				}
			}
		}
	})

	// unblock the reader once anything ends the connection
	grp.Go(func() error {
		<-ctx.Done()
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		ws.Close()
		return nil
	})

	err := grp.Wait()
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && (closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway) {
		return nil
	}
	return err
}

// enqueue blocks until data is queued or ctx ends. Protocol replies are never dropped.
func enqueue(ctx context.Context, out chan<- []byte, data []byte) bool {
	select {
	case out <- data:
		return true
	case <-ctx.Done():
		return false
	}
}

func (g *Gateway) register(kind string, cancel context.CancelFunc) (*client, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return nil, false
	}
	c := &client{id: uuid.NewString(), kind: kind, cancel: cancel}
	g.conns[c.id] = c
	return c, true
}

func (g *Gateway) deregister(c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, c.id)
}

// ConnectionCount returns the number of live WebSocket and SSE clients.
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Close refuses new connections and ends every live one.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closing = true
	live := make([]*client, 0, len(g.conns))
	for _, c := range g.conns {
		live = append(live, c)
	}
	g.mu.Unlock()

	for _, c := range live {
		c.cancel()
	}
	g.Logger.Info("GATEWAY", fmt.Sprintf("Closed %d live connections", len(live)))
}
