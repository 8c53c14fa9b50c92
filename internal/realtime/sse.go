package realtime

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ServeSSE streams the same feed as ServeWS as Server-Sent Events.
func (g *Gateway) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c, ok := g.register("sse", cancel)
	if !ok {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer g.deregister(c)

	sub, err := g.Bus.Subscribe(ctx, g.topics...)
	if err != nil {
		g.Logger.Warn("GATEWAY", fmt.Sprintf("SSE client %s has no live feed: %v", c.id, err))
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	setupSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()
	g.Logger.LogGateway(c.id, fmt.Sprintf("SSE connected from %s", r.RemoteAddr))

	keepAlive := time.NewTicker(g.idleTimeout)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			g.Logger.LogGateway(c.id, "SSE disconnected")
			return
		case msg, ok := <-sub.C():
			if !ok {
				g.Logger.Warn("GATEWAY", fmt.Sprintf("Feed for SSE client %s ended", c.id))
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
