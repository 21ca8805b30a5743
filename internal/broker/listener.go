package broker

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Listener is the broker's WebSocket front door: a single endpoint
// that accepts both the Steam-Role and every Client-Role connection,
// classifying each on its first frame (spec §4.4).
type Listener struct {
	ctx    *Context
	srv    *http.Server
	upgrader websocket.Upgrader
}

// NewListener builds a Listener bound to addr. No subprotocol
// negotiation is performed; origin checking is intentionally
// permissive because SteamWebHelper and browser-origin clients alike
// need to connect (spec §6: "no subprotocol negotiation, text frames
// only").
func NewListener(ctx *Context, addr string) *Listener {
	l := &Listener{
		ctx: ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleUpgrade)

	l.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return l
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	go handleConnection(l.ctx, conn)
}

// ListenAndServe blocks serving connections until the server is shut
// down or a fatal network error occurs.
func (l *Listener) ListenAndServe() error {
	err := l.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops accepting new connections.
func (l *Listener) Shutdown(ctx context.Context) error {
	return l.srv.Shutdown(ctx)
}
