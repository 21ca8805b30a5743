package broker

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/tancop/conductor/internal/wire"
)

const steamInitPrefix = "init:"

// handleConnection classifies a freshly accepted WebSocket connection
// on its first frame and runs the matching role loop until the
// connection closes. It never returns until the connection is done.
func handleConnection(ctx *Context, ws *websocket.Conn) {
	defer ws.Close()

	out := newOutboundQueue()

	msgType, data, err := ws.ReadMessage()
	if err != nil {
		slog.Debug("connection closed before classification frame", "error", err)
		return
	}
	if msgType != websocket.TextMessage {
		slog.Warn("classification frame was not text, closing")
		return
	}
	text := string(data)

	if !ctx.SteamConnected() && strings.HasPrefix(text, steamInitPrefix) {
		if !ctx.claimSteamRole() {
			slog.Warn("lost the race to become the Steam connection, closing as misbehaving")
			return
		}
		runSteamConnection(ctx, ws, out, text)
		return
	}

	runClientConnection(ctx, ws, out, text)
}

// runWriter drains out and writes every item to ws as a text frame
// until the queue is closed or a write fails. It is the single writer
// for this connection's socket (spec §9: "each connection needs
// exactly one writer because WebSocket frames cannot interleave").
func runWriter(ws *websocket.Conn, out *outboundQueue, done chan<- struct{}) {
	defer close(done)
	for {
		item, ok := out.Pop()
		if !ok {
			return
		}
		if err := ws.WriteMessage(websocket.TextMessage, []byte(item)); err != nil {
			slog.Debug("write failed, stopping writer", "error", err)
			return
		}
	}
}

// runSteamConnection drives the Steam-Role side of the state machine:
// publish the outbound handle, reply "Ready", then loop routing
// replies back to clients until the socket drops or Steam sends
// "Terminate".
func runSteamConnection(ctx *Context, ws *websocket.Conn, out *outboundQueue, initFrame string) {
	slog.Info("steam connected", "init", initFrame)

	ctx.setSteamOutbound(out)
	ctx.InitSignal().Fire(true)

	writerDone := make(chan struct{})
	go runWriter(ws, out, writerDone)

	out.Push("Ready")

	defer func() {
		ctx.clearSteamSlot()
		out.Close()
		<-writerDone
		slog.Info("steam connection closed, scheduling reconnect")
		scheduleReconnect(ctx)
	}()

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			slog.Info("steam socket read error or EOF", "error", err)
			return
		}
		if msgType != websocket.TextMessage {
			slog.Warn("skipping non-text frame from steam")
			continue
		}

		text := string(data)
		if text == "Terminate" {
			slog.Info("steam sent Terminate, shutting down")
			ctx.ExitSignal().Fire(true)
			return
		}

		routeSteamReply(ctx, text)
	}
}

// runClientConnection drives the Client-Role side: validate and
// forward the classification frame, then keep forwarding every
// subsequent frame until the socket drops.
func runClientConnection(ctx *Context, ws *websocket.Conn, out *outboundQueue, firstFrame string) {
	writerDone := make(chan struct{})
	go runWriter(ws, out, writerDone)

	defer func() {
		out.Close()
		<-writerDone
		ctx.evictClient(out)
	}()

	if !forwardClientFrame(ctx, out, firstFrame) {
		return
	}

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			slog.Debug("client socket read error or EOF", "error", err)
			return
		}
		if msgType != websocket.TextMessage {
			slog.Warn("skipping non-text frame from client")
			continue
		}

		if !forwardClientFrame(ctx, out, string(data)) {
			return
		}
	}
}

// forwardClientFrame parses, authenticates, rewrites, and forwards one
// client frame onto Steam. It returns false when the connection must
// be torn down (invalid frame, no Steam, or auth failure) after
// enqueuing the matching error reply.
func forwardClientFrame(ctx *Context, out *outboundQueue, frame string) bool {
	var req wire.RpcRequest
	if err := json.Unmarshal([]byte(frame), &req); err != nil {
		slog.Warn("received invalid client frame", "error", err)
		replyError(out, "Message is not valid")
		return false
	}

	steamTx, ok := ctx.steamOutboundHandle()
	if !ok {
		slog.Debug("client request arrived with no steam connection")
		replyError(out, "Not connected to Steam")
		return false
	}

	if ctx.authEnabled {
		if req.Secret == "" {
			replyError(out, "A secret is required")
			return false
		}
		if !ctx.acceptsSecret(req.Secret) {
			replyError(out, "Wrong secret! Are you a hacker?")
			return false
		}
	}

	rewritten, err := rewriteForSteam(ctx, out, &req)
	if err != nil {
		slog.Error("failed to serialize rewritten request", "error", err)
		return false
	}

	if !steamTx.Push(rewritten) {
		// Steam's outbound queue was already closed: the Steam-Role
		// handler exited between the handle lookup above and this push.
		// Mark it lost and tell this client "Not connected to Steam"
		// instead of dropping the request silently.
		slog.Info("enqueue onto steam failed, marking steam lost")
		ctx.markSteamLost()
		replyError(out, "Not connected to Steam")
		return false
	}
	return true
}

// rewriteForSteam applies the client request rewrite rule from spec
// §4.4: assign a broker seq, record routing state, and overwrite
// secret/messageId before serializing.
func rewriteForSteam(ctx *Context, out *outboundQueue, req *wire.RpcRequest) (string, error) {
	seq := ctx.nextSeq()

	ctx.registerClient(seq, out, req.MessageID)

	req.Secret = ctx.steamSecret
	req.MessageID = &seq

	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// routeSteamReply implements spec §4.4's "Steam reply routing": parse
// as a generic JSON object, pull the broker-assigned seq out of
// messageId, restore the client's original id if one was recorded, and
// deliver to that client's outbound queue.
func routeSteamReply(ctx *Context, frame string) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(frame), &obj); err != nil {
		slog.Warn("dropping unparsable steam reply", "error", err)
		return
	}

	rawID, present := obj["messageId"]
	if !present {
		slog.Warn("dropping steam reply with no messageId")
		return
	}

	var seq uint32
	if err := json.Unmarshal(rawID, &seq); err != nil {
		slog.Warn("dropping steam reply with non-numeric messageId", "error", err)
		return
	}

	delete(obj, "messageId")

	tx, clientID, hasClientID, ok := ctx.lookupClient(seq)
	if !ok {
		slog.Warn("no client channel for id", "seq", seq)
		return
	}

	if hasClientID {
		clientIDRaw, err := json.Marshal(clientID)
		if err == nil {
			obj["messageId"] = clientIDRaw
		}
	}

	data, err := json.Marshal(obj)
	if err != nil {
		slog.Error("failed to re-serialize steam reply", "error", err)
		return
	}

	tx.Push(string(data))
}

func replyError(out *outboundQueue, msg string) {
	data, err := json.Marshal(wire.NewErrorReply(msg))
	if err != nil {
		slog.Error("failed to marshal error reply", "error", err)
		return
	}
	out.Push(string(data))
}
