package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/tancop/conductor/internal/cdp"
)

const (
	reconnectInitialDelay = 100 * time.Millisecond
	reconnectSettleDelay  = 700 * time.Millisecond
	reconnectMaxRetries   = 5
)

// scheduleReconnect runs the Steam reconnect sequence from spec §4.5
// in its own goroutine so the exiting Steam-Role handler can finish
// tearing down first.
func scheduleReconnect(ctx *Context) {
	go runReconnect(ctx)
}

func runReconnect(ctx *Context) {
	time.Sleep(reconnectInitialDelay)

	retries := reconnectMaxRetries
	url, err := cdp.Discover(context.Background(), &retries)
	if err != nil {
		slog.Error("reconnect: discover failed, giving up", "error", err)
		ctx.ExitSignal().Fire(false)
		return
	}

	if err := cdp.InjectPayload(url, ctx.payload(), reconnectMaxRetries); err != nil {
		slog.Error("reconnect: inject failed", "error", err)
	}

	time.Sleep(reconnectSettleDelay)

	if !ctx.SteamConnected() {
		slog.Error("reconnect: steam did not reconnect within settle window")
		ctx.ExitSignal().Fire(false)
	}
}
