// Package cdp discovers SteamWebHelper's SharedJSContext debugger tab
// over the Chrome DevTools Protocol and evaluates JavaScript inside it,
// both to detect/terminate a previously injected Conductor instance and
// to inject Conductor's own bootstrap payload.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// discoveryURL is hard-coded to match SteamWebHelper's fixed debugger
// port; it is not configurable, matching the original implementation.
// It is a var rather than a const only so tests can point it at a
// local httptest server.
var discoveryURL = "http://localhost:8080/json"

// discoverInterval is a var for the same reason: tests shrink it so
// retry-budget exhaustion doesn't take real wall-clock seconds.
var discoverInterval = 1000 * time.Millisecond

const (
	discoverHTTPTimeout = 500 * time.Millisecond
	sendRetryInterval   = 200 * time.Millisecond
)

// ErrMaxRetries is returned by Discover when a retry budget was given
// and exhausted without finding the SharedJSContext tab.
var ErrMaxRetries = errors.New("cdp: exceeded max retries discovering debugger URL")

// tabEntry is one entry of the /json tab list CDP exposes.
type tabEntry struct {
	Title               string `json:"title"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// httpClient is shared across discovery attempts; it carries the fixed
// 500ms per-attempt timeout from spec.
var httpClient = &http.Client{Timeout: discoverHTTPTimeout}

// Discover polls discoveryURL at a 1 second interval until it finds the
// SharedJSContext tab's WebSocket debugger URL. If maxRetries is
// non-nil, Discover gives up and returns ErrMaxRetries after that many
// failed attempts; otherwise it retries forever (bounded only by ctx).
func Discover(ctx context.Context, maxRetries *int) (string, error) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		url, err := discoverOnce(ctx)
		if err == nil {
			return url, nil
		}

		attempt++
		if maxRetries != nil && attempt >= *maxRetries {
			return "", ErrMaxRetries
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(discoverInterval):
		}
	}
}

func discoverOnce(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting tab list: %w", err)
	}
	defer resp.Body.Close()

	var tabs []tabEntry
	if err := json.NewDecoder(resp.Body).Decode(&tabs); err != nil {
		return "", fmt.Errorf("decoding tab list: %w", err)
	}

	for _, tab := range tabs {
		if tab.Title == "SharedJSContext" {
			return tab.WebSocketDebuggerURL, nil
		}
	}

	return "", errors.New("SharedJSContext tab not found")
}

// evaluateEnvelope is the CDP Runtime.evaluate request Conductor sends
// for every probe/kill/inject call.
type evaluateEnvelope struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params params `json:"params"`
}

type params struct {
	Expression   string `json:"expression"`
	AwaitPromise bool   `json:"awaitPromise"`
}

func newEvaluate(id int, expression string) evaluateEnvelope {
	return evaluateEnvelope{
		ID:     id,
		Method: "Runtime.evaluate",
		Params: params{Expression: expression, AwaitPromise: true},
	}
}

// evaluateReply is the subset of a Runtime.evaluate response Conductor
// needs to interpret ProbeOtherInstance's result.
type evaluateReply struct {
	Result struct {
		Result struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"result"`
	} `json:"result"`
}

// ProbeOtherInstance asks the SharedJSContext whether window.rpcSecret
// is already set. A different Conductor process set it if injection
// already happened; any non-undefined value counts as evidence of
// another instance, since this process hasn't generated its own secret
// yet at probe time (see spec §9). Any transport failure is treated the
// same as "no other instance" — there is nothing else to report to.
func ProbeOtherInstance(url string) bool {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		slog.Info("probe: dialing debugger url failed", "error", err)
		return false
	}
	defer conn.Close()

	req := newEvaluate(0, "window.rpcSecret")
	if err := conn.WriteJSON(req); err != nil {
		slog.Info("probe: sending evaluate failed", "error", err)
		return false
	}

	var reply evaluateReply
	if err := conn.ReadJSON(&reply); err != nil {
		slog.Info("probe: reading reply failed", "error", err)
		return false
	}

	return reply.Result.Result.Type != "undefined"
}

// KillOtherInstance sends window.terminate() to the SharedJSContext,
// retrying the send at 200ms intervals up to maxTries times. Success is
// defined as the first send the socket accepts; no reply is read.
func KillOtherInstance(url string, maxTries int) error {
	return sendEvaluateWithRetry(url, newEvaluate(1, "window.terminate()"), maxTries)
}

// InjectPayload sends the rendered JavaScript payload to the
// SharedJSContext, retrying at 200ms intervals up to maxTries times.
// Success is defined as the first send the socket accepts.
func InjectPayload(url, renderedPayload string, maxTries int) error {
	return sendEvaluateWithRetry(url, newEvaluate(1, renderedPayload), maxTries)
}

func sendEvaluateWithRetry(url string, req evaluateEnvelope, maxTries int) error {
	var lastErr error
	for attempt := 0; attempt < maxTries; attempt++ {
		if attempt > 0 {
			time.Sleep(sendRetryInterval)
		}

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			lastErr = fmt.Errorf("dialing debugger url: %w", err)
			continue
		}

		err = conn.WriteJSON(req)
		conn.Close()
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("sending evaluate: %w", err)
	}

	return fmt.Errorf("exhausted %d tries: %w", maxTries, lastErr)
}
