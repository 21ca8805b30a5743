package cdp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func overrideDiscoveryURL(t *testing.T, url string) func() {
	t.Helper()
	orig := discoveryURL
	discoveryURL = url
	return func() { discoveryURL = orig }
}

func setDiscoverInterval(d time.Duration) {
	discoverInterval = d
}

func TestDiscoverFindsSharedJSContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"title":"DevTools","webSocketDebuggerUrl":"ws://127.0.0.1:9/devtools/other"},
			{"title":"SharedJSContext","webSocketDebuggerUrl":"ws://127.0.0.1:9/devtools/shared"}
		]`))
	}))
	defer srv.Close()

	restore := overrideDiscoveryURL(t, srv.URL)
	defer restore()

	url, err := Discover(context.Background(), nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if url != "ws://127.0.0.1:9/devtools/shared" {
		t.Errorf("Discover() = %q, want the SharedJSContext entry", url)
	}
}

func TestDiscoverMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	restore := overrideDiscoveryURL(t, srv.URL)
	defer restore()

	origInterval := discoverInterval
	setDiscoverInterval(10 * time.Millisecond)
	defer setDiscoverInterval(origInterval)

	budget := 2
	_, err := Discover(context.Background(), &budget)
	if err != ErrMaxRetries {
		t.Fatalf("Discover() error = %v, want ErrMaxRetries", err)
	}
}

func TestKillOtherInstanceSendsTerminate(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan evaluateEnvelope, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var env evaluateEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Errorf("reading envelope: %v", err)
			return
		}
		received <- env
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]

	if err := KillOtherInstance(wsURL, 3); err != nil {
		t.Fatalf("KillOtherInstance: %v", err)
	}

	select {
	case env := <-received:
		if env.Params.Expression != "window.terminate()" {
			t.Errorf("expression = %q, want window.terminate()", env.Params.Expression)
		}
		if env.ID != 1 {
			t.Errorf("id = %d, want 1", env.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the evaluate envelope")
	}
}

func TestInjectPayloadSendsRenderedExpression(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan evaluateEnvelope, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var env evaluateEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Errorf("reading envelope: %v", err)
			return
		}
		received <- env
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]

	if err := InjectPayload(wsURL, "console.log('hi')", 3); err != nil {
		t.Fatalf("InjectPayload: %v", err)
	}

	env := <-received
	if env.Params.Expression != "console.log('hi')" {
		t.Errorf("expression = %q, want the rendered payload", env.Params.Expression)
	}
}
