package wire

import (
	"encoding/json"
	"testing"
)

func TestRpcRequestRoundTrip(t *testing.T) {
	id := uint32(42)
	req := RpcRequest{Command: "ping", Args: json.RawMessage(`{"a":1}`), MessageID: &id}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got RpcRequest
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Command != "ping" || got.MessageID == nil || *got.MessageID != 42 {
		t.Errorf("round trip = %+v", got)
	}
	if got.Secret != "" {
		t.Errorf("Secret = %q, want empty when omitted", got.Secret)
	}
}

func TestRpcRequestOmitsEmptyOptionalFields(t *testing.T) {
	req := RpcRequest{Command: "noop"}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	for _, key := range []string{"secret", "messageId", "args"} {
		if _, present := obj[key]; present {
			t.Errorf("wire object contains %q, want omitted", key)
		}
	}
}

func TestNewErrorReply(t *testing.T) {
	reply := NewErrorReply("boom")
	if reply.Success {
		t.Error("Success = true, want false")
	}
	if reply.Error != "boom" {
		t.Errorf("Error = %q, want boom", reply.Error)
	}
}
