package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubmitOrderSignsRequest(t *testing.T) {
	var gotHeaders http.Header
	var gotBody SwapOrderRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(RelayTaskResponse{TaskID: "task-7", State: "pending"})
	}))
	defer srv.Close()

	c := NewRelayClient(srv.URL, 137, &RelayCreds{
		Key:        "k",
		Secret:     "c2VjcmV0LXNlY3JldC1zZWNyZXQ=", // base64
		Passphrase: "p",
	})

	resp, err := c.SubmitOrder(context.Background(), SwapOrderRequest{
		From:        "0xaa",
		InputAsset:  "0xusdc",
		OutputAsset: "0xweth",
		InputAmount: "100",
		Signature:   "0xsig",
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if resp.TaskID != "task-7" {
		t.Fatalf("want task-7, got %q", resp.TaskID)
	}

	// HMAC auth headers must be present on every request
	for _, h := range []string{"Relay_api_key", "Relay_passphrase", "Relay_signature", "Relay_timestamp"} {
		if gotHeaders.Get(h) == "" {
			t.Fatalf("missing auth header %s", h)
		}
	}
	if gotBody.Type != "SWAP" {
		t.Fatalf("order type should be forced to SWAP, got %q", gotBody.Type)
	}
}

func TestSubmitOrderRejectedByRelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(RelayTaskResponse{Error: "insufficient allowance"})
	}))
	defer srv.Close()

	c := NewRelayClient(srv.URL, 137, nil)
	if _, err := c.SubmitOrder(context.Background(), SwapOrderRequest{}); err == nil {
		t.Fatal("relay-side rejection should surface as error")
	}
}

func TestSubmitOrderHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewRelayClient(srv.URL, 137, nil)
	if _, err := c.SubmitOrder(context.Background(), SwapOrderRequest{}); err == nil {
		t.Fatal("non-2xx should surface as error")
	}
}

func TestTaskStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tasks/task-7" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(RelayTaskResponse{
			TaskID:          "task-7",
			State:           "executed",
			TransactionHash: "0xabc",
		})
	}))
	defer srv.Close()

	c := NewRelayClient(srv.URL, 137, nil)
	resp, err := c.TaskStatus(context.Background(), "task-7")
	if err != nil {
		t.Fatalf("TaskStatus: %v", err)
	}
	if resp.State != "executed" || resp.TransactionHash != "0xabc" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
