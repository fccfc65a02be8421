package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"offline-gateway/internal/store"
)

func TestDeliverPostsEntryPayload(t *testing.T) {
	var received entryPayload
	var contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload failed: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	endpoint := NewEndpoint(server.URL, 5*time.Second)

	entry := store.Entry{ID: 7, Text: "hello", CreatedAt: 1700000000000, Status: store.StatusPending}
	if err := endpoint.Deliver(context.Background(), entry); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	if contentType != "application/json" {
		t.Fatalf("expected json content type, got %q", contentType)
	}
	if received.Text != "hello" || received.CreatedAt != 1700000000000 {
		t.Fatalf("unexpected payload: %+v", received)
	}
}

func TestDeliverRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	endpoint := NewEndpoint(server.URL, 5*time.Second)

	err := endpoint.Deliver(context.Background(), store.Entry{ID: 1, Text: "x"})
	if !errors.Is(err, ErrDeliveryRejected) {
		t.Fatalf("expected delivery rejection, got %v", err)
	}
}

func TestDeliverReportsUnreachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	endpoint := NewEndpoint(server.URL, time.Second)

	if err := endpoint.Deliver(context.Background(), store.Entry{ID: 1, Text: "x"}); err == nil {
		t.Fatalf("expected error for unreachable endpoint")
	}
}
