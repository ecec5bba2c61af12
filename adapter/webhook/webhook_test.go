package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/mural/adapter"
	"github.com/pithecene-io/mural/iox"
)

func testEvent() *adapter.SessionCompletedEvent {
	return &adapter.SessionCompletedEvent{
		ContractVersion: "0.3.0",
		EventType:       adapter.EventTypeSessionCompleted,
		SessionID:       "sess-001",
		Role:            "client",
		Codec:           "squirt 0 3",
		Outcome:         adapter.OutcomeOK,
		FramesReceived:  300,
		FramesDegraded:  2,
		Timestamp:       "2026-10-17T12:00:00Z",
		DurationMs:      10000,
	}
}

func TestPublish_Success(t *testing.T) {
	var received adapter.SessionCompletedEvent
	var header http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		header = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Retries: 0})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if received.SessionID != "sess-001" || received.FramesDegraded != 2 {
		t.Errorf("received %+v", received)
	}
	if ct := header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
	if got := header.Get(HeaderEvent); got != adapter.EventTypeSessionCompleted {
		t.Errorf("%s = %q", HeaderEvent, got)
	}
	if got := header.Get(HeaderSession); got != "sess-001" {
		t.Errorf("%s = %q", HeaderSession, got)
	}
	if got := header.Get(HeaderSignature); got != "" {
		t.Errorf("unsigned request carries %s %q", HeaderSignature, got)
	}
}

func TestPublish_Signed(t *testing.T) {
	var body []byte
	var signature string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		signature = r.Header.Get(HeaderSignature)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Secret: "s3cret", Headers: map[string]string{"X-Env": "lab"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if want := Sign("s3cret", body); signature != want {
		t.Errorf("signature = %q, want %q", signature, want)
	}
	if Sign("other", body) == signature {
		t.Error("signature does not depend on the secret")
	}
}

func TestPublish_CustomHeaders(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Headers: map[string]string{"Authorization": "Bearer token"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got != "Bearer token" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestPublish_StatusHandling(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		retries   int
		wantCalls int32
		wantErr   bool
		wantCode  int
	}{
		{"accepts 202", []int{http.StatusAccepted}, 2, 1, false, 0},
		{"recovers after 503", []int{http.StatusServiceUnavailable, http.StatusOK}, 2, 2, false, 0},
		{"4xx fails immediately", []int{http.StatusBadRequest}, 3, 1, true, http.StatusBadRequest},
		{"5xx exhausts retries", []int{http.StatusInternalServerError}, 1, 2, true, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1)) - 1
				w.WriteHeader(tt.statuses[min(n, len(tt.statuses)-1)])
			}))
			defer ts.Close()

			a, err := New(Config{URL: ts.URL, Retries: tt.retries, Timeout: time.Second})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			defer iox.DiscardClose(a)

			err = a.Publish(t.Context(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Fatalf("publish error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			var statusErr *StatusError
			if tt.wantCode != 0 && (!errors.As(err, &statusErr) || statusErr.Code != tt.wantCode) {
				t.Errorf("error = %v, want status %d", err, tt.wantCode)
			}
		})
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Retries: 5})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := a.Publish(ctx, testEvent()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("publish error = %v, want deadline exceeded", err)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://localhost", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}
	a, err := New(Config{URL: "http://localhost"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
	}
}
