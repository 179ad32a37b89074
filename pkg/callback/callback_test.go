package callback

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voicetyped/voicequery/pkg/events"
	"github.com/voicetyped/voicequery/pkg/urlvalidation"
)

func testConfig() Config {
	return Config{
		Secret:         "s3cret",
		MaxAttempts:    3,
		BackoffInitial: time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
	}
}

func TestSignVerify(t *testing.T) {
	now := time.Now()
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := Sign("k", now, []byte("body"))
	if err := Verify("k", []byte("body"), ts, sig, 0); err != nil {
		t.Errorf("signature should verify: %v", err)
	}
	if err := Verify("other", []byte("body"), ts, sig, 0); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("wrong secret: %v", err)
	}
	if err := Verify("k", []byte("tampered"), ts, sig, 0); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("tampered body: %v", err)
	}

	old := now.Add(-time.Hour)
	if err := Verify("k", []byte("body"), strconv.FormatInt(old.Unix(), 10), Sign("k", old, []byte("body")), time.Minute); !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("stale delivery: %v", err)
	}
	if err := Verify("k", []byte("body"), "yesterday", sig, 0); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("bad timestamp: %v", err)
	}
}

func TestDeliverSignsAndRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		if err := Verify("s3cret", body, r.Header.Get(TimestampHeader), r.Header.Get(SignatureHeader), 0); err != nil {
			t.Errorf("bad signature: %v", err)
		}
		var p Payload
		if err := json.Unmarshal(body, &p); err != nil || p.Transcript != "red scarf" {
			t.Errorf("payload = %s", body)
		}
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	pub := events.NewLocalPublisher("test")
	ch := pub.Subscribe("t", 4)
	d := NewDeliverer(testConfig(), pub, nil, urlvalidation.AllowPrivateIPs())

	err := d.Deliver(context.Background(), srv.URL, Payload{Event: "query.generated", RequestID: "r1", Transcript: "red scarf"})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	env := <-ch
	if env.Type != events.CallbackDelivered {
		t.Errorf("event = %s", env.Type)
	}
}

func TestDeliverClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewDeliverer(testConfig(), nil, nil, urlvalidation.AllowPrivateIPs())
	if err := d.Deliver(context.Background(), srv.URL, Payload{}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDeliverGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	pub := events.NewLocalPublisher("test")
	ch := pub.Subscribe("t", 4)
	d := NewDeliverer(testConfig(), pub, nil, urlvalidation.AllowPrivateIPs())
	if err := d.Deliver(context.Background(), srv.URL, Payload{RequestID: "r2"}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if env := <-ch; env.Type != events.CallbackFailed {
		t.Errorf("event = %s", env.Type)
	}
}

func TestDeliverRejectsPrivateURL(t *testing.T) {
	d := NewDeliverer(testConfig(), nil, nil)
	if err := d.Deliver(context.Background(), "http://127.0.0.1:1/cb", Payload{}); err == nil {
		t.Fatal("private callback URL must be rejected")
	}
}

func TestDispatchWithoutPool(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	d := NewDeliverer(testConfig(), nil, nil, urlvalidation.AllowPrivateIPs())
	d.Dispatch(context.Background(), srv.URL, Payload{})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback not delivered")
	}
}
