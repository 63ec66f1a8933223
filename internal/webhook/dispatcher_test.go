package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linkforty/linkforty/internal/domain"
	"github.com/linkforty/linkforty/internal/store"
	"go.uber.org/zap"
)

type fakeWebhookStore struct {
	byID map[string]*domain.Webhook
}

func (f *fakeWebhookStore) Create(ctx context.Context, wh *domain.Webhook) error { return nil }

func (f *fakeWebhookStore) GetByID(ctx context.Context, id string) (*domain.Webhook, error) {
	wh, ok := f.byID[id]
	if !ok {
		return nil, store.ErrWebhookNotFound
	}
	return wh, nil
}

func (f *fakeWebhookStore) ListSubscribed(ctx context.Context, ownerID *string, evt domain.EventType) ([]domain.Webhook, error) {
	var out []domain.Webhook
	for _, wh := range f.byID {
		if wh.Subscribes(evt) {
			out = append(out, *wh)
		}
	}
	return out, nil
}

func (f *fakeWebhookStore) RotateSecret(ctx context.Context, id, newSecret string) error { return nil }

type fakeDeliveryLogStore struct {
	entries []*domain.DeliveryLog
}

func (f *fakeDeliveryLogStore) Create(ctx context.Context, log *domain.DeliveryLog) error {
	f.entries = append(f.entries, log)
	return nil
}

func TestDispatcher_Test_Success(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-LinkForty-Signature"); got == "" || len(got) < len("sha256=") {
			t.Errorf("expected a signature header, got %q", got)
		}
		if got := r.Header.Get("X-LinkForty-Event"); got != string(domain.EventClick) {
			t.Errorf("expected event header %q, got %q", domain.EventClick, got)
		}
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := domain.Webhook{
		ID: "wh1", URL: srv.URL, Secret: "s3cr3t", IsActive: true,
		MaxAttempts: 3, TimeoutMS: 5000, Events: []domain.EventType{domain.EventClick},
	}

	logs := &fakeDeliveryLogStore{}
	d := New(nil, &fakeWebhookStore{byID: map[string]*domain.Webhook{"wh1": &wh}}, logs, zap.NewNop())

	entry, err := d.Test(context.Background(), wh, domain.EventClick, map[string]any{"ok": true})
	if err != nil {
		t.Fatalf("Test returned error: %v", err)
	}
	if !entry.Success {
		t.Fatalf("expected a successful delivery log entry, got %+v", entry)
	}
	if entry.ResponseStatus != http.StatusOK {
		t.Fatalf("expected status 200, got %d", entry.ResponseStatus)
	}
	if len(logs.entries) != 1 {
		t.Fatalf("expected exactly one persisted delivery log, got %d", len(logs.entries))
	}

	var envelope struct {
		Event     string          `json:"event"`
		EventID   string          `json:"event_id"`
		Timestamp string          `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("delivery body is not valid JSON: %v", err)
	}
	if envelope.Event != string(domain.EventClick) {
		t.Errorf("expected envelope event %q, got %q", domain.EventClick, envelope.Event)
	}
	if envelope.EventID == "" {
		t.Error("expected a non-empty envelope event_id")
	}
	if _, err := time.Parse(time.RFC3339, envelope.Timestamp); err != nil {
		t.Errorf("expected envelope timestamp to be RFC3339, got %q: %v", envelope.Timestamp, err)
	}
	var data struct{ OK bool `json:"ok"` }
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("envelope data is not the original payload: %v", err)
	}
	if !data.OK {
		t.Error("expected envelope data to carry the original payload fields")
	}
}

func TestDispatcher_Test_TimeoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := domain.Webhook{
		ID: "wh1", URL: srv.URL, Secret: "s3cr3t", IsActive: true,
		MaxAttempts: 3, TimeoutMS: 1,
	}
	d := New(nil, &fakeWebhookStore{byID: map[string]*domain.Webhook{}}, &fakeDeliveryLogStore{}, zap.NewNop())

	entry, err := d.Test(context.Background(), wh, domain.EventClick, map[string]any{})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if entry == nil {
		t.Fatal("expected a delivery log entry even on timeout")
	}
	want := "Timeout after 1ms"
	if entry.Error != want {
		t.Errorf("expected error %q, got %q", want, entry.Error)
	}
}

func TestDispatcher_Test_ResponseBodyTruncatedTo1000Bytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer srv.Close()

	wh := domain.Webhook{ID: "wh1", URL: srv.URL, Secret: "s3cr3t", IsActive: true, MaxAttempts: 3, TimeoutMS: 5000}
	d := New(nil, &fakeWebhookStore{byID: map[string]*domain.Webhook{}}, &fakeDeliveryLogStore{}, zap.NewNop())

	entry, err := d.Test(context.Background(), wh, domain.EventClick, map[string]any{})
	if err != nil {
		t.Fatalf("Test returned error: %v", err)
	}
	if len(entry.ResponseBody) != 1000 {
		t.Errorf("expected response body capped at 1000 bytes, got %d", len(entry.ResponseBody))
	}
}

func TestDispatcher_Test_NonSuccessStatusIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := domain.Webhook{ID: "wh1", URL: srv.URL, Secret: "s3cr3t", IsActive: true, MaxAttempts: 3, TimeoutMS: 5000}
	d := New(nil, &fakeWebhookStore{byID: map[string]*domain.Webhook{}}, &fakeDeliveryLogStore{}, zap.NewNop())

	entry, err := d.Test(context.Background(), wh, domain.EventClick, map[string]any{})
	if err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
	if entry == nil || entry.Success {
		t.Fatalf("expected a failed delivery log entry, got %+v", entry)
	}
	if entry.ResponseStatus != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", entry.ResponseStatus)
	}
}

func TestDispatcher_Enqueue_NilJetStreamIsNoop(t *testing.T) {
	d := New(nil, &fakeWebhookStore{byID: map[string]*domain.Webhook{}}, &fakeDeliveryLogStore{}, zap.NewNop())
	// Must not panic or block with a nil JetStream context.
	d.Enqueue(context.Background(), domain.Webhook{ID: "wh1"}, domain.EventClick, map[string]any{})
}

func TestDispatcher_Start_NilJetStreamIsNoop(t *testing.T) {
	d := New(nil, &fakeWebhookStore{byID: map[string]*domain.Webhook{}}, &fakeDeliveryLogStore{}, zap.NewNop())
	if err := d.Start(); err != nil {
		t.Fatalf("expected Start to no-op with a nil JetStream context, got %v", err)
	}
}
