package clickrecorder

import (
	"context"
	"testing"
	"time"

	"github.com/linkforty/linkforty/internal/domain"
	"github.com/linkforty/linkforty/internal/eventbus"
	"github.com/linkforty/linkforty/internal/resolver"
	"github.com/linkforty/linkforty/internal/store"
	"go.uber.org/zap"
)

type fakeClickStore struct {
	created []*domain.ClickEvent
}

func (f *fakeClickStore) Create(ctx context.Context, click *domain.ClickEvent) error {
	f.created = append(f.created, click)
	return nil
}

type fakeFingerprintStore struct {
	created []*domain.DeviceFingerprint
}

func (f *fakeFingerprintStore) Create(ctx context.Context, fp *domain.DeviceFingerprint) error {
	f.created = append(f.created, fp)
	return nil
}

func (f *fakeFingerprintStore) RecentCandidates(ctx context.Context) ([]store.CandidateClick, error) {
	return nil, nil
}

type staticGeo struct{ country string }

func (g staticGeo) Lookup(ctx context.Context, ip string) domain.Geo {
	return domain.Geo{CountryCode: g.country}
}

func TestRecorder_RecordAsync_PersistsClickAndFingerprint(t *testing.T) {
	clicks := &fakeClickStore{}
	fingerprints := &fakeFingerprintStore{}
	bus := eventbus.New(8, zap.NewNop())

	received := make(chan eventbus.ClickRecord, 1)
	cancel := bus.Subscribe(eventbus.Filter{}, func(rec eventbus.ClickRecord) {
		received <- rec
	})
	defer cancel()

	r := New(clicks, fingerprints, nil, staticGeo{country: "US"}, bus, nil, nil)

	link := &domain.Link{ID: "link1", ShortCode: "abc", OwnerID: nil}
	decision := &resolver.Decision{
		Link: link, URL: "https://example.com", Reason: resolver.ReasonWebFallbackURL,
		Signals: resolver.RequestSignals{
			IP: "1.2.3.4", UserAgent: "Mozilla/5.0 (Windows NT 10.0)", Device: domain.DeviceWeb,
			Query: map[string][]string{"utm_source": {"newsletter"}},
		},
	}

	r.RecordAsync(decision)
	r.Wait()

	if len(clicks.created) != 1 {
		t.Fatalf("expected exactly one click event persisted, got %d", len(clicks.created))
	}
	if clicks.created[0].UTM.Source != "newsletter" {
		t.Fatalf("expected captured utm_source, got %+v", clicks.created[0].UTM)
	}
	if len(fingerprints.created) != 1 {
		t.Fatalf("expected exactly one device fingerprint persisted, got %d", len(fingerprints.created))
	}
	if fingerprints.created[0].ClickID != clicks.created[0].ID {
		t.Fatalf("expected fingerprint to reference the created click id")
	}

	select {
	case rec := <-received:
		if rec.LinkID != "link1" || rec.ShortCode != "abc" {
			t.Fatalf("unexpected published click record: %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a click record to be published to the event bus")
	}
}

func TestRecorder_RecordAsync_FingerprintOverridesFromQuery(t *testing.T) {
	clicks := &fakeClickStore{}
	fingerprints := &fakeFingerprintStore{}
	r := New(clicks, fingerprints, nil, staticGeo{country: "US"}, nil, nil, nil)

	decision := &resolver.Decision{
		Link: &domain.Link{ID: "link1", ShortCode: "abc"},
		Signals: resolver.RequestSignals{
			IP: "1.2.3.4", UserAgent: "Mozilla/5.0", Device: domain.DeviceWeb,
			Query: map[string][]string{"fp_tz": {"America/New_York"}, "fp_lang": {"en-US"}},
		},
	}

	r.RecordAsync(decision)
	r.Wait()

	if len(fingerprints.created) != 1 {
		t.Fatalf("expected one fingerprint, got %d", len(fingerprints.created))
	}
	fp := fingerprints.created[0]
	if fp.Timezone != "America/New_York" || fp.Language != "en-US" {
		t.Fatalf("expected fingerprint overrides from query params, got %+v", fp)
	}
	if fp.IP != "1.2.3.4" {
		t.Fatalf("expected fingerprint IP to fall back to the request IP, got %q", fp.IP)
	}
}
