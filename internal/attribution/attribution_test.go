package attribution

import (
	"context"
	"testing"
	"time"

	"github.com/linkforty/linkforty/internal/domain"
	"github.com/linkforty/linkforty/internal/store"
)

func TestScore_AllFactorsMatch(t *testing.T) {
	sig := domain.FingerprintSignals{
		IP: "1.2.3.4", UserAgent: "Mozilla/5.0 (iPhone)", Timezone: "America/New_York",
		Language: "en-US", ScreenWidth: 390, ScreenHeight: 844,
	}
	total, factors := score(sig, sig)
	if total != 100 {
		t.Fatalf("expected a perfect score of 100, got %d", total)
	}
	if len(factors) != 5 {
		t.Fatalf("expected all 5 factors to match, got %v", factors)
	}
}

func TestScore_PartialMatchBelowThreshold(t *testing.T) {
	report := domain.FingerprintSignals{IP: "1.2.3.4", Timezone: "UTC"}
	candidate := domain.FingerprintSignals{IP: "1.2.3.4", Timezone: "America/Chicago"}

	total, factors := score(report, candidate)
	if total != WeightIP {
		t.Fatalf("expected only the IP factor (%d), got %d", WeightIP, total)
	}
	if len(factors) != 1 || factors[0] != domain.FactorIP {
		t.Fatalf("expected only FactorIP, got %v", factors)
	}
	if total >= Threshold {
		t.Fatalf("expected a sub-threshold score, got %d >= %d", total, Threshold)
	}
}

func TestScore_IPAndUAClearsThreshold(t *testing.T) {
	sig := domain.FingerprintSignals{IP: "1.2.3.4", UserAgent: "Mozilla/5.0 (iPhone) AppleWebKit"}
	total, _ := score(sig, sig)
	if total != WeightIP+WeightUA {
		t.Fatalf("expected IP+UA = %d, got %d", WeightIP+WeightUA, total)
	}
	if total < Threshold {
		t.Fatalf("expected IP+UA (%d) to clear threshold %d", total, Threshold)
	}
}

func TestScore_EmptyFieldsNeverMatch(t *testing.T) {
	report := domain.FingerprintSignals{}
	candidate := domain.FingerprintSignals{}
	total, factors := score(report, candidate)
	if total != 0 || len(factors) != 0 {
		t.Fatalf("expected no factors to match on empty signals, got total=%d factors=%v", total, factors)
	}
}

type fakeInstallStore struct {
	created  []*domain.InstallEvent
	byID     map[string]*domain.InstallEvent
	deepLink map[string]map[string]any
}

func newFakeInstallStore() *fakeInstallStore {
	return &fakeInstallStore{byID: map[string]*domain.InstallEvent{}, deepLink: map[string]map[string]any{}}
}

func (f *fakeInstallStore) Create(ctx context.Context, install *domain.InstallEvent) error {
	f.created = append(f.created, install)
	f.byID[install.ID] = install
	return nil
}

func (f *fakeInstallStore) AttachDeepLink(ctx context.Context, id string, payload map[string]any) error {
	f.deepLink[id] = payload
	return nil
}

func (f *fakeInstallStore) GetByID(ctx context.Context, id string) (*domain.InstallEvent, error) {
	inst, ok := f.byID[id]
	if !ok {
		return nil, store.ErrInstallNotFound
	}
	return inst, nil
}

func (f *fakeInstallStore) GetLatestByFingerprint(ctx context.Context, hash string) (*domain.InstallEvent, error) {
	for _, inst := range f.byID {
		if inst.FingerprintHash == hash {
			return inst, nil
		}
	}
	return nil, store.ErrInstallNotFound
}

type fakeFingerprintStore struct {
	candidates []store.CandidateClick
}

func (f *fakeFingerprintStore) Create(ctx context.Context, fp *domain.DeviceFingerprint) error { return nil }

func (f *fakeFingerprintStore) RecentCandidates(ctx context.Context) ([]store.CandidateClick, error) {
	return f.candidates, nil
}

type fakeLinkStore struct {
	byID map[string]*domain.Link
}

func (f *fakeLinkStore) Create(ctx context.Context, link *domain.Link) error { return nil }
func (f *fakeLinkStore) GetByCode(ctx context.Context, code string) (*domain.Link, error) {
	return nil, nil
}
func (f *fakeLinkStore) GetBySlugAndCode(ctx context.Context, slug, code string) (*domain.Link, error) {
	return nil, nil
}
func (f *fakeLinkStore) GetByID(ctx context.Context, id string) (*domain.Link, error) {
	link, ok := f.byID[id]
	if !ok {
		return nil, store.ErrLinkNotFound
	}
	return link, nil
}
func (f *fakeLinkStore) Update(ctx context.Context, link *domain.Link) error { return nil }
func (f *fakeLinkStore) Delete(ctx context.Context, id string) error         { return nil }
func (f *fakeLinkStore) List(ctx context.Context, limit, offset int) ([]domain.Link, error) {
	return nil, nil
}

type fakeInAppEventStore struct {
	created []*domain.InAppEvent
}

func (f *fakeInAppEventStore) Create(ctx context.Context, event *domain.InAppEvent) error {
	f.created = append(f.created, event)
	return nil
}

func TestEngine_ReportInstall_AttributesBestCandidate(t *testing.T) {
	now := time.Now()
	sig := domain.FingerprintSignals{IP: "9.9.9.9", UserAgent: "Mozilla/5.0 (iPhone)"}

	installs := newFakeInstallStore()
	fingerprints := &fakeFingerprintStore{candidates: []store.CandidateClick{
		{ClickID: "click1", LinkID: "link1", ClickedAt: now.Add(-time.Minute), AttributionWindowHours: 24, Signals: sig},
	}}
	links := &fakeLinkStore{byID: map[string]*domain.Link{
		"link1": {ID: "link1", ShortCode: "abc", DeepLinkPath: "/product/1"},
	}}
	inapps := &fakeInAppEventStore{}

	eng := New(installs, fingerprints, links, nil, inapps, nil, nil)

	install, err := eng.ReportInstall(context.Background(), sig, 0)
	if err != nil {
		t.Fatalf("ReportInstall returned error: %v", err)
	}
	if !install.Attributed() {
		t.Fatalf("expected install to be attributed, got %+v", install)
	}
	if install.LinkID == nil || *install.LinkID != "link1" {
		t.Fatalf("expected link1 to be attributed, got %+v", install.LinkID)
	}
	if install.DeepLinkPayload["short_code"] != "abc" {
		t.Fatalf("expected attached deep link payload, got %+v", install.DeepLinkPayload)
	}
}

func TestEngine_ReportInstall_FallsBackToOrganic(t *testing.T) {
	now := time.Now()
	installs := newFakeInstallStore()
	fingerprints := &fakeFingerprintStore{candidates: []store.CandidateClick{
		{ClickID: "click1", LinkID: "link1", ClickedAt: now.Add(-time.Minute), AttributionWindowHours: 24,
			Signals: domain.FingerprintSignals{IP: "1.1.1.1"}},
	}}
	links := &fakeLinkStore{byID: map[string]*domain.Link{}}
	eng := New(installs, fingerprints, links, nil, &fakeInAppEventStore{}, nil, nil)

	install, err := eng.ReportInstall(context.Background(), domain.FingerprintSignals{IP: "2.2.2.2"}, 0)
	if err != nil {
		t.Fatalf("ReportInstall returned error: %v", err)
	}
	if install.Attributed() {
		t.Fatalf("expected an organic install, got %+v", install)
	}
}

func TestEngine_ReportInstall_ExpiredWindowExcluded(t *testing.T) {
	now := time.Now()
	sig := domain.FingerprintSignals{IP: "9.9.9.9", UserAgent: "Mozilla/5.0 (iPhone)"}
	installs := newFakeInstallStore()
	fingerprints := &fakeFingerprintStore{candidates: []store.CandidateClick{
		{ClickID: "click1", LinkID: "link1", ClickedAt: now.Add(-48 * time.Hour), AttributionWindowHours: 24, Signals: sig},
	}}
	links := &fakeLinkStore{byID: map[string]*domain.Link{"link1": {ID: "link1"}}}
	eng := New(installs, fingerprints, links, nil, &fakeInAppEventStore{}, nil, nil)

	install, err := eng.ReportInstall(context.Background(), sig, 0)
	if err != nil {
		t.Fatalf("ReportInstall returned error: %v", err)
	}
	if install.Attributed() {
		t.Fatalf("expected the expired candidate to be excluded, got %+v", install)
	}
}

func TestEngine_RecordInAppEvent(t *testing.T) {
	installs := newFakeInstallStore()
	installs.byID["inst1"] = &domain.InstallEvent{ID: "inst1"}
	inapps := &fakeInAppEventStore{}
	eng := New(installs, &fakeFingerprintStore{}, &fakeLinkStore{byID: map[string]*domain.Link{}}, nil, inapps, nil, nil)

	evt, err := eng.RecordInAppEvent(context.Background(), "inst1", "purchase", map[string]any{"amount": 9.99})
	if err != nil {
		t.Fatalf("RecordInAppEvent returned error: %v", err)
	}
	if evt.EventName != "purchase" || len(inapps.created) != 1 {
		t.Fatalf("expected a persisted purchase event, got %+v", evt)
	}
}

func TestEngine_RecordInAppEvent_UnknownInstall(t *testing.T) {
	eng := New(newFakeInstallStore(), &fakeFingerprintStore{}, &fakeLinkStore{byID: map[string]*domain.Link{}}, nil, &fakeInAppEventStore{}, nil, nil)

	if _, err := eng.RecordInAppEvent(context.Background(), "missing", "x", nil); err == nil {
		t.Fatal("expected an error for an unknown install id")
	}
}
