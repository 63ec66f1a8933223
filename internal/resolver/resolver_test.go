package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linkforty/linkforty/internal/cache"
	"github.com/linkforty/linkforty/internal/domain"
	"github.com/linkforty/linkforty/internal/store"
)

type fakeLinkStore struct {
	byCode map[string]*domain.Link
}

func (f *fakeLinkStore) Create(ctx context.Context, link *domain.Link) error { return nil }

func (f *fakeLinkStore) GetByCode(ctx context.Context, code string) (*domain.Link, error) {
	link, ok := f.byCode[code]
	if !ok {
		return nil, store.ErrLinkNotFound
	}
	return link, nil
}

func (f *fakeLinkStore) GetBySlugAndCode(ctx context.Context, slug, code string) (*domain.Link, error) {
	return f.GetByCode(ctx, code)
}

func (f *fakeLinkStore) GetByID(ctx context.Context, id string) (*domain.Link, error) {
	for _, l := range f.byCode {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, store.ErrLinkNotFound
}

func (f *fakeLinkStore) Update(ctx context.Context, link *domain.Link) error { return nil }
func (f *fakeLinkStore) Delete(ctx context.Context, id string) error         { return nil }
func (f *fakeLinkStore) List(ctx context.Context, limit, offset int) ([]domain.Link, error) {
	return nil, nil
}

type noopCache struct{}

func (noopCache) Get(ctx context.Context, key string) (*domain.Link, bool) { return nil, false }
func (noopCache) Set(ctx context.Context, key string, link *domain.Link)   {}
func (noopCache) Invalidate(ctx context.Context, code, slug string)        {}

type staticGeo struct{ country string }

func (g staticGeo) Lookup(ctx context.Context, ip string) domain.Geo {
	return domain.Geo{CountryCode: g.country}
}

func newResolver(links store.LinkStore) *Resolver {
	return New(links, noopCache{}, nil, staticGeo{country: "US"}, nil)
}

func activeLink() *domain.Link {
	return &domain.Link{
		ID: "link1", ShortCode: "abc", OriginURL: "https://example.com/fallback",
		WebFallbackURL: "https://example.com/fallback", IsActive: true,
	}
}

func TestResolve_UnknownCodeIsNotFound(t *testing.T) {
	r := newResolver(&fakeLinkStore{byCode: map[string]*domain.Link{}})

	_, err := r.Resolve(context.Background(), Request{Code: "missing", UserAgent: "curl/8.0"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_InactiveLinkIsNotFound(t *testing.T) {
	link := activeLink()
	link.IsActive = false
	r := newResolver(&fakeLinkStore{byCode: map[string]*domain.Link{"abc": link}})

	_, err := r.Resolve(context.Background(), Request{Code: "abc", UserAgent: "curl/8.0"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for inactive link, got %v", err)
	}
}

func TestResolve_ExpiredLinkIsNotFound(t *testing.T) {
	link := activeLink()
	past := time.Now().Add(-time.Hour)
	link.ExpiresAt = &past
	r := newResolver(&fakeLinkStore{byCode: map[string]*domain.Link{"abc": link}})

	_, err := r.Resolve(context.Background(), Request{Code: "abc", UserAgent: "curl/8.0"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired link, got %v", err)
	}
}

func TestResolve_PlainBrowserRedirectsToWebFallback(t *testing.T) {
	link := activeLink()
	r := newResolver(&fakeLinkStore{byCode: map[string]*domain.Link{"abc": link}})

	decision, err := r.Resolve(context.Background(), Request{Code: "abc", UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if decision.Outcome != OutcomeRedirect {
		t.Fatalf("expected OutcomeRedirect, got %v", decision.Outcome)
	}
	if decision.URL != link.WebFallbackURL {
		t.Fatalf("expected redirect to web fallback, got %q", decision.URL)
	}
}

func TestResolve_SocialScraperRendersHTMLWithoutTargeting(t *testing.T) {
	link := activeLink()
	link.Targeting = domain.TargetingRules{Countries: []string{"FR"}} // would otherwise reject US
	r := newResolver(&fakeLinkStore{byCode: map[string]*domain.Link{"abc": link}})

	decision, err := r.Resolve(context.Background(), Request{Code: "abc", UserAgent: "facebookexternalhit/1.1"})
	if err != nil {
		t.Fatalf("expected scraper branch to bypass targeting, got error: %v", err)
	}
	if decision.Outcome != OutcomeScraperHTML || decision.HTML == "" {
		t.Fatalf("expected scraper HTML outcome, got %+v", decision)
	}
}

func TestResolve_TargetingRejectsNonMatchingCountry(t *testing.T) {
	link := activeLink()
	link.Targeting = domain.TargetingRules{Countries: []string{"FR"}}
	r := newResolver(&fakeLinkStore{byCode: map[string]*domain.Link{"abc": link}})

	_, err := r.Resolve(context.Background(), Request{Code: "abc", UserAgent: "Mozilla/5.0 (Windows NT 10.0)"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected targeting to reject non-matching country as ErrNotFound, got %v", err)
	}
}

func TestResolveSDK_SkipsTargeting(t *testing.T) {
	link := activeLink()
	link.Targeting = domain.TargetingRules{Countries: []string{"FR"}}
	r := newResolver(&fakeLinkStore{byCode: map[string]*domain.Link{"abc": link}})

	decision, err := r.ResolveSDK(context.Background(), Request{Code: "abc", UserAgent: "MyApp/1.0"})
	if err != nil {
		t.Fatalf("expected SDK resolve to skip targeting, got error: %v", err)
	}
	if decision.Reason != ReasonSDKResolve {
		t.Fatalf("expected ReasonSDKResolve, got %v", decision.Reason)
	}
}

func TestResolve_BloomFilterShortCircuitsUnknownCode(t *testing.T) {
	filter := cache.NewShortCodeFilter(1000)
	// Deliberately never add "abc" to the filter even though the store has
	// it, to exercise the negative-cache fast path.
	links := &fakeLinkStore{byCode: map[string]*domain.Link{"abc": activeLink()}}
	r := New(links, noopCache{}, filter, staticGeo{country: "US"}, nil)

	_, err := r.Resolve(context.Background(), Request{Code: "abc", UserAgent: "curl/8.0"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected the bloom filter to short-circuit to ErrNotFound, got %v", err)
	}
}

func TestResolvePreview_AlwaysRendersHTMLRegardlessOfDevice(t *testing.T) {
	link := activeLink()
	r := newResolver(&fakeLinkStore{byCode: map[string]*domain.Link{"abc": link}})

	decision, err := r.ResolvePreview(context.Background(), Request{Code: "abc", UserAgent: "facebookexternalhit/1.1"})
	if err != nil {
		t.Fatalf("ResolvePreview returned error: %v", err)
	}
	if decision.Outcome != OutcomeScraperHTML || decision.HTML == "" {
		t.Fatalf("expected preview HTML outcome, got %+v", decision)
	}
}
