// Package resolver implements the link-resolution pipeline: short-code
// lookup, cache consultation, targeting evaluation, device-aware
// destination selection, and the interstitial-vs-302 decision.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkforty/linkforty/internal/cache"
	"github.com/linkforty/linkforty/internal/deviceparse"
	"github.com/linkforty/linkforty/internal/domain"
	"github.com/linkforty/linkforty/internal/geo"
	"github.com/linkforty/linkforty/internal/store"
	"go.uber.org/zap"
)

// ErrNotFound covers missing, inactive, expired, and targeted-out links —
// callers must treat all of these identically to avoid leaking which case
// applies.
var ErrNotFound = errors.New("link not found")

// ReasonCode describes which branch of destination selection produced the
// chosen URL, attached to click events.
type ReasonCode string

const (
	ReasonIOSUniversalLink  ReasonCode = "ios_universal_link"
	ReasonAndroidAppLink    ReasonCode = "android_app_link"
	ReasonAppScheme         ReasonCode = "app_scheme"
	ReasonIOSAppStoreURL    ReasonCode = "ios_app_store_url"
	ReasonAndroidAppStoreURL ReasonCode = "android_app_store_url"
	ReasonWebFallbackURL    ReasonCode = "web_fallback_url"
	ReasonOriginalURL       ReasonCode = "original_url"
	ReasonSDKResolve        ReasonCode = "sdk_resolve"
)

// Outcome is the shape of response the Resolver decided to produce.
type Outcome int

const (
	OutcomeRedirect Outcome = iota
	OutcomeInterstitial
	OutcomeScraperHTML
	OutcomeNotFound
)

// Request bundles the inputs to a resolve.
type Request struct {
	Code         string
	TemplateSlug string // optional
	UserAgent    string
	AcceptLang   string
	Referer      string
	RemoteIP     string
	RawQuery     string // url.Values-encodable query string
	Query        map[string][]string
}

// RequestSignals is the subset of Request + derived fields handed to the
// Click Recorder.
type RequestSignals struct {
	IP         string
	UserAgent  string
	Device     domain.DeviceClass
	Referer    string
	AcceptLang string
	Query      map[string][]string
}

// Decision is the Resolver's output.
type Decision struct {
	Outcome     Outcome
	Link        *domain.Link
	URL         string
	Reason      ReasonCode
	Signals     RequestSignals
	HTML        string // populated for OutcomeInterstitial / OutcomeScraperHTML
}

// Resolver implements the link-resolution pipeline.
type Resolver struct {
	store store.LinkStore
	cache cache.LinkCache
	bloom *cache.ShortCodeFilter
	geo   geo.Lookup
	log   *zap.Logger
}

// New constructs a Resolver from its collaborators.
func New(linkStore store.LinkStore, linkCache cache.LinkCache, bloom *cache.ShortCodeFilter, geoLookup geo.Lookup, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: linkStore, cache: linkCache, bloom: bloom, geo: geoLookup, log: log}
}

// Resolve performs the full pipeline for a public redirect request,
// including targeting enforcement.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Decision, error) {
	return r.resolve(ctx, req, false)
}

// ResolveSDK performs the same lookup and destination selection but skips
// targeting enforcement.
func (r *Resolver) ResolveSDK(ctx context.Context, req Request) (*Decision, error) {
	return r.resolve(ctx, req, true)
}

// ResolvePreview always renders OG HTML with a meta-refresh to the
// resolved destination, regardless of device or in-app-browser status,
// and never records a click.
func (r *Resolver) ResolvePreview(ctx context.Context, req Request) (*Decision, error) {
	link, err := r.lookup(ctx, req.Code, req.TemplateSlug)
	if err != nil {
		return nil, err
	}
	if !link.Active(time.Now()) {
		return nil, ErrNotFound
	}

	device := deviceparse.DeviceClass(req.UserAgent)
	url, reason := SelectDestination(link, device)
	finalURL := AppendParameters(url, link)
	html := renderPreviewHTML(link, finalURL)

	return &Decision{Outcome: OutcomeScraperHTML, Link: link, URL: finalURL, Reason: reason, HTML: html}, nil
}

func (r *Resolver) resolve(ctx context.Context, req Request, skipTargeting bool) (*Decision, error) {
	signals := RequestSignals{
		IP:         req.RemoteIP,
		UserAgent:  req.UserAgent,
		Device:     deviceparse.DeviceClass(req.UserAgent),
		Referer:    req.Referer,
		AcceptLang: req.AcceptLang,
		Query:      req.Query,
	}

	if r.bloom != nil && !r.bloom.MightContain(req.Code) {
		return nil, ErrNotFound
	}

	link, err := r.lookup(ctx, req.Code, req.TemplateSlug)
	if err != nil {
		return nil, err
	}

	if !link.Active(time.Now()) {
		return nil, ErrNotFound
	}

	// Social-scraper branch takes priority over interstitial/redirect and
	// never records a click.
	if deviceparse.IsSocialScraper(req.UserAgent) {
		html := renderScraperHTML(link)
		return &Decision{Outcome: OutcomeScraperHTML, Link: link, HTML: html, Signals: signals}, nil
	}

	if !skipTargeting {
		if !evaluateTargeting(link.Targeting, signals.Device, req.AcceptLang, r.geoCountry(ctx, req.RemoteIP)) {
			return nil, ErrNotFound
		}
	}

	url, reason := SelectDestination(link, signals.Device)
	finalURL := AppendParameters(url, link)

	if skipTargeting {
		return &Decision{Outcome: OutcomeRedirect, Link: link, URL: finalURL, Reason: ReasonSDKResolve, Signals: signals}, nil
	}

	if signals.Device == domain.DeviceIOS && deviceparse.IsInAppBrowser(req.UserAgent) {
		if scheme, ok := customSchemeURL(link); ok {
			storeURL := iosStoreFallback(link)
			html, herr := renderInterstitial(link, scheme, storeURL)
			if herr == nil {
				return &Decision{Outcome: OutcomeInterstitial, Link: link, URL: scheme, Reason: ReasonAppScheme, HTML: html, Signals: signals}, nil
			}
			r.log.Warn("failed to render interstitial, falling back to redirect", zap.Error(herr))
		}
	}

	return &Decision{Outcome: OutcomeRedirect, Link: link, URL: finalURL, Reason: reason, Signals: signals}, nil
}

func (r *Resolver) geoCountry(ctx context.Context, ip string) string {
	return r.geo.Lookup(ctx, ip).CountryCode
}

func (r *Resolver) lookup(ctx context.Context, code, slug string) (*domain.Link, error) {
	key := cache.LinkKey(slug, code)

	if r.cache != nil {
		if link, ok := r.cache.Get(ctx, key); ok {
			return link, nil
		}
	}

	var (
		link *domain.Link
		err  error
	)
	if slug != "" {
		link, err = r.store.GetBySlugAndCode(ctx, slug, code)
	} else {
		link, err = r.store.GetByCode(ctx, code)
	}
	if err != nil {
		if errors.Is(err, store.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolver: lookup: %w", err)
	}

	if r.cache != nil {
		r.cache.Set(ctx, key, link)
	}

	return link, nil
}
