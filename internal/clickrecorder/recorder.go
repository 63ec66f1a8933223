// Package clickrecorder implements the off-path click persistence work
// list: the click_events + device_fingerprints inserts, the event-bus
// publish, and webhook fan-out — none of it blocking the response that
// triggered it.
package clickrecorder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linkforty/linkforty/internal/deviceparse"
	"github.com/linkforty/linkforty/internal/domain"
	"github.com/linkforty/linkforty/internal/eventbus"
	"github.com/linkforty/linkforty/internal/geo"
	"github.com/linkforty/linkforty/internal/resolver"
	"github.com/linkforty/linkforty/internal/store"
	"github.com/linkforty/linkforty/internal/webhook"
	"go.uber.org/zap"
)

// Recorder performs the click-recording work list asynchronously with
// respect to the response.
type Recorder struct {
	clicks       store.ClickStore
	fingerprints store.FingerprintStore
	webhooks     store.WebhookStore
	geo          geo.Lookup
	bus          *eventbus.Bus
	dispatcher   *webhook.Dispatcher
	log          *zap.Logger

	// wg tracks process-lifetime background work so shutdown can wait for
	// in-flight click recordings without tying them to any one request's
	// context.
	wg sync.WaitGroup
}

// New constructs a Recorder from its collaborators.
func New(
	clicks store.ClickStore,
	fingerprints store.FingerprintStore,
	webhooks store.WebhookStore,
	geoLookup geo.Lookup,
	bus *eventbus.Bus,
	dispatcher *webhook.Dispatcher,
	log *zap.Logger,
) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		clicks: clicks, fingerprints: fingerprints, webhooks: webhooks,
		geo: geoLookup, bus: bus, dispatcher: dispatcher, log: log,
	}
}

// RecordAsync launches one background unit of work per click. It must be
// called after the response has been written, never awaited by the
// request handler.
func (r *Recorder) RecordAsync(decision *resolver.Decision) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// Detached from any request context: background work outlives the
		// request.
		ctx := context.Background()
		r.record(ctx, decision)
	}()
}

// Wait blocks until all in-flight click recordings complete, for use at
// process shutdown.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) record(ctx context.Context, decision *resolver.Decision) {
	signals := decision.Signals
	link := decision.Link

	platform := deviceparse.Platform(signals.UserAgent)
	geoTuple := r.geo.Lookup(ctx, signals.IP)

	fpSignals := fingerprintOverrides(signals.Query)
	if fpSignals.IP == "" {
		fpSignals.IP = signals.IP
	}
	if fpSignals.UserAgent == "" {
		fpSignals.UserAgent = signals.UserAgent
	}
	if fpSignals.PlatformName == "" {
		fpSignals.PlatformName = platform
	}

	clickID := uuid.NewString()
	click := domain.ClickEvent{
		ID:        clickID,
		LinkID:    link.ID,
		ClickedAt: time.Now(),
		IP:        signals.IP,
		UserAgent: signals.UserAgent,
		Device:    signals.Device,
		Platform:  platform,
		Geo:       geoTuple,
		UTM:       captureUTM(signals.Query),
		Referrer:  signals.Referer,
	}

	// (1) click_events before (2) device_fingerprints: FK dependency.
	if err := r.clicks.Create(ctx, &click); err != nil {
		r.log.Error("failed to record click event", zap.Error(err), zap.String("link_id", link.ID))
		return
	}

	hash := fingerprintHash(fpSignals)
	fp := domain.DeviceFingerprint{
		ID: uuid.NewString(), ClickID: clickID, Hash: hash,
		IP: fpSignals.IP, UserAgent: fpSignals.UserAgent, Timezone: fpSignals.Timezone,
		Language: fpSignals.Language, ScreenWidth: fpSignals.ScreenWidth, ScreenHeight: fpSignals.ScreenHeight,
		PlatformName: fpSignals.PlatformName, PlatformVersion: fpSignals.PlatformVersion,
	}
	if err := r.fingerprints.Create(ctx, &fp); err != nil {
		r.log.Error("failed to record device fingerprint", zap.Error(err), zap.String("click_id", clickID))
		return
	}

	// (3) event-bus publish happens after both inserts.
	r.publish(click, link, decision, signals.AcceptLang)

	// (4) webhook dispatch happens after the event-bus publish.
	r.fanOutWebhooks(ctx, link, click)
}

func (r *Recorder) publish(click domain.ClickEvent, link *domain.Link, decision *resolver.Decision, acceptLang string) {
	if r.bus == nil {
		return
	}

	var country, city, platform, referer, lang *string
	if click.Geo.CountryCode != "" {
		country = &click.Geo.CountryCode
	}
	if click.Geo.City != "" {
		city = &click.Geo.City
	}
	if click.Platform != "" {
		platform = &click.Platform
	}
	if click.Referrer != "" {
		referer = &click.Referrer
	}
	if primary := deviceparse.PrimaryLanguage(acceptLang); primary != "" {
		lang = &primary
	}

	r.bus.Publish(eventbus.ClickRecord{
		EventID: click.ID, Timestamp: click.ClickedAt.UTC().Format(time.RFC3339),
		LinkID: link.ID, ShortCode: link.ShortCode, OwnerID: link.OwnerID,
		IP: click.IP, UserAgent: click.UserAgent, Country: country, City: city,
		DeviceClass: string(click.Device), Platform: platform,
		RedirectURL: decision.URL, Reason: string(decision.Reason), TargetingMatched: true,
		UTM: click.UTM.NonEmptyPairs(), Referer: referer, Language: lang,
	})
}

func (r *Recorder) fanOutWebhooks(ctx context.Context, link *domain.Link, click domain.ClickEvent) {
	if r.webhooks == nil || r.dispatcher == nil || link.OwnerID == nil {
		return
	}

	subs, err := r.webhooks.ListSubscribed(ctx, link.OwnerID, domain.EventClick)
	if err != nil {
		r.log.Error("failed to list webhooks for click event", zap.Error(err))
		return
	}

	for _, wh := range subs {
		r.dispatcher.Enqueue(ctx, wh, domain.EventClick, click)
	}
}

func captureUTM(query map[string][]string) domain.UTMParams {
	get := func(key string) string {
		if v, ok := query[key]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}
	return domain.UTMParams{
		Source: get("utm_source"), Medium: get("utm_medium"), Campaign: get("utm_campaign"),
		Term: get("utm_term"), Content: get("utm_content"),
	}
}

// fingerprintOverrides reads fp_tz, fp_lang, fp_sw, fp_sh, fp_platform,
// fp_pv from the public redirect's query string so an SDK-instrumented
// app can supply device signals the server can't derive from headers
// alone; see the trust-model decision recorded in DESIGN.md.
func fingerprintOverrides(query map[string][]string) domain.FingerprintSignals {
	get := func(key string) string {
		if v, ok := query[key]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}
	getInt := func(key string) int {
		n, _ := strconv.Atoi(get(key))
		return n
	}
	return domain.FingerprintSignals{
		Timezone: get("fp_tz"), Language: get("fp_lang"),
		ScreenWidth: getInt("fp_sw"), ScreenHeight: getInt("fp_sh"),
		PlatformName: get("fp_platform"), PlatformVersion: get("fp_pv"),
	}
}

// fingerprintHash computes the SHA-256 hash of the canonical concatenation
// of fingerprint signals.
func fingerprintHash(signals domain.FingerprintSignals) string {
	sum := sha256.Sum256([]byte(signals.CanonicalConcat()))
	return hex.EncodeToString(sum[:])
}
