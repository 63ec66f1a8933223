// Package attribution implements the probabilistic deferred-deep-link
// matcher: scoring recent clicks against an install report's device and
// fingerprint signals, selecting the best candidate above a confidence
// threshold, and falling back to an unattributed ("organic") install
// otherwise.
package attribution

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkforty/linkforty/internal/deviceparse"
	"github.com/linkforty/linkforty/internal/domain"
	"github.com/linkforty/linkforty/internal/store"
	"github.com/linkforty/linkforty/internal/webhook"
	"go.uber.org/zap"
)

// Weights are the per-factor scoring contributions. They sum
// to 100 and are kept as package constants rather than per-link
// configuration (see DESIGN.md open-question decision #3).
const (
	WeightIP       = 40
	WeightUA       = 30
	WeightTimezone = 10
	WeightLanguage = 10
	WeightScreen   = 10

	// Threshold is the minimum score for a candidate to count as a match.
	Threshold = 70
)

// Engine implements install reporting, attribution lookup, and in-app
// event recording.
type Engine struct {
	installs     store.InstallStore
	fingerprints store.FingerprintStore
	links        store.LinkStore
	webhooks     store.WebhookStore
	inapps       store.InAppEventStore
	dispatcher   *webhook.Dispatcher
	log          *zap.Logger
}

// New constructs an Engine from its collaborators.
func New(
	installs store.InstallStore,
	fingerprints store.FingerprintStore,
	links store.LinkStore,
	webhooks store.WebhookStore,
	inapps store.InAppEventStore,
	dispatcher *webhook.Dispatcher,
	log *zap.Logger,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		installs: installs, fingerprints: fingerprints, links: links,
		webhooks: webhooks, inapps: inapps, dispatcher: dispatcher, log: log,
	}
}

// candidateScore is one scored candidate from the RecentCandidates set.
type candidateScore struct {
	candidate store.CandidateClick
	score     int
	factors   []domain.MatchedFactor
}

// ReportInstall scores recent click candidates against signals and
// persists an InstallEvent, attributed or organic.
func (e *Engine) ReportInstall(ctx context.Context, signals domain.FingerprintSignals, windowOverrideHours int) (*domain.InstallEvent, error) {
	hash := fingerprintHash(signals)
	now := time.Now()

	best, err := e.bestMatch(ctx, signals, now, windowOverrideHours)
	if err != nil {
		return nil, fmt.Errorf("attribution: report install: %w", err)
	}

	install := &domain.InstallEvent{
		ID: uuid.NewString(), FingerprintHash: hash,
		InstalledAt: now, FirstOpenAt: now, Signals: signals,
	}

	if best != nil {
		linkID := best.candidate.LinkID
		clickID := best.candidate.ClickID
		score := best.score
		install.LinkID = &linkID
		install.ClickID = &clickID
		install.ConfidenceScore = &score
		install.AttributionWindowHours = best.candidate.AttributionWindowHours
		install.MatchedFactors = best.factors
	}

	if err := e.installs.Create(ctx, install); err != nil {
		return nil, fmt.Errorf("attribution: report install: %w", err)
	}

	if install.Attributed() {
		e.attachDeepLink(ctx, install)
		e.fanOutInstall(ctx, install)
	}

	return install, nil
}

// bestMatch scores all recent candidates and returns the highest-scoring
// one above Threshold, breaking ties by most-recent click.
func (e *Engine) bestMatch(ctx context.Context, signals domain.FingerprintSignals, now time.Time, windowOverrideHours int) (*candidateScore, error) {
	candidates, err := e.fingerprints.RecentCandidates(ctx)
	if err != nil {
		return nil, err
	}

	var best *candidateScore
	for _, c := range candidates {
		window := c.AttributionWindowHours
		if windowOverrideHours > 0 && windowOverrideHours < window {
			window = windowOverrideHours
		}
		if now.Sub(c.ClickedAt) > time.Duration(window)*time.Hour {
			continue
		}

		score, factors := score(signals, c.Signals)
		if score < Threshold {
			continue
		}

		cand := &candidateScore{candidate: c, score: score, factors: factors}
		if best == nil || score > best.score ||
			(score == best.score && c.ClickedAt.After(best.candidate.ClickedAt)) {
			best = cand
		}
	}
	return best, nil
}

// score computes the weighted match score between an install report's
// signals and a candidate click's fingerprint.
func score(report, candidate domain.FingerprintSignals) (int, []domain.MatchedFactor) {
	total := 0
	var factors []domain.MatchedFactor

	if report.IP != "" && report.IP == candidate.IP {
		total += WeightIP
		factors = append(factors, domain.FactorIP)
	}
	if report.UserAgent != "" && deviceparse.NormalizeForMatch(report.UserAgent) == deviceparse.NormalizeForMatch(candidate.UserAgent) {
		total += WeightUA
		factors = append(factors, domain.FactorUA)
	}
	if report.Timezone != "" && report.Timezone == candidate.Timezone {
		total += WeightTimezone
		factors = append(factors, domain.FactorTimezone)
	}
	if report.Language != "" && report.Language == candidate.Language {
		total += WeightLanguage
		factors = append(factors, domain.FactorLanguage)
	}
	if report.ScreenWidth != 0 && report.ScreenWidth == candidate.ScreenWidth && report.ScreenHeight == candidate.ScreenHeight {
		total += WeightScreen
		factors = append(factors, domain.FactorScreen)
	}

	return total, factors
}

// fingerprintHash must match clickrecorder's hash exactly (same canonical
// concat + SHA-256), since attribution lookups join on this hash.
func fingerprintHash(signals domain.FingerprintSignals) string {
	sum := sha256.Sum256([]byte(signals.CanonicalConcat()))
	return hex.EncodeToString(sum[:])
}

// attachDeepLink resolves the matched link's deep-link payload and
// attaches it to the install record.
func (e *Engine) attachDeepLink(ctx context.Context, install *domain.InstallEvent) {
	link, err := e.links.GetByID(ctx, *install.LinkID)
	if err != nil {
		e.log.Error("attribution: load matched link", zap.Error(err), zap.String("link_id", *install.LinkID))
		return
	}

	payload := map[string]any{
		"path":       link.DeepLinkPath,
		"short_code": link.ShortCode,
	}
	for k, v := range link.DeepLinkParams {
		payload[k] = v
	}
	for k, v := range link.UTM.NonEmptyPairs() {
		payload[k] = v
	}

	if err := e.installs.AttachDeepLink(ctx, install.ID, payload); err != nil {
		e.log.Error("attribution: attach deep link payload", zap.Error(err), zap.String("install_id", install.ID))
		return
	}
	install.DeepLinkPayload = payload
}

func (e *Engine) fanOutInstall(ctx context.Context, install *domain.InstallEvent) {
	if e.webhooks == nil || e.dispatcher == nil || install.LinkID == nil {
		return
	}

	link, err := e.links.GetByID(ctx, *install.LinkID)
	if err != nil || link.OwnerID == nil {
		return
	}

	subs, err := e.webhooks.ListSubscribed(ctx, link.OwnerID, domain.EventInstall)
	if err != nil {
		e.log.Error("attribution: list webhooks for install event", zap.Error(err))
		return
	}
	for _, wh := range subs {
		e.dispatcher.Enqueue(ctx, wh, domain.EventInstall, install)
	}
}

// GetAttribution returns the latest install event matching a fingerprint
// hash.
func (e *Engine) GetAttribution(ctx context.Context, fingerprintHex string) (*domain.InstallEvent, error) {
	return e.installs.GetLatestByFingerprint(ctx, fingerprintHex)
}

// RecordInAppEvent persists a conversion/engagement event for an install
// and fans it out to subscribed webhooks.
func (e *Engine) RecordInAppEvent(ctx context.Context, installID, eventName string, properties map[string]any) (*domain.InAppEvent, error) {
	install, err := e.installs.GetByID(ctx, installID)
	if err != nil {
		return nil, fmt.Errorf("attribution: record in-app event: %w", err)
	}

	evt := &domain.InAppEvent{
		ID: uuid.NewString(), InstallID: installID, EventName: eventName,
		Properties: properties, OccurredAt: time.Now(),
	}
	if err := e.inapps.Create(ctx, evt); err != nil {
		return nil, fmt.Errorf("attribution: record in-app event: %w", err)
	}

	if install.LinkID != nil {
		e.fanOutConversion(ctx, *install.LinkID, evt)
	}
	return evt, nil
}

func (e *Engine) fanOutConversion(ctx context.Context, linkID string, evt *domain.InAppEvent) {
	if e.webhooks == nil || e.dispatcher == nil {
		return
	}
	link, err := e.links.GetByID(ctx, linkID)
	if err != nil || link.OwnerID == nil {
		return
	}
	subs, err := e.webhooks.ListSubscribed(ctx, link.OwnerID, domain.EventConversion)
	if err != nil {
		e.log.Error("attribution: list webhooks for conversion event", zap.Error(err))
		return
	}
	for _, wh := range subs {
		e.dispatcher.Enqueue(ctx, wh, domain.EventConversion, evt)
	}
}
