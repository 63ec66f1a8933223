// Package deviceparse derives routing-relevant signals from a User-Agent
// header: device class, platform, browser, and in-app-browser/scraper
// detection.
package deviceparse

import (
	"strings"

	"github.com/linkforty/linkforty/internal/domain"
)

// DeviceClass derives the coarse device taxonomy from a User-Agent header.
// Matching is case-insensitive substring matching.
func DeviceClass(userAgent string) domain.DeviceClass {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return domain.DeviceIOS
	case strings.Contains(ua, "android"):
		return domain.DeviceAndroid
	default:
		return domain.DeviceWeb
	}
}

// platformTokens are matched in order; the first hit wins.
var platformTokens = []string{"iPhone", "iPad", "Android", "Windows", "Macintosh", "Linux"}

// browserTokens are matched in order; the first hit wins.
var browserTokens = []string{"Chrome", "Safari", "Firefox", "Edge", "Opera"}

// Platform extracts a coarse platform token from a User-Agent, case-insensitively.
func Platform(userAgent string) string {
	return firstToken(userAgent, platformTokens)
}

// Browser extracts a coarse browser token from a User-Agent, case-insensitively.
func Browser(userAgent string) string {
	return firstToken(userAgent, browserTokens)
}

func firstToken(ua string, tokens []string) string {
	lower := strings.ToLower(ua)
	for _, t := range tokens {
		if strings.Contains(lower, strings.ToLower(t)) {
			return t
		}
	}
	return ""
}

// NormalizeForMatch builds the attribution-engine UA normalization key:
// lowercased "platform|browser".
func NormalizeForMatch(userAgent string) string {
	return strings.ToLower(Platform(userAgent) + "|" + Browser(userAgent))
}

// inAppBrowserPatterns are the known in-app-browser UA substrings that
// cannot honor Universal Links.
var inAppBrowserPatterns = []string{
	"GSA/", "FBAN", "FBAV", "Instagram", "Twitter", "LinkedInApp",
	"MicroMessenger", "Outlook-", "YahooMobileMail", "Gmail",
}

// IsInAppBrowser reports whether the User-Agent matches a known in-app
// browser that requires a custom-scheme interstitial to escape.
func IsInAppBrowser(userAgent string) bool {
	return matchesAny(userAgent, inAppBrowserPatterns)
}

// socialScraperPatterns identify link-preview crawlers.
var socialScraperPatterns = []string{
	"facebookexternalhit", "Facebot", "Twitterbot", "LinkedInBot", "Slackbot",
	"Discordbot", "TelegramBot", "WhatsApp", "PinterestBot", "SkypeUriPreview",
	"Googlebot", "bingbot", "ia_archiver",
}

// IsSocialScraper reports whether the User-Agent belongs to a known
// link-preview crawler/bot.
func IsSocialScraper(userAgent string) bool {
	return matchesAny(userAgent, socialScraperPatterns)
}

func matchesAny(userAgent string, patterns []string) bool {
	lower := strings.ToLower(userAgent)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// PrimaryLanguage extracts the lowercased two-letter primary language from
// an Accept-Language header's first entry.
func PrimaryLanguage(acceptLanguage string) string {
	first := acceptLanguage
	if idx := strings.IndexByte(first, ','); idx >= 0 {
		first = first[:idx]
	}
	first = strings.TrimSpace(first)
	if idx := strings.IndexByte(first, ';'); idx >= 0 {
		first = first[:idx]
	}
	if len(first) < 2 {
		return ""
	}
	return strings.ToLower(first[:2])
}
