package deviceparse

import (
	"testing"

	"github.com/linkforty/linkforty/internal/domain"
)

func TestDeviceClass(t *testing.T) {
	cases := map[string]domain.DeviceClass{
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)":           domain.DeviceIOS,
		"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)":                    domain.DeviceIOS,
		"Mozilla/5.0 (Linux; Android 14; Pixel 8)":                        domain.DeviceAndroid,
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36":    domain.DeviceWeb,
		"": domain.DeviceWeb,
	}
	for ua, want := range cases {
		if got := DeviceClass(ua); got != want {
			t.Errorf("DeviceClass(%q) = %q, want %q", ua, got, want)
		}
	}
}

func TestPlatform(t *testing.T) {
	if got := Platform("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)"); got != "iPhone" {
		t.Errorf("Platform() = %q, want iPhone", got)
	}
	if got := Platform("curl/8.0"); got != "" {
		t.Errorf("Platform() = %q, want empty for unknown UA", got)
	}
}

func TestNormalizeForMatch_CaseInsensitive(t *testing.T) {
	a := NormalizeForMatch("Mozilla/5.0 (iPhone) Safari/605.1")
	b := NormalizeForMatch("MOZILLA/5.0 (IPHONE) SAFARI/605.1")
	if a != b {
		t.Errorf("expected case-insensitive normalization, got %q vs %q", a, b)
	}
}

func TestIsInAppBrowser(t *testing.T) {
	if !IsInAppBrowser("Mozilla/5.0 (iPhone) FBAN/FBIOS") {
		t.Error("expected Facebook in-app browser UA to be detected")
	}
	if IsInAppBrowser("Mozilla/5.0 (iPhone) Safari/605.1") {
		t.Error("expected plain Safari UA not to be detected as in-app browser")
	}
}

func TestIsSocialScraper(t *testing.T) {
	if !IsSocialScraper("facebookexternalhit/1.1") {
		t.Error("expected facebookexternalhit to be detected as a social scraper")
	}
	if !IsSocialScraper("Slackbot-LinkExpanding 1.0") {
		t.Error("expected Slackbot to be detected as a social scraper")
	}
	if IsSocialScraper("Mozilla/5.0 (iPhone) Safari/605.1") {
		t.Error("expected a regular browser UA not to be flagged as a scraper")
	}
}

func TestPrimaryLanguage(t *testing.T) {
	cases := map[string]string{
		"en-US,en;q=0.9":  "en",
		"fr-FR":           "fr",
		" de ;q=0.8":      "de",
		"":                "",
		"x":                "",
	}
	for in, want := range cases {
		if got := PrimaryLanguage(in); got != want {
			t.Errorf("PrimaryLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
