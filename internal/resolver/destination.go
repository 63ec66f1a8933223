package resolver

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/linkforty/linkforty/internal/domain"
)

// SelectDestination implements the device-aware destination selection
// table: which of a link's URLs (deep link, universal link, app store,
// web fallback, origin) wins for a given device class.
func SelectDestination(link *domain.Link, device domain.DeviceClass) (string, ReasonCode) {
	switch device {
	case domain.DeviceIOS:
		if link.IOSUniversalLink != "" {
			return link.IOSUniversalLink, ReasonIOSUniversalLink
		}
		if scheme, ok := customSchemeURL(link); ok {
			return scheme, ReasonAppScheme
		}
		if link.IOSAppStoreURL != "" {
			return link.IOSAppStoreURL, ReasonIOSAppStoreURL
		}
		return link.OriginURL, ReasonOriginalURL

	case domain.DeviceAndroid:
		if link.AndroidAppLink != "" {
			return link.AndroidAppLink, ReasonAndroidAppLink
		}
		if scheme, ok := customSchemeURL(link); ok {
			return scheme, ReasonAppScheme
		}
		if link.AndroidPlayURL != "" {
			return link.AndroidPlayURL, ReasonAndroidAppStoreURL
		}
		return link.OriginURL, ReasonOriginalURL

	default: // web
		if link.WebFallbackURL != "" {
			return link.WebFallbackURL, ReasonWebFallbackURL
		}
		return link.OriginURL, ReasonOriginalURL
	}
}

// customSchemeURL builds the `{scheme}://{path}` deep link when both are set.
func customSchemeURL(link *domain.Link) (string, bool) {
	if link.URIScheme == "" || link.DeepLinkPath == "" {
		return "", false
	}
	path := strings.TrimPrefix(link.DeepLinkPath, "/")
	return fmt.Sprintf("%s://%s", link.URIScheme, path), true
}

// isHTTPS reports whether dest is an HTTPS (or HTTP) destination, as
// opposed to a custom-scheme URL — this changes how parameters are
// appended.
func isHTTPS(dest string) bool {
	return strings.HasPrefix(dest, "http://") || strings.HasPrefix(dest, "https://")
}

// AppendParameters appends UTM + custom deep-link parameters to dest,
// following the two distinct encoding rules for HTTPS vs.
// custom-scheme destinations.
func AppendParameters(dest string, link *domain.Link) string {
	if isHTTPS(dest) {
		return appendHTTPSParams(dest, link)
	}
	return appendSchemeParams(dest, link)
}

func appendHTTPSParams(dest string, link *domain.Link) string {
	u, err := url.Parse(dest)
	if err != nil {
		return dest
	}

	q := u.Query()
	for k, v := range link.UTM.NonEmptyPairs() {
		q.Set(k, v)
	}
	for k, v := range link.DeepLinkParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func appendSchemeParams(dest string, link *domain.Link) string {
	if len(link.DeepLinkParams) == 0 {
		return dest
	}

	q := url.Values{}
	for k, v := range link.DeepLinkParams {
		q.Set(k, v)
	}

	sep := "?"
	if strings.Contains(dest, "?") {
		sep = "&"
	}
	return dest + sep + q.Encode()
}

// iosStoreFallback is the store-then-origin fallback used by the
// in-app-browser interstitial's timeout handler.
func iosStoreFallback(link *domain.Link) string {
	if link.IOSAppStoreURL != "" {
		return link.IOSAppStoreURL
	}
	if link.WebFallbackURL != "" {
		return link.WebFallbackURL
	}
	return link.OriginURL
}
