package domain

import "time"

// Link is a routing rule mapping a short code to a destination descriptor.
type Link struct {
	ID       string  `db:"id" json:"id"`
	ShortCode string `db:"short_code" json:"short_code"`
	TemplateID *string `db:"template_id" json:"template_id,omitempty"`
	OwnerID    *string `db:"owner_id" json:"owner_id,omitempty"`

	OriginURL string `db:"origin_url" json:"origin_url"`

	IOSAppStoreURL   string `db:"ios_app_store_url" json:"ios_app_store_url,omitempty"`
	AndroidPlayURL   string `db:"android_play_url" json:"android_play_url,omitempty"`
	WebFallbackURL   string `db:"web_fallback_url" json:"web_fallback_url,omitempty"`
	IOSUniversalLink string `db:"ios_universal_link" json:"ios_universal_link,omitempty"`
	AndroidAppLink   string `db:"android_app_link" json:"android_app_link,omitempty"`

	URIScheme      string            `db:"uri_scheme" json:"uri_scheme,omitempty"`
	DeepLinkPath   string            `db:"deep_link_path" json:"deep_link_path,omitempty"`
	DeepLinkParams map[string]string `db:"deep_link_params" json:"deep_link_params,omitempty"`

	OGTitle       string `db:"og_title" json:"og_title,omitempty"`
	OGDescription string `db:"og_description" json:"og_description,omitempty"`
	OGImageURL    string `db:"og_image_url" json:"og_image_url,omitempty"`

	UTM UTMParams `db:"utm" json:"utm"`

	Targeting TargetingRules `db:"targeting" json:"targeting"`

	AttributionWindowHours int        `db:"attribution_window_hours" json:"attribution_window_hours"`
	IsActive               bool       `db:"is_active" json:"is_active"`
	ExpiresAt              *time.Time `db:"expires_at" json:"expires_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UTMParams is the UTM parameter set captured/propagated for a link or click.
type UTMParams struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// NonEmptyPairs returns utm_* query parameter names mapped to non-empty values.
func (u UTMParams) NonEmptyPairs() map[string]string {
	out := make(map[string]string, 5)
	add := func(key, val string) {
		if val != "" {
			out["utm_"+key] = val
		}
	}
	add("source", u.Source)
	add("medium", u.Medium)
	add("campaign", u.Campaign)
	add("term", u.Term)
	add("content", u.Content)
	return out
}

// TargetingRules restricts who a link resolves for.
type TargetingRules struct {
	Countries []string `json:"countries,omitempty"`
	Devices   []string `json:"devices,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// IsEmpty reports whether no targeting restriction is configured.
func (t TargetingRules) IsEmpty() bool {
	return len(t.Countries) == 0 && len(t.Devices) == 0 && len(t.Languages) == 0
}

// Template groups short codes under a URL-safe slug namespace.
type Template struct {
	ID        string    `db:"id" json:"id"`
	Slug      string    `db:"slug" json:"slug"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	// MinAttributionWindowHours is the smallest allowed attribution window.
	MinAttributionWindowHours = 1
	// MaxAttributionWindowHours is the largest allowed attribution window (90 days).
	MaxAttributionWindowHours = 2160
	// DefaultAttributionWindowHours is used when a link does not specify one.
	DefaultAttributionWindowHours = 168

	// ShortCodeAlphabet is the alphabet short codes are generated from.
	ShortCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// ShortCodeLength is the canonical length of a generated short code.
	ShortCodeLength = 8
	// MaxShortCodeCreateAttempts is the attempt bound for a unique-short-code
	// retry loop. store's pgx LinkStore.Create makes one attempt and does not
	// read it.
	MaxShortCodeCreateAttempts = 10
)

// Active reports whether the link currently behaves as present:
// inactive or expired links behave as if absent.
func (l Link) Active(now time.Time) bool {
	if !l.IsActive {
		return false
	}
	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return false
	}
	return true
}
