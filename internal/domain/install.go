package domain

import "time"

// InstallEvent records a (possibly attributed) app install report.
type InstallEvent struct {
	ID string `db:"id" json:"id"`

	LinkID  *string `db:"link_id" json:"link_id,omitempty"`
	ClickID *string `db:"click_id" json:"click_id,omitempty"`

	FingerprintHash string `db:"fingerprint_hash" json:"fingerprint_hash"`
	ConfidenceScore *int   `db:"confidence_score" json:"confidence_score,omitempty"`

	InstalledAt             time.Time `db:"installed_at" json:"installed_at"`
	FirstOpenAt             time.Time `db:"first_open_at" json:"first_open_at"`
	AttributionWindowHours  int       `db:"attribution_window_hours" json:"attribution_window_hours"`

	Signals  FingerprintSignals `db:"signals" json:"signals"`
	DeviceID *string            `db:"device_id" json:"device_id,omitempty"`

	DeepLinkPayload map[string]any `db:"deep_link_payload" json:"deep_link_payload,omitempty"`
	Retrieved       bool           `db:"retrieved" json:"retrieved"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// MatchedFactors is populated only on the ReportInstall return value,
	// never persisted — the install API response needs it but a stored
	// record can always re-derive it isn't worth a column for.
	MatchedFactors []MatchedFactor `db:"-" json:"matched_factors,omitempty"`
}

// Attributed reports whether this install was matched to a click.
func (i InstallEvent) Attributed() bool {
	return i.LinkID != nil && i.ClickID != nil
}

// InAppEvent is an immutable conversion/engagement event tied to an install.
type InAppEvent struct {
	ID         string         `db:"id" json:"id"`
	InstallID  string         `db:"install_id" json:"install_id"`
	EventName  string         `db:"event_name" json:"event_name"`
	Properties map[string]any `db:"properties" json:"properties,omitempty"`
	OccurredAt time.Time      `db:"occurred_at" json:"occurred_at"`
}

// MatchedFactor names one scoring component that contributed to an
// attribution match, used in the install API response.
type MatchedFactor string

const (
	FactorIP       MatchedFactor = "ip"
	FactorUA       MatchedFactor = "user_agent"
	FactorTimezone MatchedFactor = "timezone"
	FactorLanguage MatchedFactor = "language"
	FactorScreen   MatchedFactor = "screen"
)
