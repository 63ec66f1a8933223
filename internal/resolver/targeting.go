package resolver

import (
	"strings"

	"github.com/linkforty/linkforty/internal/deviceparse"
	"github.com/linkforty/linkforty/internal/domain"
)

// evaluateTargeting applies a link's targeting rules: any failure means
// "not for you", surfaced uniformly as NotFound.
func evaluateTargeting(rules domain.TargetingRules, device domain.DeviceClass, acceptLanguage, countryCode string) bool {
	if rules.IsEmpty() {
		return true
	}

	if len(rules.Countries) > 0 && !containsFold(rules.Countries, countryCode) {
		return false
	}

	if len(rules.Devices) > 0 && !containsFold(rules.Devices, string(device)) {
		return false
	}

	if len(rules.Languages) > 0 {
		lang := deviceparse.PrimaryLanguage(acceptLanguage)
		if !containsFold(rules.Languages, lang) {
			return false
		}
	}

	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
