package screening

// Geographic risk tiers, keyed by ISO 3166-1 alpha-2 code. Derived from the
// FATF call-for-action and increased-monitoring lists; countries absent from
// both tables score the baseline.
var (
	highRiskCountries = map[string]struct{}{
		"KP": {}, "IR": {}, "MM": {},
	}
	monitoredCountries = map[string]struct{}{
		"SY": {}, "CU": {}, "VE": {}, "RU": {}, "BY": {},
		"AF": {}, "YE": {}, "SS": {}, "ML": {}, "HT": {},
		"NG": {}, "ZA": {}, "AE": {}, "PA": {},
	}
)

const (
	geoScoreHighRisk  = 100
	geoScoreMonitored = 60
	geoScoreBaseline  = 10
	geoScoreUnknown   = 30
)

// GeographicRiskScore maps a destination country to a 0-100 geographic
// sub-score. An empty country (domestic transfer) scores the baseline; an
// unrecognized code scores above baseline since it cannot be cleared.
func GeographicRiskScore(country string) int {
	if country == "" {
		return geoScoreBaseline
	}
	if len(country) != 2 {
		return geoScoreUnknown
	}
	if _, ok := highRiskCountries[country]; ok {
		return geoScoreHighRisk
	}
	if _, ok := monitoredCountries[country]; ok {
		return geoScoreMonitored
	}
	return geoScoreBaseline
}

// IsHighRiskCountry reports whether the country is on the call-for-action tier.
func IsHighRiskCountry(country string) bool {
	_, ok := highRiskCountries[country]
	return ok
}
