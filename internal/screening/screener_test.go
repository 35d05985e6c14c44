package screening

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/domain"
)

type staticProvider struct {
	entries []WatchlistEntry
	err     error
}

func (p *staticProvider) Entries(_ context.Context) ([]WatchlistEntry, error) {
	return p.entries, p.err
}

func testEntries() []WatchlistEntry {
	return []WatchlistEntry{
		{
			EntryID:    "OFAC-1001",
			ListSource: domain.ListOFAC,
			Name:       "Viktor Petrov",
			Aliases:    []string{"Victor Petroff", "V. Petrov"},
			Program:    "SDN",
		},
		{
			EntryID:    "UN-2002",
			ListSource: domain.ListUN,
			Name:       "Jose Garcia Lopez",
		},
		{
			EntryID:    "EU-3003",
			ListSource: domain.ListEU,
			Name:       "Acme Trading FZE",
		},
	}
}

func newTestScreener(p WatchlistProvider) *Screener {
	return NewScreener(p, DefaultConfig(), zap.NewNop())
}

func TestScreenExactMatch(t *testing.T) {
	s := newTestScreener(&staticProvider{entries: testEntries()})

	result, err := s.Screen(context.Background(), "Viktor Petrov")
	require.NoError(t, err)
	require.True(t, result.Matched())
	assert.Equal(t, "OFAC-1001", result.Matches[0].EntryID)
	assert.InDelta(t, 1.0, result.HighestConfidence, 0.001)
	assert.False(t, result.Unavailable)
}

func TestScreenFuzzyAndAliasMatch(t *testing.T) {
	s := newTestScreener(&staticProvider{entries: testEntries()})

	// Transliteration variant should match the alias above threshold.
	result, err := s.Screen(context.Background(), "Victor Petroff")
	require.NoError(t, err)
	require.True(t, result.Matched())
	assert.True(t, result.Matches[0].AliasMatch)
	assert.GreaterOrEqual(t, result.Matches[0].Confidence, 0.80)
}

func TestScreenHandlesReorderedAndAccentedNames(t *testing.T) {
	s := newTestScreener(&staticProvider{entries: testEntries()})

	result, err := s.Screen(context.Background(), "Dr. García López, José")
	require.NoError(t, err)
	assert.True(t, result.Matched(), "diacritics and token order must not defeat matching")
	assert.Equal(t, "UN-2002", result.Matches[0].EntryID)
}

func TestScreenNoMatchBelowThreshold(t *testing.T) {
	s := newTestScreener(&staticProvider{entries: testEntries()})

	result, err := s.Screen(context.Background(), "Alice Johnson")
	require.NoError(t, err)
	assert.False(t, result.Matched())
	assert.Zero(t, result.HighestConfidence)
}

func TestScreenProviderFailureIsUnavailable(t *testing.T) {
	s := newTestScreener(&staticProvider{err: errors.New("list refresh failed")})

	result, err := s.Screen(context.Background(), "Viktor Petrov")
	require.Error(t, err)
	assert.True(t, result.Unavailable)
	assert.False(t, result.Matched())
	assert.Equal(t, domain.KindDependencyUnavailable, domain.KindOf(err))
}

func TestScreenEmptyNameRejected(t *testing.T) {
	s := newTestScreener(&staticProvider{entries: testEntries()})

	_, err := s.Screen(context.Background(), "  Mr.  ")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Dr. José García-López", "jose garcia lopez"},
		{"O'Brien, Patrick Jr.", "obrien patrick"},
		{"  MÜLLER   Hans ", "muller hans"},
		{"Acme Trading FZE", "acme trading fze"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), tc.in)
	}
}

func TestSimilarityBounds(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("viktor petrov", "viktor petrov"))
	assert.Equal(t, 0.0, Similarity("", "viktor petrov"))
	s := Similarity("viktor petrov", "viktor petrova")
	assert.Greater(t, s, 0.80)
	assert.Less(t, s, 1.0)
}

func TestGeographicRiskScore(t *testing.T) {
	assert.Equal(t, geoScoreHighRisk, GeographicRiskScore("KP"))
	assert.Equal(t, geoScoreMonitored, GeographicRiskScore("RU"))
	assert.Equal(t, geoScoreBaseline, GeographicRiskScore("US"))
	assert.Equal(t, geoScoreBaseline, GeographicRiskScore(""))
	assert.Equal(t, geoScoreUnknown, GeographicRiskScore("XYZ"))
}
