package screening

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/domain"
)

// WatchlistEntry is one sanctioned party as loaded from a list source.
type WatchlistEntry struct {
	EntryID    string
	ListSource domain.SanctionListSource
	Name       string
	Aliases    []string
	Program    string
}

// WatchlistProvider supplies the current entries for the configured lists.
// Implementations may hit a store or a cached snapshot; an error from
// Entries marks the whole screening pass unavailable.
type WatchlistProvider interface {
	Entries(ctx context.Context) ([]WatchlistEntry, error)
}

// Config tunes the name-matching pipeline.
type Config struct {
	// MatchThreshold is the minimum similarity (0-1) for a watchlist hit.
	MatchThreshold float64
	// MaxMatches caps how many hits are attached to a result.
	MaxMatches int
}

// DefaultConfig matches the screening defaults used in production.
func DefaultConfig() Config {
	return Config{MatchThreshold: 0.80, MaxMatches: 10}
}

// Screener performs fuzzy sanctions screening against the loaded watchlists.
type Screener struct {
	provider WatchlistProvider
	config   Config
	logger   *zap.Logger
}

func NewScreener(provider WatchlistProvider, config Config, logger *zap.Logger) *Screener {
	if config.MatchThreshold <= 0 || config.MatchThreshold > 1 {
		config.MatchThreshold = DefaultConfig().MatchThreshold
	}
	if config.MaxMatches <= 0 {
		config.MaxMatches = DefaultConfig().MaxMatches
	}
	return &Screener{provider: provider, config: config, logger: logger}
}

// Screen matches a customer name against every watchlist entry and its
// aliases. When the provider fails the result is marked Unavailable so the
// caller fails closed; a list outage is never a clean pass.
func (s *Screener) Screen(ctx context.Context, name string) (domain.SanctionsResult, error) {
	entries, err := s.provider.Entries(ctx)
	if err != nil {
		s.logger.Warn("watchlist source unavailable",
			zap.Error(err))
		return domain.SanctionsResult{Unavailable: true},
			domain.WrapError(domain.KindDependencyUnavailable, err, "sanctions watchlist unavailable")
	}

	query := NormalizeName(name)
	if query == "" {
		return domain.SanctionsResult{}, domain.NewError(domain.KindInvalidInput, "customer name is empty after normalization")
	}

	var result domain.SanctionsResult
	for _, entry := range entries {
		score, viaAlias := s.bestEntryScore(query, entry)
		if score < s.config.MatchThreshold {
			continue
		}
		result.Matches = append(result.Matches, domain.SanctionMatch{
			ListSource:  entry.ListSource,
			EntryID:     entry.EntryID,
			MatchedName: entry.Name,
			Confidence:  score,
			AliasMatch:  viaAlias,
			Program:     entry.Program,
		})
		if score > result.HighestConfidence {
			result.HighestConfidence = score
		}
	}

	sort.Slice(result.Matches, func(i, j int) bool {
		return result.Matches[i].Confidence > result.Matches[j].Confidence
	})
	if len(result.Matches) > s.config.MaxMatches {
		result.Matches = result.Matches[:s.config.MaxMatches]
	}

	if result.Matched() {
		// Only the fact of a match is logged here. The full rationale
		// stays on the check record behind authorized access.
		s.logger.Info("sanctions screening matched",
			zap.Int("match_count", len(result.Matches)),
			zap.Float64("highest_confidence", result.HighestConfidence))
	}
	return result, nil
}

// bestEntryScore returns the highest similarity against the primary name and
// all aliases, and whether the best score came from an alias.
func (s *Screener) bestEntryScore(query string, entry WatchlistEntry) (float64, bool) {
	best := Similarity(query, NormalizeName(entry.Name))
	viaAlias := false
	for _, alias := range entry.Aliases {
		if score := Similarity(query, NormalizeName(alias)); score > best {
			best = score
			viaAlias = true
		}
	}
	return best, viaAlias
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

var commonAffixes = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {},
	"jr": {}, "sr": {}, "ii": {}, "iii": {}, "iv": {},
}

// NormalizeName lowercases, strips punctuation and honorifics, and collapses
// whitespace so "Dr. José García-López" and "jose garcia lopez" compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = foldDiacritics(name)
	// Apostrophes join name parts; other punctuation splits them.
	name = strings.ReplaceAll(name, "'", "")
	name = nonAlnum.ReplaceAllString(name, " ")
	tokens := strings.Fields(name)
	kept := tokens[:0]
	for _, t := range tokens {
		if _, skip := commonAffixes[t]; !skip {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

var diacriticFolds = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "ö", "o", "õ", "o", "ø", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ñ", "n", "ç", "c", "ß", "ss", "æ", "ae", "œ", "oe",
)

func foldDiacritics(s string) string {
	return diacriticFolds.Replace(s)
}

// Similarity combines edit-distance similarity with token-set overlap and
// returns the higher of the two. Token overlap catches reordered names
// ("garcia jose" vs "jose garcia") that edit distance punishes.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	lev := levenshteinSimilarity(a, b)
	tok := tokenOverlap(a, b)
	return math.Max(lev, tok)
}

func levenshteinSimilarity(a, b string) float64 {
	distance := levenshtein.ComputeDistance(a, b)
	maxLen := math.Max(float64(len(a)), float64(len(b)))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(distance)/maxLen
}

// tokenOverlap is the Jaccard similarity of the token sets.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		set[t] = struct{}{}
	}
	return set
}
