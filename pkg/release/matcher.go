package release

import (
	"regexp"

	"github.com/hbollon/go-edlib"
)

var numberRegex = regexp.MustCompile(`\b(\d+)\b`)

// MatchConfidence represents the confidence level of a title match.
type MatchConfidence int

const (
	ConfidenceNone   MatchConfidence = iota // score < 0.70
	ConfidenceLow                           // score >= 0.70
	ConfidenceMedium                        // score >= 0.85
	ConfidenceHigh                          // score >= 0.95
)

func (c MatchConfidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// MatchResult is the best candidate found by MatchTitle.
type MatchResult struct {
	Title      string
	Score      float64 // Jaro-Winkler similarity, 0.0-1.0
	Confidence MatchConfidence
}

// MatchTitle finds the candidate closest to title. Both sides are compared
// in CleanTitle form, and differing sequence numbers ("Alien 3" vs "Alien")
// pull the score down.
func MatchTitle(title string, candidates []string) MatchResult {
	best := MatchResult{Confidence: ConfidenceNone}
	if len(candidates) == 0 {
		return best
	}

	normalized := CleanTitle(title)
	numbers := numberRegex.FindAllString(normalized, -1)

	for _, candidate := range candidates {
		cleanCandidate := CleanTitle(candidate)
		score := float64(edlib.JaroWinklerSimilarity(normalized, cleanCandidate))
		score = adjustScoreForNumbers(score, numbers, numberRegex.FindAllString(cleanCandidate, -1))
		if score > best.Score {
			best.Title = candidate
			best.Score = score
		}
	}

	switch {
	case best.Score >= 0.95:
		best.Confidence = ConfidenceHigh
	case best.Score >= 0.85:
		best.Confidence = ConfidenceMedium
	case best.Score >= 0.70:
		best.Confidence = ConfidenceLow
	default:
		best.Title = ""
	}
	return best
}

func adjustScoreForNumbers(score float64, parsed, candidate []string) float64 {
	if len(parsed) == 0 && len(candidate) == 0 {
		return score
	}
	if len(parsed) == 0 || len(candidate) == 0 {
		return score * 0.85
	}

	set := make(map[string]bool, len(candidate))
	for _, n := range candidate {
		set[n] = true
	}
	for _, n := range parsed {
		if set[n] {
			return min(score*1.05, 1.0)
		}
	}
	return score * 0.90
}
