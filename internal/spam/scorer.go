// Package spam implements the heuristic risk scoring for contact form
// submissions. Scoring is a pure computation: no I/O, no clock, no
// shared state, so it is safe to call from any number of concurrent
// requests.
package spam

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Fields are the text fields of a submission the scorer looks at.
// They are expected to be trimmed by the caller; empty fields are
// fine and simply contribute nothing.
type Fields struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// Result is the scorer's verdict for one submission.
type Result struct {
	Score  int  `json:"score"`
	IsSpam bool `json:"is_spam"`
}

// KeywordCategory is a group of indicator phrases sharing one weight.
// Each phrase occurrence adds Weight points; the category's total
// contribution is capped at Cap so a single flooded keyword cannot
// dominate the score.
type KeywordCategory struct {
	Name    string
	Phrases []string
	Weight  int
	Cap     int
}

// Weights is the full scoring policy. Observed deployments disagree on
// the exact numbers, so everything is a field rather than a constant.
// Use DefaultWeights as the baseline.
type Weights struct {
	// Threshold is the score at or above which a submission is spam.
	Threshold int

	Keywords []KeywordCategory

	// CapsRatioMin is the uppercase-letter ratio of the message above
	// which CapsPoints are added.
	CapsRatioMin float64
	CapsPoints   int

	// URLPoints is added per http(s):// occurrence in the message,
	// with the total URL contribution capped at URLCap.
	URLPoints int
	URLCap    int

	// SuspiciousTLDs adds TLDPoints when the email's domain ends in
	// one of the listed top-level domains.
	SuspiciousTLDs []string
	TLDPoints      int

	// NumericLocalPoints is added when the email local part is all
	// digits; NameEqualsLocalPoints when the name equals the local
	// part.
	NumericLocalPoints    int
	NameEqualsLocalPoints int

	// RepeatRunPoints is added per run of 5+ identical characters in
	// the message, capped at RepeatRunCap.
	RepeatRunPoints int
	RepeatRunCap    int

	// ShortMessagePoints / LongMessagePoints are added when the
	// message has fewer than ShortWords or more than LongWords words.
	ShortWords         int
	LongWords          int
	ShortMessagePoints int
	LongMessagePoints  int

	// MaxScore is the clamp ceiling; the score range is [0, MaxScore].
	MaxScore int
}

// DefaultThreshold is the baseline spam verdict threshold.
const DefaultThreshold = 5

// DefaultWeights returns the canonical scoring policy.
func DefaultWeights() Weights {
	return Weights{
		Threshold: DefaultThreshold,
		Keywords: []KeywordCategory{
			{
				Name:    "money",
				Phrases: []string{"free", "cash prize", "lottery", "loan", "earn money", "million dollar", "investment opportunity"},
				Weight:  2,
				Cap:     4,
			},
			{
				Name:    "urgency",
				Phrases: []string{"urgent", "act now", "click here", "limited time", "buy now"},
				Weight:  2,
				Cap:     4,
			},
			{
				Name:    "pharma",
				Phrases: []string{"viagra", "cialis", "weight loss", "miracle cure"},
				Weight:  3,
				Cap:     6,
			},
			{
				Name:    "promo",
				Phrases: []string{"seo service", "backlinks", "boost your ranking", "web traffic", "followers"},
				Weight:  2,
				Cap:     4,
			},
		},
		CapsRatioMin:          0.5,
		CapsPoints:            3,
		URLPoints:             2,
		URLCap:                6,
		SuspiciousTLDs:        []string{"xyz", "top", "click", "loan", "work"},
		TLDPoints:             2,
		NumericLocalPoints:    2,
		NameEqualsLocalPoints: 1,
		RepeatRunPoints:       1,
		RepeatRunCap:          3,
		ShortWords:            5,
		LongWords:             200,
		ShortMessagePoints:    1,
		LongMessagePoints:     1,
		MaxScore:              10,
	}
}

// Score computes the spam score for the given fields under the given
// policy. Deterministic, never panics. Empty fields score 0.
func Score(f Fields, w Weights) Result {
	score := 0

	haystack := strings.ToLower(f.Subject + " " + f.Message + " " + f.Name)
	for _, cat := range w.Keywords {
		points := 0
		for _, phrase := range cat.Phrases {
			points += countPhrase(haystack, phrase) * cat.Weight
		}
		if cat.Cap > 0 && points > cat.Cap {
			points = cat.Cap
		}
		score += points
	}

	if capsRatio(f.Message) >= w.CapsRatioMin && w.CapsRatioMin > 0 {
		score += w.CapsPoints
	}

	lowerMsg := strings.ToLower(f.Message)
	urls := strings.Count(lowerMsg, "http://") + strings.Count(lowerMsg, "https://")
	urlPoints := urls * w.URLPoints
	if w.URLCap > 0 && urlPoints > w.URLCap {
		urlPoints = w.URLCap
	}
	score += urlPoints

	score += emailSignals(f.Name, f.Email, w)

	runs := repeatRuns(f.Message) * w.RepeatRunPoints
	if w.RepeatRunCap > 0 && runs > w.RepeatRunCap {
		runs = w.RepeatRunCap
	}
	score += runs

	if words := len(strings.Fields(f.Message)); f.Message != "" {
		if words < w.ShortWords {
			score += w.ShortMessagePoints
		} else if words > w.LongWords {
			score += w.LongMessagePoints
		}
	}

	if score < 0 {
		score = 0
	}
	if w.MaxScore > 0 && score > w.MaxScore {
		score = w.MaxScore
	}
	return Result{Score: score, IsSpam: score >= w.Threshold}
}

// countPhrase counts occurrences of phrase in s that sit on word
// boundaries, so "free" does not fire inside "freelance".
func countPhrase(s, phrase string) int {
	if phrase == "" {
		return 0
	}
	count, offset := 0, 0
	for {
		i := strings.Index(s[offset:], phrase)
		if i < 0 {
			return count
		}
		start := offset + i
		end := start + len(phrase)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			count++
		}
		offset = start + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// capsRatio returns the fraction of letters in s that are uppercase.
// A message with no letters has ratio 0, never NaN.
func capsRatio(s string) float64 {
	var upper, letters int
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// emailSignals scores structural oddities of the email address itself.
func emailSignals(name, email string, w Weights) int {
	points := 0
	lower := strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(lower, "@")
	if at <= 0 || at == len(lower)-1 {
		return 0
	}
	local, domain := lower[:at], lower[at+1:]

	for _, tld := range w.SuspiciousTLDs {
		if strings.HasSuffix(domain, "."+tld) {
			points += w.TLDPoints
			break
		}
	}

	if local != "" && strings.IndexFunc(local, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
		points += w.NumericLocalPoints
	}

	if name != "" && strings.EqualFold(strings.TrimSpace(name), local) {
		points += w.NameEqualsLocalPoints
	}
	return points
}

// repeatRuns counts runs of 5 or more identical consecutive characters.
func repeatRuns(s string) int {
	const minRun = 5
	var runs, length int
	var prev rune
	first := true
	for _, r := range s {
		if !first && r == prev {
			length++
			if length == minRun {
				runs++
			}
			continue
		}
		first = false
		prev = r
		length = 1
	}
	return runs
}
