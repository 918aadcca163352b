// Package spamcheck scores outreach email for spam-filter risk before it
// is allowed out the door. Scores run 0-10; higher is spammier.
package spamcheck

import (
	"strings"
	"unicode"
)

// Recommendation values returned by Check.
const (
	RecommendationOK     = "OK"
	RecommendationRevise = "REVISE_DRAFT"
)

var spamWords = []string{
	"free", "buy now", "urgent", "limited time", "act now",
	"click here", "guarantee", "winner", "prize", "cash",
}

// Result is the outcome of scoring one draft.
type Result struct {
	Score          float64  `json:"score"`
	Warnings       []string `json:"warnings"`
	Recommendation string   `json:"recommendation"`
}

// Analysis lists concrete fixes for a risky draft.
type Analysis struct {
	Suggestions     []string `json:"suggestions"`
	ImprovedSubject string   `json:"improved_subject,omitempty"`
}

// Score computes the spam score for a subject and body.
func Score(subject, body string) float64 {
	score := 0.0

	if body != "" {
		if capsRatio(body) > 0.3 {
			score += 3.0
		}
	}
	if strings.Contains(body, "!!!") || strings.Contains(body, "???") {
		score += 2.0
	}
	if containsSpamTriggers(body) {
		score += 1.0
	}
	if subject != "" {
		if isAllUpper(subject) {
			score += 2.0
		}
		if containsSpamTriggers(subject) {
			score += 1.5
		}
	}

	if score > 10.0 {
		score = 10.0
	}
	return score
}

// Check scores a draft and attaches warnings plus a revise/ok recommendation.
func Check(subject, body string) Result {
	score := Score(subject, body)

	var warnings []string
	if score >= 3 {
		warnings = append(warnings, "High spam score detected")
	}
	if capsRatio(body) > 0.3 {
		warnings = append(warnings, "Excessive caps")
	}
	if strings.Contains(body, "!!!") || strings.Contains(body, "???") {
		warnings = append(warnings, "Excessive punctuation")
	}

	recommendation := RecommendationOK
	if score >= 5.0 {
		recommendation = RecommendationRevise
	}

	return Result{Score: score, Warnings: warnings, Recommendation: recommendation}
}

// Analyze suggests edits that would lower a draft's score.
func Analyze(subject, body string) Analysis {
	var a Analysis

	if strings.Contains(body, "!!!") {
		a.Suggestions = append(a.Suggestions, "Reduce excessive punctuation")
	}
	if capsRatio(body) > 0.3 {
		a.Suggestions = append(a.Suggestions, "Reduce caps - use sentence case")
	}
	if strings.Contains(strings.ToUpper(subject), "URGENT") {
		a.Suggestions = append(a.Suggestions, "Remove 'URGENT' from subject")
		improved := strings.ReplaceAll(subject, "URGENT!!!", "")
		improved = strings.TrimSpace(strings.ReplaceAll(improved, "URGENT", ""))
		if improved != subject {
			a.ImprovedSubject = improved
		}
	}
	if strings.Contains(strings.ToUpper(subject), "FREE") {
		a.Suggestions = append(a.Suggestions, "Avoid words like 'FREE' in subject")
	}

	return a
}

func containsSpamTriggers(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range spamWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// capsRatio is the fraction of uppercase letters over all characters.
func capsRatio(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	upper := 0
	total := 0
	for _, r := range s {
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(total)
}

// isAllUpper reports whether the string has at least one letter and no
// lowercase letters, matching the usual "is upper" definition.
func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
