// Package scorer implements the heuristic scam/abuse risk score for message
// text. Everything in this package is a pure function over the supplied rules;
// it is safe to call from concurrent message evaluations.
package scorer

import (
	"regexp"
	"strings"
)

type ReasonTag string

const (
	ReasonBannedKeyword   ReasonTag = "banned-keyword"
	ReasonSuspiciousLink  ReasonTag = "suspicious-link"
	ReasonMassMention     ReasonTag = "mass-mention"
	ReasonExcessiveLength ReasonTag = "excessive-length"
)

const (
	bannedKeywordPoints   = 30
	suspiciousLinkPoints  = 50
	broadcastPoints       = 20
	mentionCountPoints    = 10
	excessiveLengthPoints = 10

	excessiveLength = 300
	maxScore        = 100
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

// Static text-matching configuration for scoring and the boolean detectors.
type Rules struct {
	// matched as case-insensitive substrings
	BannedKeywords []string
	// matched as substrings of lowercased URLs found in the text
	SuspiciousDomains []string
	// literal blanket-mention tokens, matched against the raw text
	BroadcastMentions []string
	// '@' occurrences above this count mass-mention the channel
	MaxMentions int
}

type Verdict struct {
	// heuristic risk in [0,100]
	Score   int
	Reasons []ReasonTag
}

func (v *Verdict) addReason(tag ReasonTag) {
	for _, r := range v.Reasons {
		if r == tag {
			return
		}
	}
	v.Reasons = append(v.Reasons, tag)
}

// Score computes the additive risk score for a message. Each rule contributes
// independently and the sum is clamped to 100. A single suspicious link is
// worth 50 points per matching domain, so one bad URL is decisive on its own.
func Score(text string, rules Rules) Verdict {
	var v Verdict
	lower := strings.ToLower(text)

	for _, word := range rules.BannedKeywords {
		if strings.Contains(lower, strings.ToLower(word)) {
			v.Score += bannedKeywordPoints
			v.addReason(ReasonBannedKeyword)
		}
	}

	for _, url := range urlRegex.FindAllString(lower, -1) {
		for _, domain := range rules.SuspiciousDomains {
			if strings.Contains(url, domain) {
				v.Score += suspiciousLinkPoints
				v.addReason(ReasonSuspiciousLink)
			}
		}
	}

	// blanket mention and mention-count are an exclusive branch, not additive
	if containsAny(text, rules.BroadcastMentions) {
		v.Score += broadcastPoints
		v.addReason(ReasonMassMention)
	} else if strings.Count(text, "@") > rules.MaxMentions {
		v.Score += mentionCountPoints
		v.addReason(ReasonMassMention)
	}

	if len(text) > excessiveLength {
		v.Score += excessiveLengthPoints
		v.addReason(ReasonExcessiveLength)
	}

	if v.Score > maxScore {
		v.Score = maxScore
	}
	return v
}

// HasSuspiciousLink reports whether any URL in the text contains a configured
// suspicious domain.
func HasSuspiciousLink(text string, rules Rules) bool {
	for _, url := range urlRegex.FindAllString(strings.ToLower(text), -1) {
		for _, domain := range rules.SuspiciousDomains {
			if strings.Contains(url, domain) {
				return true
			}
		}
	}
	return false
}

// HasMassMention reports whether the text blanket-mentions the community or
// mentions more users than allowed.
func HasMassMention(text string, rules Rules) bool {
	return containsAny(text, rules.BroadcastMentions) || strings.Count(text, "@") > rules.MaxMentions
}

// HasBannedWords reports whether the text contains any banned keyword as a
// case-insensitive substring.
func HasBannedWords(text string, rules Rules) bool {
	lower := strings.ToLower(text)
	for _, word := range rules.BannedKeywords {
		if strings.Contains(lower, strings.ToLower(word)) {
			return true
		}
	}
	return false
}

func containsAny(text string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
