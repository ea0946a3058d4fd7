package executor

import (
	"regexp"
	"strings"
)

// Quality is the result of assessing an Agent response (spec.md §4.8.3).
// Score is the sum of five 0.2-weighted binary indicators; IsHighQuality
// is Score >= 0.6. Quality does not gate retries — it is a measurement.
type Quality struct {
	Score         float64
	IsHighQuality bool
	Indicators    map[string]bool
}

// ExtractedInfo is the machine-readable record dispatch/UX layers consume
// (spec.md §4.8.4).
type ExtractedInfo struct {
	HasAcknowledgment bool
	HasActions        bool
	HasSummary        bool
	HasEncouragement  bool
	IsStructured      bool
	ResponseLength    int
}

const qualityHighThreshold = 0.6

var (
	acknowledgmentRe = regexp.MustCompile(`(?i)\b(i acknowledge|acknowledged|got it|understood|i understand|noted)\b`)
	numberedListRe   = regexp.MustCompile(`(?:^|\s)\d+[.)]\s+\S`)
	bulletedListRe   = regexp.MustCompile(`(?:^|\s)[-*•]\s+\S`)
	imperativeRe     = regexp.MustCompile(`(?i)\b(please|make sure|remember to|you should|consider|try to|ensure)\b`)
	supportiveRe     = regexp.MustCompile(`(?i)(i'm here to help|i am here to help|let's|let us|we can|happy to help)`)
	summaryRe        = regexp.MustCompile(`(?i)\b(in summary|to summarize|summary:|overall)\b`)
)

// AssessQuality scores an Agent response along the five binary indicators
// defined in spec.md §4.8.3, each worth 0.2 of the total quality_score.
func AssessQuality(response string, lengthThreshold int) Quality {
	indicators := map[string]bool{
		"acknowledgment":       hasAcknowledgment(response),
		"actionable_advice":    hasActionableAdvice(response),
		"structured_format":    isStructured(response),
		"supportive_tone":      hasSupportiveTone(response),
		"substantial_response": len(response) > lengthThreshold,
	}

	score := 0.0
	for _, present := range indicators {
		if present {
			score += 0.2
		}
	}

	return Quality{
		Score:         score,
		IsHighQuality: score >= qualityHighThreshold,
		Indicators:    indicators,
	}
}

// ExtractInformation pulls the structured record described in spec.md §4.8.4.
func ExtractInformation(response string) ExtractedInfo {
	return ExtractedInfo{
		HasAcknowledgment: hasAcknowledgment(response),
		HasActions:        hasActionableAdvice(response),
		HasSummary:        summaryRe.MatchString(response),
		HasEncouragement:  hasSupportiveTone(response),
		IsStructured:      isStructured(response),
		ResponseLength:    len(response),
	}
}

func hasAcknowledgment(response string) bool {
	return acknowledgmentRe.MatchString(response)
}

func hasActionableAdvice(response string) bool {
	if numberedListRe.MatchString(response) || bulletedListRe.MatchString(response) {
		return true
	}
	return imperativeRe.MatchString(response)
}

func isStructured(response string) bool {
	return numberedListRe.MatchString(response) || bulletedListRe.MatchString(response)
}

func hasSupportiveTone(response string) bool {
	return supportiveRe.MatchString(strings.ToLower(response))
}
