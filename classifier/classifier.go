// Package classifier inspects inbound email text and decides whether the
// message is a stop signal: an unsubscribe request, a spam complaint, a
// bounce, or an auto-reply. Matching rules live behind the Classifier
// interface so keyword sets and regexes can evolve without touching
// orchestration logic.
package classifier

import "strings"

// Response types, in rough order of severity.
const (
	ResponseComplaint     = "complaint"
	ResponseUnsubscribe   = "unsubscribe"
	ResponseNotInterested = "not_interested"
	ResponseNegative      = "negative"
	ResponseBounce        = "bounce"
	ResponseOutOfOffice   = "out_of_office"
	ResponseNeutral       = "neutral"
	ResponseUnknown       = "unknown"
)

// Verdict is the typed result of classifying one inbound message.
type Verdict struct {
	ShouldSuppress bool   `json:"should_suppress"`
	ResponseType   string `json:"response_type"`
	Reason         string `json:"reason"`
	Confidence     int    `json:"confidence"` // 0-100
}

// Classifier decides how an inbound message should be handled.
type Classifier interface {
	Classify(from, subject, body string) Verdict
}

// KeywordClassifier matches messages against curated stop-phrase sets and
// bounce/auto-reply signature patterns. Stateless and safe for concurrent use.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the default pattern-based classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify applies the match rules in strict priority order: stop phrases,
// then bounce signatures, then auto-reply signatures. Delivery failures and
// complaints always take precedence over soft "not interested" language
// because they carry compliance and reputation consequences. Ambiguous
// content resolves to unknown without suppression.
func (k *KeywordClassifier) Classify(from, subject, body string) Verdict {
	text := strings.ToLower(subject + "\n" + body)
	sender := strings.ToLower(strings.TrimSpace(from))

	if strings.TrimSpace(text) == "" && sender == "" {
		return Verdict{ResponseType: ResponseUnknown, Reason: "empty message"}
	}

	// 1. Curated stop phrases: the highest-severity matching sub-category
	// wins, confidence grows with the total match count.
	matches := 0
	var matchType, matchReason string
	for _, set := range stopPhraseSets {
		for _, phrase := range set.phrases {
			if strings.Contains(text, phrase) {
				matches++
				if matchType == "" {
					matchType = set.responseType
					matchReason = "matched stop phrase: " + phrase
				}
			}
		}
	}
	if matches > 0 {
		confidence := 60 + 20*matches
		if confidence > 100 {
			confidence = 100
		}
		return Verdict{
			ShouldSuppress: true,
			ResponseType:   matchType,
			Reason:         matchReason,
			Confidence:     confidence,
		}
	}

	// 2. Bounce signatures in the sender address or body.
	if isBounceSender(sender) || matchesAny(bouncePatterns, text) {
		return Verdict{
			ShouldSuppress: true,
			ResponseType:   ResponseBounce,
			Reason:         "delivery failure signature",
			Confidence:     95,
		}
	}

	// 3. Auto-reply signatures. Permanent-departure language inside an
	// auto-reply means the mailbox owner is gone for good.
	if matchesAny(autoReplyPatterns, text) {
		if containsAny(text, departurePhrases) {
			return Verdict{
				ShouldSuppress: true,
				ResponseType:   ResponseOutOfOffice,
				Reason:         "auto-reply with permanent departure language",
				Confidence:     80,
			}
		}
		return Verdict{
			ResponseType: ResponseOutOfOffice,
			Reason:       "temporary auto-reply",
			Confidence:   80,
		}
	}

	return Verdict{ResponseType: ResponseNeutral}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
