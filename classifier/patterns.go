package classifier

import "regexp"

// stopPhraseSet groups curated phrases mapping to one response type.
type stopPhraseSet struct {
	responseType string
	phrases      []string
}

// stopPhraseSets are scanned in severity order; the first matching set
// determines the response type (complaint > unsubscribe > not_interested >
// generic negative, with permanent departures counted as negative).
var stopPhraseSets = []stopPhraseSet{
	{
		responseType: ResponseComplaint,
		phrases: []string{
			"report this as spam",
			"reported as spam",
			"reporting you as spam",
			"this is spam",
			"marked as spam",
			"stop spamming",
			"report you to",
			"harassment",
		},
	},
	{
		responseType: ResponseUnsubscribe,
		phrases: []string{
			"unsubscribe",
			"remove me",
			"take me off",
			"opt out",
			"opt-out",
			"do not contact",
			"don't contact me",
			"do not email me",
			"stop emailing me",
			"stop contacting me",
		},
	},
	{
		responseType: ResponseNotInterested,
		phrases: []string{
			"not interested",
			"no longer interested",
			"we're not interested",
			"not a good fit",
			"not a fit for us",
			"we're all set",
			"we are all set",
			"no thank you",
			"no thanks",
		},
	},
	{
		responseType: ResponseNegative,
		phrases: []string{
			"never contact",
			"leave me alone",
			"wrong person",
			"has left the company",
			"is no longer employed",
		},
	},
}

// departurePhrases signal that a mailbox owner is permanently gone. Used to
// tell a permanent departure auto-reply apart from a vacation notice.
var departurePhrases = []string{
	"no longer with",
	"no longer works",
	"no longer at",
	"has left the company",
	"is no longer employed",
	"position has been eliminated",
}

// bounceSenderPattern matches mailer-daemon style reporting addresses.
var bounceSenderPattern = regexp.MustCompile(`^(mailer-daemon|postmaster|mail\s?delivery\s(subsystem|system)|microsoftexchange)`)

// bouncePatterns match delivery failure reports in subject or body.
var bouncePatterns = []*regexp.Regexp{
	regexp.MustCompile(`delivery (status notification|has failed|failed)`),
	regexp.MustCompile(`undeliver(able|ed)`),
	regexp.MustCompile(`returned to sender`),
	regexp.MustCompile(`mailbox (full|unavailable|not found)`),
	regexp.MustCompile(`user unknown`),
	regexp.MustCompile(`address (not found|rejected)`),
	regexp.MustCompile(`recipient address rejected`),
	regexp.MustCompile(`550[- ]5\.\d\.\d`),
	regexp.MustCompile(`permanent (error|failure)`),
}

// autoReplyPatterns match out-of-office style automatic replies.
var autoReplyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`out[- ]of[- ]office`),
	regexp.MustCompile(`automatic reply`),
	regexp.MustCompile(`auto[- ]?reply`),
	regexp.MustCompile(`on (vacation|holiday|annual leave|parental leave|maternity leave)`),
	regexp.MustCompile(`currently (away|out of the office|traveling)`),
}

func isBounceSender(sender string) bool {
	return bounceSenderPattern.MatchString(sender)
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
