package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_StopPhrases(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		name     string
		subject  string
		body     string
		wantType string
	}{
		{"unsubscribe request", "Re: intro", "please remove me from your list", ResponseUnsubscribe},
		{"opt out", "", "I want to opt out of these emails", ResponseUnsubscribe},
		{"spam complaint", "", "I will report this as spam", ResponseComplaint},
		{"not interested", "Re: proposal", "thanks but we're not interested", ResponseNotInterested},
		{"departed contact", "", "John has left the company", ResponseNegative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify("someone@example.com", tt.subject, tt.body)
			assert.True(t, v.ShouldSuppress)
			assert.Equal(t, tt.wantType, v.ResponseType)
			assert.GreaterOrEqual(t, v.Confidence, 60)
		})
	}
}

func TestClassify_ComplaintOutranksUnsubscribe(t *testing.T) {
	c := NewKeywordClassifier()

	// Both sub-categories match; complaint is more severe and wins.
	v := c.Classify("x@example.com", "", "unsubscribe me or I will report this as spam")
	assert.True(t, v.ShouldSuppress)
	assert.Equal(t, ResponseComplaint, v.ResponseType)
	// Two matches: 60 + 20*2.
	assert.Equal(t, 100, v.Confidence)
}

func TestClassify_ConfidenceCappedAt100(t *testing.T) {
	c := NewKeywordClassifier()

	v := c.Classify("x@example.com", "unsubscribe",
		"unsubscribe, remove me, take me off, opt out, do not contact")
	assert.Equal(t, 100, v.Confidence)
}

func TestClassify_Bounce(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		name    string
		from    string
		subject string
		body    string
	}{
		{"mailer daemon sender", "mailer-daemon@mx.example.net", "Returned mail", "some text"},
		{"postmaster sender", "postmaster@example.net", "Notice", "could not deliver"},
		{"mailbox full body", "bounce-handler@example.net", "Delivery Status Notification", "the mailbox full condition persists"},
		{"user unknown body", "other@example.net", "", "550 5.1.1 user unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.from, tt.subject, tt.body)
			assert.True(t, v.ShouldSuppress)
			assert.Equal(t, ResponseBounce, v.ResponseType)
			assert.Equal(t, 95, v.Confidence)
		})
	}
}

func TestClassify_BounceOutranksNeutral(t *testing.T) {
	c := NewKeywordClassifier()

	// A message with a bounce signature plus harmless text must classify as
	// bounce, never neutral.
	v := c.Classify("mailer-daemon@host", "Delivery failed", "thanks for reaching out, mailbox full")
	assert.Equal(t, ResponseBounce, v.ResponseType)
	assert.True(t, v.ShouldSuppress)
}

func TestClassify_OutOfOffice(t *testing.T) {
	c := NewKeywordClassifier()

	// Vacation auto-reply: recognized but not suppressed.
	v := c.Classify("jane@org.com", "Automatic reply: intro", "I am on vacation until Monday")
	assert.False(t, v.ShouldSuppress)
	assert.Equal(t, ResponseOutOfOffice, v.ResponseType)

	// Permanent departure auto-reply: suppressed.
	v = c.Classify("jane@org.com", "Automatic reply: intro", "Jane is no longer with the company. Contact sales@org.com.")
	assert.True(t, v.ShouldSuppress)
	assert.Equal(t, ResponseOutOfOffice, v.ResponseType)
	assert.Equal(t, 80, v.Confidence)
}

func TestClassify_Neutral(t *testing.T) {
	c := NewKeywordClassifier()

	v := c.Classify("jane@org.com", "Re: intro", "This sounds useful, can you share pricing?")
	assert.False(t, v.ShouldSuppress)
	assert.Equal(t, ResponseNeutral, v.ResponseType)
	assert.Equal(t, 0, v.Confidence)
}

func TestClassify_EmptyMessageIsUnknown(t *testing.T) {
	c := NewKeywordClassifier()

	v := c.Classify("", "", "")
	assert.False(t, v.ShouldSuppress)
	assert.Equal(t, ResponseUnknown, v.ResponseType)
}
