package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFailedRecipient_AngleBrackets(t *testing.T) {
	body := "Delivery has failed to these recipients: <jane@org.com>\nThe mailbox is full."
	got := ExtractFailedRecipient(body, "mailer-daemon@host.example.net")
	assert.Equal(t, "jane@org.com", got)
}

func TestExtractFailedRecipient_SkipsSystemAddresses(t *testing.T) {
	body := "Final-Recipient: <postmaster@mx.example.net>\nYour message to <jane@org.com> could not be delivered."
	got := ExtractFailedRecipient(body, "mailer-daemon@mx.example.net")
	assert.Equal(t, "jane@org.com", got)
}

func TestExtractFailedRecipient_SkipsReportingSender(t *testing.T) {
	body := "Report from <mailer-daemon@host>\nDelivery to the following recipient failed permanently: jane@org.com"
	got := ExtractFailedRecipient(body, "mailer-daemon@host")
	assert.Equal(t, "jane@org.com", got)
}

func TestExtractFailedRecipient_ContextualPhrase(t *testing.T) {
	body := "Your message to bob@corp.io was rejected by the remote server."
	got := ExtractFailedRecipient(body, "postmaster@corp.io")
	assert.Equal(t, "bob@corp.io", got)
}

func TestExtractFailedRecipient_NoAddressFound(t *testing.T) {
	body := "The message could not be delivered. No further information available."
	got := ExtractFailedRecipient(body, "mailer-daemon@host")
	assert.Equal(t, "", got)
}

func TestExtractFailedRecipient_MailboxFullScenario(t *testing.T) {
	// Bounce report from infrastructure quoting the failed recipient: the
	// real recipient is suppressed, never the daemon address.
	body := "Mail delivery failed: mailbox full\nOriginal recipient: <jane@org.com>\nReporting-MTA: mailer-daemon@host"
	got := ExtractFailedRecipient(body, "mailer-daemon@host")
	assert.Equal(t, "jane@org.com", got)
}
