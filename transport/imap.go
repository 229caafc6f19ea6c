package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
)

// InboundMessage is one email pulled from the mailbox. Duplicates across
// fetches are allowed; consumers dedup by ID.
type InboundMessage struct {
	ID         string
	From       string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// InboundFetcher pulls inbound messages received at or after a timestamp.
type InboundFetcher interface {
	FetchSince(ctx context.Context, since time.Time) ([]InboundMessage, error)
}

// IMAPConfig holds IMAP connection settings.
type IMAPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption string // SSL, TLS, STARTTLS
	Mailbox    string
}

// IMAPFetcher fetches inbound mail over IMAP.
type IMAPFetcher struct {
	cfg    IMAPConfig
	logger *logrus.Logger
}

// NewIMAPFetcher creates an IMAP-backed inbound fetcher.
func NewIMAPFetcher(cfg IMAPConfig, logger *logrus.Logger) *IMAPFetcher {
	return &IMAPFetcher{cfg: cfg, logger: logger}
}

// FetchSince connects, searches the mailbox for messages received at or
// after since, and returns them parsed. IMAP SINCE has day granularity, so
// results can include messages older than requested; callers dedup by id.
func (f *IMAPFetcher) FetchSince(_ context.Context, since time.Time) ([]InboundMessage, error) {
	c, err := f.dial()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if err := c.Login(f.cfg.Username, f.cfg.Password); err != nil {
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	mailbox := f.cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to select mailbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	section := imap.BodySectionName{Peek: true}
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	var result []InboundMessage
	for msg := range messages {
		parsed, err := f.parseMessage(msg, &section)
		if err != nil {
			f.logger.WithFields(logrus.Fields{
				"seq":   msg.SeqNum,
				"error": err,
			}).Warn("failed to parse inbound message")
			continue
		}
		result = append(result, parsed)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("error during fetch: %w", err)
	}
	return result, nil
}

func (f *IMAPFetcher) dial() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port)

	switch strings.ToUpper(f.cfg.Encryption) {
	case "SSL", "TLS":
		c, err := client.DialTLS(addr, &tls.Config{ServerName: f.cfg.Host})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
		}
		return c, nil
	case "STARTTLS":
		c, err := client.Dial(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
		}
		if err := c.StartTLS(&tls.Config{ServerName: f.cfg.Host}); err != nil {
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
		return c, nil
	default:
		c, err := client.Dial(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
		}
		return c, nil
	}
}

func (f *IMAPFetcher) parseMessage(msg *imap.Message, section *imap.BodySectionName) (InboundMessage, error) {
	out := InboundMessage{}

	if msg.Envelope != nil {
		out.ID = msg.Envelope.MessageId
		out.Subject = msg.Envelope.Subject
		out.ReceivedAt = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			out.From = msg.Envelope.From[0].Address()
		}
	}
	if out.ID == "" {
		return out, fmt.Errorf("message has no message-id")
	}

	// The response parser allocates its own section keys, so a direct map
	// lookup with the request-side pointer never matches. GetBody compares
	// sections by value and resolves BODY.PEEK to BODY.
	literal := msg.GetBody(section)
	if literal == nil {
		return out, fmt.Errorf("message body not found")
	}

	mr, err := mail.CreateReader(literal)
	if err != nil {
		return out, fmt.Errorf("failed to create message reader: %w", err)
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to read next part: %w", err)
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			ct, _, _ := h.ContentType()
			if ct == "text/plain" || out.Body == "" {
				b, err := io.ReadAll(p.Body)
				if err != nil {
					continue
				}
				out.Body = string(b)
				if ct == "text/plain" {
					break
				}
			}
		}
	}
	return out, nil
}
