// Package ingest pulls inbound messages, classifies them, and feeds stop
// signals into the suppression registry and sequence store. Ingestion is
// idempotent: every transport message id is processed at most once.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"cadence/classifier"
	"cadence/models"
	"cadence/repository"
	"cadence/transport"
)

// DefaultOverlap is subtracted from the checkpoint so that messages delayed
// by clock skew are still seen; the dedup marker absorbs the duplicates.
const DefaultOverlap = 10 * time.Minute

// DefaultLookback bounds the first fetch when no checkpoint exists yet.
const DefaultLookback = 24 * time.Hour

// SuppressionAdder is the registry operation the ingestor feeds.
type SuppressionAdder interface {
	Add(ctx context.Context, email, reason, source string) (bool, error)
}

// Summary reports one ingestion pass.
type Summary struct {
	Checked            int `json:"checked"`
	SuppressionsAdded  int `json:"suppressions_added"`
	BouncesDetected    int `json:"bounces_detected"`
	ComplaintsDetected int `json:"complaints_detected"`
}

// Ingestor drives the fetch/classify/suppress pipeline.
type Ingestor struct {
	fetcher    transport.InboundFetcher
	classifier classifier.Classifier
	registry   SuppressionAdder
	inbound    repository.InboundStore
	contacts   repository.ContactStore
	states     repository.SequenceStore
	logger     *logrus.Logger
	mailbox    string
	overlap    time.Duration
	now        func() time.Time
}

// NewIngestor wires the reply/bounce ingestor for one mailbox.
func NewIngestor(fetcher transport.InboundFetcher, cls classifier.Classifier, registry SuppressionAdder, inbound repository.InboundStore, contacts repository.ContactStore, states repository.SequenceStore, mailbox string, logger *logrus.Logger) *Ingestor {
	return &Ingestor{
		fetcher:    fetcher,
		classifier: cls,
		registry:   registry,
		inbound:    inbound,
		contacts:   contacts,
		states:     states,
		logger:     logger,
		mailbox:    mailbox,
		overlap:    DefaultOverlap,
		now:        time.Now,
	}
}

// IngestReplies fetches messages received since the last successful run
// (minus an overlap buffer), classifies each unseen one, and applies the
// resulting suppressions and pauses. Per-message failures never abort the
// batch; a fetch failure aborts the cycle for retry on the next invocation.
func (in *Ingestor) IngestReplies(ctx context.Context, lookbackOverride *time.Duration) (*Summary, error) {
	now := in.now()
	since := in.fetchHorizon(ctx, now, lookbackOverride)

	messages, err := in.fetcher.FetchSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("fetching inbound messages: %w", err)
	}

	summary := &Summary{}
	storeFailures := 0
	for _, msg := range messages {
		summary.Checked++
		if !in.processMessage(ctx, msg, summary) {
			storeFailures++
		}
	}

	// A message that could not be recorded was never marked processed. The
	// checkpoint must not advance past it or a missed unsubscribe older than
	// the overlap buffer would be lost for good.
	if storeFailures > 0 {
		in.logger.WithField("failures", storeFailures).
			Warn("checkpoint held back, unrecorded messages will be refetched")
		return summary, nil
	}

	if err := in.inbound.SetCheckpoint(ctx, in.mailbox, now); err != nil {
		return summary, fmt.Errorf("storing ingest checkpoint: %w", err)
	}

	in.logger.WithFields(logrus.Fields{
		"checked":      summary.Checked,
		"suppressions": summary.SuppressionsAdded,
		"bounces":      summary.BouncesDetected,
		"complaints":   summary.ComplaintsDetected,
	}).Info("ingestion pass finished")
	return summary, nil
}

func (in *Ingestor) fetchHorizon(ctx context.Context, now time.Time, lookbackOverride *time.Duration) time.Time {
	if lookbackOverride != nil {
		return now.Add(-*lookbackOverride)
	}
	checkpoint, err := in.inbound.GetCheckpoint(ctx, in.mailbox)
	if errors.Is(err, repository.ErrNotFound) {
		return now.Add(-DefaultLookback)
	}
	if err != nil {
		in.logger.WithField("error", err).Warn("checkpoint lookup failed, using default lookback")
		return now.Add(-DefaultLookback)
	}
	return checkpoint.Add(-in.overlap)
}

// processMessage classifies and acts on one message. Returns false only when
// the message could not be stored, meaning it was not marked processed and
// must be covered by a future fetch.
func (in *Ingestor) processMessage(ctx context.Context, msg transport.InboundMessage, summary *Summary) bool {
	log := in.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"from":       msg.From,
	})

	verdict := in.classifier.Classify(msg.From, msg.Subject, msg.Body)

	// For bounces the suppression target is the originally-failed recipient,
	// never the reporting daemon address.
	var target string
	if verdict.ShouldSuppress {
		target = models.NormalizeEmail(msg.From)
		if verdict.ResponseType == classifier.ResponseBounce {
			target = classifier.ExtractFailedRecipient(msg.Body, msg.From)
			if target == "" {
				log.Warn("bounce without extractable recipient, nothing to suppress")
			}
		}
	}

	record := &models.InboundMessage{
		MessageID:       msg.ID,
		FromAddress:     models.NormalizeEmail(msg.From),
		Subject:         msg.Subject,
		Body:            msg.Body,
		ReceivedAt:      msg.ReceivedAt,
		ResponseType:    verdict.ResponseType,
		Confidence:      verdict.Confidence,
		Suppressed:      verdict.ShouldSuppress,
		SuppressedEmail: target,
	}

	// The unique message id marks the message processed atomically with its
	// classification, whatever happens downstream.
	isNew, err := in.inbound.InsertIfNew(ctx, record)
	if err != nil {
		log.WithField("error", err).Error("failed to store inbound message")
		return false
	}
	if !isNew {
		return true
	}

	switch verdict.ResponseType {
	case classifier.ResponseBounce:
		summary.BouncesDetected++
	case classifier.ResponseComplaint:
		summary.ComplaintsDetected++
	}

	if verdict.ShouldSuppress && target != "" {
		reason, source := suppressionFor(verdict.ResponseType)
		added, err := in.registry.Add(ctx, target, reason, source)
		if err != nil {
			log.WithField("error", err).Error("failed to add suppression")
			return true
		}
		if added {
			summary.SuppressionsAdded++
		}
		return true
	}

	if verdict.ResponseType == classifier.ResponseNeutral {
		in.pauseForReply(ctx, msg, log)
	}
	return true
}

// pauseForReply halts the sender's active sequence after a genuine human
// reply. Auto-replies and unclassifiable messages do not pause.
func (in *Ingestor) pauseForReply(ctx context.Context, msg transport.InboundMessage, log *logrus.Entry) {
	contact, err := in.contacts.GetByEmail(ctx, msg.From)
	if errors.Is(err, repository.ErrNotFound) {
		return // reply from an address we never contacted
	}
	if err != nil {
		log.WithField("error", err).Error("contact lookup failed")
		return
	}

	state, err := in.states.GetStateByContact(ctx, contact.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return
	}
	if err != nil {
		log.WithField("error", err).Error("state lookup failed")
		return
	}
	if state.Status != models.SequenceStatusActive {
		return
	}

	if err := in.states.PauseForReply(ctx, state.ID, msg.ReceivedAt); err != nil {
		log.WithField("error", err).Error("failed to pause sequence")
		return
	}
	log.WithField("contact", contact.Email).Info("sequence paused after reply")
}

// suppressionFor maps a classifier verdict onto the registry taxonomy.
func suppressionFor(responseType string) (reason, source string) {
	switch responseType {
	case classifier.ResponseComplaint:
		return models.SuppressionReasonComplaint, models.SuppressionSourceComplaint
	case classifier.ResponseBounce:
		return models.SuppressionReasonHardBounce, models.SuppressionSourceBounce
	case classifier.ResponseUnsubscribe:
		return models.SuppressionReasonUnsubscribe, models.SuppressionSourceReplyKeyword
	case classifier.ResponseNotInterested:
		return models.SuppressionReasonNotInterested, models.SuppressionSourceReplyKeyword
	case classifier.ResponseOutOfOffice:
		return models.SuppressionReasonDeparted, models.SuppressionSourceReplyKeyword
	default:
		return models.SuppressionReasonNegative, models.SuppressionSourceReplyKeyword
	}
}
