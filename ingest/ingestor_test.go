package ingest

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/classifier"
	"cadence/models"
	"cadence/repository"
	"cadence/transport"
)

type fakeFetcher struct {
	messages []transport.InboundMessage
	err      error
	since    time.Time
}

func (f *fakeFetcher) FetchSince(_ context.Context, since time.Time) ([]transport.InboundMessage, error) {
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

type addCall struct {
	email, reason, source string
}

type fakeRegistry struct {
	calls  []addCall
	active map[string]bool
}

func (f *fakeRegistry) Add(_ context.Context, email, reason, source string) (bool, error) {
	f.calls = append(f.calls, addCall{email: email, reason: reason, source: source})
	if f.active == nil {
		f.active = map[string]bool{}
	}
	if f.active[email] {
		return false, nil
	}
	f.active[email] = true
	return true, nil
}

type fakeInboundStore struct {
	seen        map[string]*models.InboundMessage
	checkpoints map[string]time.Time
	insertErr   error
}

func newFakeInboundStore() *fakeInboundStore {
	return &fakeInboundStore{
		seen:        map[string]*models.InboundMessage{},
		checkpoints: map[string]time.Time{},
	}
}

func (f *fakeInboundStore) InsertIfNew(_ context.Context, msg *models.InboundMessage) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if _, ok := f.seen[msg.MessageID]; ok {
		return false, nil
	}
	f.seen[msg.MessageID] = msg
	return true, nil
}

func (f *fakeInboundStore) GetCheckpoint(_ context.Context, mailbox string) (time.Time, error) {
	at, ok := f.checkpoints[mailbox]
	if !ok {
		return time.Time{}, repository.ErrNotFound
	}
	return at, nil
}

func (f *fakeInboundStore) SetCheckpoint(_ context.Context, mailbox string, at time.Time) error {
	f.checkpoints[mailbox] = at
	return nil
}

type fakeContactStore struct {
	contacts map[string]*models.Contact
}

func (f *fakeContactStore) GetByEmail(_ context.Context, email string) (*models.Contact, error) {
	c, ok := f.contacts[models.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeContactStore) Upsert(_ context.Context, contact *models.Contact) error {
	f.contacts[models.NormalizeEmail(contact.Email)] = contact
	return nil
}

func (f *fakeContactStore) MarkSuppressed(_ context.Context, email string) error {
	if c, ok := f.contacts[models.NormalizeEmail(email)]; ok {
		c.IsSuppressed = true
	}
	return nil
}

type fakeStateStore struct {
	states map[uint]*models.SequenceState
	paused []uint
}

func (f *fakeStateStore) GetSequence(_ context.Context, _ uint) (*models.Sequence, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeStateStore) GetStateByContact(_ context.Context, contactID uint) (*models.SequenceState, error) {
	for _, s := range f.states {
		if s.ContactID == contactID {
			return s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStateStore) CreateState(_ context.Context, state *models.SequenceState) error {
	f.states[state.ID] = state
	return nil
}

func (f *fakeStateStore) DueStates(_ context.Context, _ time.Time, _ int) ([]models.SequenceState, error) {
	return nil, nil
}

func (f *fakeStateStore) Advance(_ context.Context, _ uint, _ repository.StateAdvance) error {
	return nil
}

func (f *fakeStateStore) SetStatus(_ context.Context, stateID uint, status string) error {
	if s, ok := f.states[stateID]; ok {
		s.Status = status
		s.NextDueAt = nil
	}
	return nil
}

func (f *fakeStateStore) PauseForReply(_ context.Context, stateID uint, at time.Time) error {
	s, ok := f.states[stateID]
	if !ok {
		return repository.ErrNotFound
	}
	s.Status = models.SequenceStatusPausedRep
	s.ReplyReceived = true
	s.ReplyAt = &at
	s.NextDueAt = nil
	f.paused = append(f.paused, stateID)
	return nil
}

func (f *fakeStateStore) SuppressActiveByContact(_ context.Context, contactID uint) (int64, error) {
	var n int64
	for _, s := range f.states {
		if s.ContactID == contactID && s.Status == models.SequenceStatusActive {
			s.Status = models.SequenceStatusSuppressed
			n++
		}
	}
	return n, nil
}

func (f *fakeStateStore) RecordGenerationFailure(_ context.Context, _ uint, _ bool) error {
	return nil
}

type ingestFixture struct {
	ingestor *Ingestor
	fetcher  *fakeFetcher
	registry *fakeRegistry
	inbound  *fakeInboundStore
	contacts *fakeContactStore
	states   *fakeStateStore
	now      time.Time
}

func newIngestFixture() *ingestFixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &ingestFixture{
		fetcher:  &fakeFetcher{},
		registry: &fakeRegistry{},
		inbound:  newFakeInboundStore(),
		contacts: &fakeContactStore{contacts: map[string]*models.Contact{}},
		states:   &fakeStateStore{states: map[uint]*models.SequenceState{}},
		now:      time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC),
	}
	f.ingestor = NewIngestor(f.fetcher, classifier.NewKeywordClassifier(), f.registry, f.inbound, f.contacts, f.states, "inbox", logger)
	f.ingestor.now = func() time.Time { return f.now }
	return f
}

// seedActiveSequence registers a contact with an active sequence state.
func (f *ingestFixture) seedActiveSequence(email string, contactID, stateID uint) {
	contact := &models.Contact{Email: email}
	contact.ID = contactID
	f.contacts.contacts[models.NormalizeEmail(email)] = contact
	state := &models.SequenceState{
		ContactID: contactID,
		Status:    models.SequenceStatusActive,
	}
	state.ID = stateID
	f.states.states[stateID] = state
}

func message(id, from, subject, body string, at time.Time) transport.InboundMessage {
	return transport.InboundMessage{ID: id, From: from, Subject: subject, Body: body, ReceivedAt: at}
}

func TestIngestUnsubscribeSuppressesSender(t *testing.T) {
	f := newIngestFixture()
	f.fetcher.messages = []transport.InboundMessage{
		message("<m1@x>", "jane@org.com", "Re: intro", "Please remove me from your list.", f.now.Add(-time.Hour)),
	}

	summary, err := f.ingestor.IngestReplies(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.SuppressionsAdded)
	require.Len(t, f.registry.calls, 1)
	assert.Equal(t, addCall{
		email:  "jane@org.com",
		reason: models.SuppressionReasonUnsubscribe,
		source: models.SuppressionSourceReplyKeyword,
	}, f.registry.calls[0])

	stored := f.inbound.seen["<m1@x>"]
	require.NotNil(t, stored)
	assert.True(t, stored.Suppressed)
	assert.Equal(t, classifier.ResponseUnsubscribe, stored.ResponseType)
}

func TestIngestBounceSuppressesFailedRecipientNotDaemon(t *testing.T) {
	f := newIngestFixture()
	body := "Delivery has failed to these recipients or groups:\n" +
		"jane@org.com\nThe recipient's mailbox is full."
	f.fetcher.messages = []transport.InboundMessage{
		message("<b1@x>", "mailer-daemon@mail.org.com", "Undeliverable: intro", body, f.now.Add(-time.Hour)),
	}

	summary, err := f.ingestor.IngestReplies(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.BouncesDetected)
	assert.Equal(t, 1, summary.SuppressionsAdded)
	require.Len(t, f.registry.calls, 1)
	assert.Equal(t, "jane@org.com", f.registry.calls[0].email)
	assert.Equal(t, models.SuppressionReasonHardBounce, f.registry.calls[0].reason)
	assert.Equal(t, models.SuppressionSourceBounce, f.registry.calls[0].source)
}

func TestIngestBounceWithoutRecipientSuppressesNothing(t *testing.T) {
	f := newIngestFixture()
	f.fetcher.messages = []transport.InboundMessage{
		message("<b2@x>", "mailer-daemon@mail.org.com", "Undeliverable", "Delivery has failed.", f.now.Add(-time.Hour)),
	}

	summary, err := f.ingestor.IngestReplies(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.BouncesDetected)
	assert.Equal(t, 0, summary.SuppressionsAdded)
	assert.Empty(t, f.registry.calls)
}

func TestIngestComplaintCounted(t *testing.T) {
	f := newIngestFixture()
	f.fetcher.messages = []transport.InboundMessage{
		message("<c1@x>", "jane@org.com", "stop", "Stop spamming me, this is spam.", f.now.Add(-time.Hour)),
	}

	summary, err := f.ingestor.IngestReplies(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ComplaintsDetected)
	assert.Equal(t, 1, summary.SuppressionsAdded)
	require.Len(t, f.registry.calls, 1)
	assert.Equal(t, models.SuppressionReasonComplaint, f.registry.calls[0].reason)
}

func TestIngestNeutralReplyPausesActiveSequence(t *testing.T) {
	f := newIngestFixture()
	f.seedActiveSequence("jane@org.com", 1, 10)
	at := f.now.Add(-time.Hour)
	f.fetcher.messages = []transport.InboundMessage{
		message("<r1@x>", "jane@org.com", "Re: intro", "Thanks, can you send over some pricing details?", at),
	}

	summary, err := f.ingestor.IngestReplies(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SuppressionsAdded)
	assert.Empty(t, f.registry.calls)

	state := f.states.states[10]
	assert.Equal(t, models.SequenceStatusPausedRep, state.Status)
	assert.True(t, state.ReplyReceived)
	require.NotNil(t, state.ReplyAt)
	assert.Equal(t, at, *state.ReplyAt)
}

func TestIngestNeutralReplyFromStrangerIgnored(t *testing.T) {
	f := newIngestFixture()
	f.fetcher.messages = []transport.InboundMessage{
		message("<r2@x>", "stranger@elsewhere.com", "hello", "Interesting, tell me more.", f.now.Add(-time.Hour)),
	}

	summary, err := f.ingestor.IngestReplies(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Empty(t, f.states.paused)
}

func TestIngestTemporaryOutOfOfficeDoesNotPause(t *testing.T) {
	f := newIngestFixture()
	f.seedActiveSequence("jane@org.com", 1, 10)
	f.fetcher.messages = []transport.InboundMessage{
		message("<o1@x>", "jane@org.com", "Automatic reply: intro",
			"I am out of the office until Monday with limited access to email.", f.now.Add(-time.Hour)),
	}

	summary, err := f.ingestor.IngestReplies(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SuppressionsAdded)
	assert.Empty(t, f.registry.calls)
	assert.Equal(t, models.SequenceStatusActive, f.states.states[10].Status)
}

func TestIngestDuplicateMessageProcessedOnce(t *testing.T) {
	f := newIngestFixture()
	msg := message("<m1@x>", "jane@org.com", "Re: intro", "unsubscribe", f.now.Add(-time.Hour))
	f.fetcher.messages = []transport.InboundMessage{msg}

	_, err := f.ingestor.IngestReplies(context.Background(), nil)
	require.NoError(t, err)

	// The overlap window re-delivers the same message on the next pass.
	summary, err := f.ingestor.IngestReplies(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 0, summary.SuppressionsAdded)
	require.Len(t, f.registry.calls, 1, "registry fed exactly once")
}

func TestIngestFetchFailureAbortsWithoutCheckpoint(t *testing.T) {
	f := newIngestFixture()
	f.inbound.checkpoints["inbox"] = f.now.Add(-2 * time.Hour)
	f.fetcher.err = errors.New("imap connection reset")

	_, err := f.ingestor.IngestReplies(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, f.now.Add(-2*time.Hour), f.inbound.checkpoints["inbox"], "checkpoint untouched on failure")
}

func TestIngestStoreFailureHoldsCheckpoint(t *testing.T) {
	f := newIngestFixture()
	f.inbound.checkpoints["inbox"] = f.now.Add(-2 * time.Hour)
	f.inbound.insertErr = errors.New("db down")
	f.fetcher.messages = []transport.InboundMessage{
		message("<m1@x>", "jane@org.com", "Re: intro", "unsubscribe", f.now.Add(-time.Hour)),
		message("<m2@x>", "joe@org.com", "Re: intro", "please remove me", f.now.Add(-time.Hour)),
	}

	summary, err := f.ingestor.IngestReplies(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 0, summary.SuppressionsAdded)
	// An unrecorded message was never marked processed; advancing past it
	// would drop the unsubscribe once it ages out of the overlap buffer.
	assert.Equal(t, f.now.Add(-2*time.Hour), f.inbound.checkpoints["inbox"],
		"checkpoint must not advance past an unrecorded message")

	// Once the store recovers, the refetched messages are acted on and the
	// checkpoint moves again.
	f.inbound.insertErr = nil
	summary, err = f.ingestor.IngestReplies(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SuppressionsAdded)
	assert.Equal(t, f.now, f.inbound.checkpoints["inbox"])
}

func TestIngestFetchHorizon(t *testing.T) {
	t.Run("checkpoint minus overlap", func(t *testing.T) {
		f := newIngestFixture()
		f.inbound.checkpoints["inbox"] = f.now.Add(-time.Hour)

		_, err := f.ingestor.IngestReplies(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, f.now.Add(-time.Hour).Add(-DefaultOverlap), f.fetcher.since)
	})

	t.Run("default lookback on first run", func(t *testing.T) {
		f := newIngestFixture()
		_, err := f.ingestor.IngestReplies(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, f.now.Add(-DefaultLookback), f.fetcher.since)
	})

	t.Run("explicit override wins", func(t *testing.T) {
		f := newIngestFixture()
		f.inbound.checkpoints["inbox"] = f.now.Add(-time.Hour)
		lookback := 30 * time.Minute

		_, err := f.ingestor.IngestReplies(context.Background(), &lookback)
		require.NoError(t, err)
		assert.Equal(t, f.now.Add(-lookback), f.fetcher.since)
	})
}
