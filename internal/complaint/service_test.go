package complaint_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"hostelmon/internal/classify"
	"hostelmon/internal/complaint"
	"hostelmon/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []complaint.Event
}

func (p *recordingPublisher) Publish(ev complaint.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Events() []complaint.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]complaint.Event(nil), p.events...)
}

type sentMessage struct{ to, text string }

type recordingReplier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (r *recordingReplier) Reply(_ context.Context, to, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{to, text})
	return r.err
}

type mapTranslator map[string]string

func (m mapTranslator) ToEnglish(_ context.Context, text string) (string, error) {
	if out, ok := m[text]; ok {
		return out, nil
	}
	return "", errors.New("unsupported")
}

type failingRemote struct{}

func (failingRemote) Classify(context.Context, string) (complaint.RemoteResult, error) {
	return complaint.RemoteResult{}, errors.New("upstream 503")
}

func newTestService(store complaint.Store, opts ...complaint.ServiceOption) *complaint.Service {
	return complaint.NewService(
		complaint.NewManager(store),
		complaint.NewAssembler(complaint.NewRoutingTable(nil)),
		zap.NewNop(),
		opts...,
	)
}

func TestIntake(t *testing.T) {
	pub := &recordingPublisher{}
	rep := &recordingReplier{}
	svc := newTestService(storage.NewMemory(), complaint.WithPublisher(pub), complaint.WithReplier(rep))

	c, err := svc.Intake(context.Background(), "919800000000", "tap leaking in room 204 urgent")
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, classify.Plumbing, c.Category)
	assert.Equal(t, classify.Urgent, c.Priority)
	assert.Equal(t, "204", *c.SubUnit)

	require.Len(t, rep.sent, 1)
	assert.Equal(t, "919800000000", rep.sent[0].to)
	assert.Contains(t, rep.sent[0].text, "#"+c.ShortID())
	assert.Contains(t, rep.sent[0].text, "PLUMBING")
	assert.Contains(t, rep.sent[0].text, "URGENT")
	assert.Contains(t, rep.sent[0].text, "plumbing@university.edu")

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, complaint.EventCreated, events[0].Type)
	assert.Equal(t, c.ID, events[0].Complaint.ID)
	assert.Equal(t, c.ResolveToken, events[0].Complaint.ResolveToken)
}

func TestIntakeIgnoresBlankText(t *testing.T) {
	pub := &recordingPublisher{}
	rep := &recordingReplier{}
	store := storage.NewMemory()
	svc := newTestService(store, complaint.WithPublisher(pub), complaint.WithReplier(rep))

	c, err := svc.Intake(context.Background(), "x", "  \n ")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Empty(t, rep.sent)
	assert.Empty(t, pub.Events())
	assert.Equal(t, 0, store.Len())
}

func TestIntakeAcknowledgesWhenStoreFails(t *testing.T) {
	pub := &recordingPublisher{}
	rep := &recordingReplier{}
	svc := newTestService(failingStore{err: errors.New("disk full")}, complaint.WithPublisher(pub), complaint.WithReplier(rep))

	c, err := svc.Intake(context.Background(), "919800000000", "fan broken")
	require.Error(t, err)
	assert.Nil(t, c)

	require.Len(t, rep.sent, 1)
	assert.Equal(t, complaint.FallbackAck, rep.sent[0].text)
	assert.Empty(t, pub.Events())
}

func TestIntakeSurvivesReplyFailure(t *testing.T) {
	rep := &recordingReplier{err: errors.New("meta api down")}
	svc := newTestService(storage.NewMemory(), complaint.WithReplier(rep))

	c, err := svc.Intake(context.Background(), "x", "fan broken")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestIntakeTranslatesBeforeAnalysis(t *testing.T) {
	original := "नल से पानी टपक रहा है कमरा 204"
	tr := mapTranslator{original: "water dripping from the tap room 204"}
	svc := newTestService(storage.NewMemory(), complaint.WithTranslator(tr))

	c, err := svc.Intake(context.Background(), "x", original)
	require.NoError(t, err)
	assert.Equal(t, classify.Plumbing, c.Category)
	assert.Equal(t, original, c.RawText)
	assert.Equal(t, "water dripping from the tap room 204", c.Summary)
}

func TestIntakeTranslationFailureUsesOriginal(t *testing.T) {
	svc := newTestService(storage.NewMemory(), complaint.WithTranslator(mapTranslator{}))

	c, err := svc.Intake(context.Background(), "x", "wifi down")
	require.NoError(t, err)
	assert.Equal(t, classify.Connectivity, c.Category)
}

func TestIntakeRemoteFailureStoresFallback(t *testing.T) {
	svc := newTestService(storage.NewMemory(), complaint.WithRemoteClassifier(failingRemote{}))

	c, err := svc.Intake(context.Background(), "x", "tap leaking in room 204")
	require.NoError(t, err)
	assert.Equal(t, classify.Other, c.Category)
	assert.Equal(t, classify.Medium, c.Priority)
	assert.Equal(t, complaint.ConfidenceFailed, c.Confidence)
	assert.Nil(t, c.SubUnit)
}

func TestServiceResolvePublishesOnce(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newTestService(storage.NewMemory(), complaint.WithPublisher(pub))

	c, err := svc.Intake(ctx, "x", "light not working")
	require.NoError(t, err)

	res, err := svc.Resolve(ctx, c.ResolveToken, "bulb replaced")
	require.NoError(t, err)
	assert.Equal(t, complaint.OutcomeResolved, res.Outcome)

	res, err = svc.Resolve(ctx, c.ResolveToken, "")
	require.NoError(t, err)
	assert.Equal(t, complaint.OutcomeAlreadyResolved, res.Outcome)

	res, err = svc.Resolve(ctx, "nonexistent-token", "")
	require.NoError(t, err)
	assert.Equal(t, complaint.OutcomeNotFound, res.Outcome)

	events := pub.Events()
	require.Len(t, events, 2)
	assert.Equal(t, complaint.EventCreated, events[0].Type)
	assert.Equal(t, complaint.EventResolved, events[1].Type)
	assert.Equal(t, "bulb replaced", *events[1].Complaint.ResolutionNote)
}

func TestMessages(t *testing.T) {
	note := "router replaced"
	c := complaint.Complaint{
		ID:             "3f2a9c1e-0000",
		Category:       classify.Connectivity,
		Priority:       classify.High,
		RouteAddress:   "it@university.edu",
		ResolutionNote: &note,
	}

	ack := complaint.Acknowledgement(c)
	assert.Contains(t, ack, "#3F2A9C1E")
	assert.Contains(t, ack, "CONNECTIVITY")
	assert.Contains(t, ack, "it@university.edu")

	assert.Contains(t, complaint.ResolvedNotice(c), "router replaced")

	c.ResolutionNote = nil
	assert.Contains(t, complaint.ResolvedNotice(c), complaint.DefaultResolutionNote)
}
