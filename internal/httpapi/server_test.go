package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"hostelmon/internal/complaint"
	"hostelmon/internal/health"
	"hostelmon/internal/storage"
	"hostelmon/internal/whatsapp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reply struct{ to, text string }

type recordingReplier struct {
	mu      sync.Mutex
	replies []reply
}

func (r *recordingReplier) Reply(_ context.Context, to, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply{to, text})
	return nil
}

type fakeSummary struct {
	png []byte
	err error
}

func (f fakeSummary) PendingPNG(context.Context) ([]byte, error) { return f.png, f.err }

type brokenStore struct{ complaint.Store }

func (brokenStore) FindOne(context.Context, complaint.Field, string) (*complaint.Complaint, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) FindAll(context.Context, complaint.Field, bool) ([]complaint.Complaint, error) {
	return nil, errors.New("connection refused")
}

type fixture struct {
	server  *Server
	handler http.Handler
	replier *recordingReplier
	store   *storage.Memory
	monitor *health.Monitor
}

func newFixture(t *testing.T, store complaint.Store) *fixture {
	t.Helper()
	mem := storage.NewMemory()
	if store == nil {
		store = mem
	}
	replier := &recordingReplier{}
	monitor := health.NewMonitor(nil)
	svc := complaint.NewService(
		complaint.NewManager(store),
		complaint.NewAssembler(complaint.NewRoutingTable(nil)),
		zap.NewNop(),
		complaint.WithReplier(replier),
		complaint.WithPublisher(monitor.Tap(nil)),
	)
	s := &Server{
		Service:     svc,
		Replier:     replier,
		Summary:     fakeSummary{png: []byte("\x89PNG data")},
		Monitor:     monitor,
		VerifyToken: "verify-me",
		Log:         zap.NewNop(),
	}
	return &fixture{server: s, handler: s.Routes(), replier: replier, store: mem, monitor: monitor}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

const textWebhook = `{"entry":[{"changes":[{"value":{"messages":[
  {"from":"919800000000","id":"wamid.1","type":"text","text":{"body":"KP-7 room 312 wifi down"}}
]}}]}]}`

const imageWebhook = `{"entry":[{"changes":[{"value":{"messages":[
  {"from":"919811111111","id":"wamid.2","type":"image","image":{"id":"m1"}}
]}}]}]}`

func TestIndex(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgRunning, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/nope", "").Code)
}

func TestWebhookVerification(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = f.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookCreatesComplaint(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/webhook", textWebhook)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	require.Equal(t, 1, f.store.Len())
	all, err := f.store.FindAll(context.Background(), complaint.FieldCreatedAt, true)
	require.NoError(t, err)
	c := all[0]
	assert.Equal(t, "919800000000", c.ReporterHandle)
	assert.Equal(t, "KP-7", *c.Facility)
	assert.Equal(t, "312", *c.SubUnit)
	assert.Equal(t, "CONNECTIVITY", string(c.Category))

	require.Len(t, f.replier.replies, 1)
	assert.Contains(t, f.replier.replies[0].text, "#"+c.ShortID())

	s := f.monitor.GetStatus()
	assert.Equal(t, "success", s.LastIntakeStatus)
	assert.Equal(t, int64(1), s.Created)
}

func TestWebhookNonText(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/webhook", imageWebhook)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.store.Len())

	require.Len(t, f.replier.replies, 1)
	assert.Equal(t, whatsapp.NonTextReply, f.replier.replies[0].text)
	assert.Equal(t, "ignored", f.monitor.GetStatus().LastIntakeStatus)
}

func TestWebhookMalformed(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/webhook", "{not json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.replier.replies)
}

func TestResolveLink(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	c, err := f.server.Service.Intake(ctx, "919800000000", "fan broken")
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/resolve?token="+c.ResolveToken+"&note=replaced+capacitor", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "#"+c.ShortID())

	stored, err := f.store.FindOne(ctx, complaint.FieldID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusResolved, stored.Status)
	assert.Equal(t, "replaced capacitor", *stored.ResolutionNote)

	rec = f.do(http.MethodGet, "/resolve?token="+c.ResolveToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgAlreadyResolved, rec.Body.String())
	assert.Equal(t, int64(1), f.monitor.GetStatus().Resolved)
}

func TestResolveLinkErrors(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/resolve", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgInvalidLink, rec.Body.String())

	rec = f.do(http.MethodGet, "/resolve?token=unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgNotFound, rec.Body.String())

	broken := newFixture(t, brokenStore{})
	rec = broken.do(http.MethodGet, "/resolve?token=anything", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgFailed, rec.Body.String())
}

func TestListOmitsTokens(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.server.Service.Intake(ctx, "a", "tap leaking in room 204")
	require.NoError(t, err)
	_, err = f.server.Service.Intake(ctx, "b", "wifi down")
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/complaints", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), first.ResolveToken)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
	assert.NotContains(t, list[0], "resolve_token")
}

func TestListEmptyIsArray(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/complaints", "")
	assert.Equal(t, "[]\n", rec.Body.String())

	broken := newFixture(t, brokenStore{})
	assert.Equal(t, http.StatusInternalServerError, broken.do(http.MethodGet, "/complaints", "").Code)
}

func TestSummaryImage(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/complaints/summary.png", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	f.server.Summary = fakeSummary{}
	f.handler = f.server.Routes()
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/complaints/summary.png", "").Code)

	f.server.Summary = fakeSummary{err: errors.New("font missing")}
	f.handler = f.server.Routes()
	assert.Equal(t, http.StatusInternalServerError, f.do(http.MethodGet, "/complaints/summary.png", "").Code)
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}
