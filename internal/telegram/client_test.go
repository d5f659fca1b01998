package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hostelmon/internal/api"
	"hostelmon/internal/classify"
	"hostelmon/internal/complaint"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiCall struct {
	Method string
	Body   map[string]any
	Raw    string
}

// fakeBot records Bot API calls and answers sendMessage with increasing
// message ids.
type fakeBot struct {
	mu     sync.Mutex
	calls  []apiCall
	nextID int
}

func (f *fakeBot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	raw, _ := io.ReadAll(r.Body)

	call := apiCall{Method: method, Raw: string(raw)}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(raw, &call.Body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.nextID++
	id := 100 + f.nextID
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "sendMessage":
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{"message_id": id}})
	case "getUpdates":
		w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"message_id":1,"from":{"id":5,"first_name":"Asha"},"text":"hello"}}]}`))
	default:
		w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func (f *fakeBot) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

func (f *fakeBot) last(method string) apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method {
			return f.calls[i]
		}
	}
	return apiCall{}
}

type fakeResolver struct {
	res   complaint.Resolution
	err   error
	token string
	note  string
}

func (f *fakeResolver) Resolve(_ context.Context, token, note string) (complaint.Resolution, error) {
	f.token, f.note = token, note
	return f.res, f.err
}

type fakeSummary struct {
	png []byte
	err error
}

func (f fakeSummary) PendingPNG(context.Context) ([]byte, error) { return f.png, f.err }

func newTestClient(t *testing.T) (*Client, *fakeBot) {
	bot := &fakeBot{}
	srv := httptest.NewServer(bot)
	t.Cleanup(srv.Close)
	http := api.NewRestClient(api.Options{BaseURL: srv.URL, Timeout: time.Second})
	return New(http, "123:ABC", "-1001", false, zap.NewNop()), bot
}

func testComplaint() complaint.Complaint {
	hostel := "KP-7"
	room := "312"
	return complaint.Complaint{
		ID:           "3f2a9c1e-1111-2222-3333-444444444444",
		Facility:     &hostel,
		SubUnit:      &room,
		Category:     classify.Connectivity,
		Priority:     classify.Urgent,
		Summary:      "wifi <down>",
		RouteAddress: "it@university.edu",
		Status:       complaint.StatusPending,
		ResolveToken: "tok_abc",
		CreatedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestNotifyCreatedPostsWithButton(t *testing.T) {
	c, bot := newTestClient(t)

	require.NoError(t, c.Notify(context.Background(), complaint.Event{Type: complaint.EventCreated, Complaint: testComplaint()}))

	call := bot.last("sendMessage")
	assert.Equal(t, "-1001", call.Body["chat_id"])
	assert.Contains(t, call.Body["text"], "#3F2A9C1E")
	assert.Contains(t, call.Body["text"], "wifi &lt;down&gt;")
	assert.Contains(t, call.Raw, `"callback_data":"resolve:tok_abc"`)

	c.mu.Lock()
	assert.Equal(t, 101, c.messages[testComplaint().ID])
	c.mu.Unlock()
}

func TestNotifyResolvedEditsOriginalMessage(t *testing.T) {
	c, bot := newTestClient(t)
	cm := testComplaint()
	require.NoError(t, c.Notify(context.Background(), complaint.Event{Type: complaint.EventCreated, Complaint: cm}))

	note := "router rebooted"
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	cm.Status = complaint.StatusResolved
	cm.ResolutionNote = &note
	cm.ResolvedAt = &now
	require.NoError(t, c.Notify(context.Background(), complaint.Event{Type: complaint.EventResolved, Complaint: cm}))

	edit := bot.last("editMessageText")
	assert.Equal(t, float64(101), edit.Body["message_id"])
	assert.Contains(t, edit.Body["text"], "RESOLVED")
	assert.Contains(t, edit.Body["text"], "router rebooted")

	c.mu.Lock()
	assert.Empty(t, c.messages)
	c.mu.Unlock()
}

func TestNotifyResolvedWithoutOriginalSendsNewMessage(t *testing.T) {
	c, bot := newTestClient(t)
	cm := testComplaint()
	cm.Status = complaint.StatusResolved

	require.NoError(t, c.Notify(context.Background(), complaint.Event{Type: complaint.EventResolved, Complaint: cm}))
	assert.Equal(t, []string{"sendMessage"}, bot.methods())
	assert.Contains(t, bot.last("sendMessage").Body["text"], complaint.DefaultResolutionNote)
}

func clickUpdate(id int, userID int64, data string) Update {
	return Update{
		UpdateID: id,
		CallbackQuery: &CallbackQuery{
			ID:      "cb",
			From:    User{ID: userID, FirstName: "Warden"},
			Message: &IncomingMessage{MessageID: 55},
			Data:    data,
		},
	}
}

func textUpdate(id int, userID int64, text string) Update {
	return Update{
		UpdateID: id,
		Message: &IncomingMessage{
			MessageID: 900 + id,
			From:      &User{ID: userID, FirstName: "Warden"},
			Text:      text,
		},
	}
}

func TestRemarkFlowResolves(t *testing.T) {
	c, bot := newTestClient(t)
	cm := testComplaint()
	resolver := &fakeResolver{res: complaint.Resolution{Outcome: complaint.OutcomeResolved, Complaint: &cm}}
	c.SetResolver(resolver)

	offset := c.process(context.Background(), []Update{clickUpdate(1, 9, "resolve:tok_abc")}, 0)
	assert.Equal(t, 2, offset)

	prompt := bot.last("sendMessage")
	assert.Equal(t, float64(55), prompt.Body["reply_to_message_id"])
	assert.Contains(t, prompt.Raw, `"force_reply":true`)

	c.process(context.Background(), []Update{textUpdate(2, 9, "replaced the router")}, offset)

	assert.Equal(t, "tok_abc", resolver.token)
	assert.Equal(t, "replaced the router", resolver.note)
	assert.Contains(t, bot.methods(), "deleteMessage")

	c.mu.Lock()
	assert.Empty(t, c.pending)
	c.mu.Unlock()
}

func TestSecondClickCancels(t *testing.T) {
	c, bot := newTestClient(t)
	resolver := &fakeResolver{}
	c.SetResolver(resolver)

	c.process(context.Background(), []Update{
		clickUpdate(1, 9, "resolve:tok_abc"),
		clickUpdate(2, 9, "resolve:tok_abc"),
	}, 0)

	assert.Contains(t, bot.methods(), "deleteMessage")
	assert.Contains(t, bot.last("answerCallbackQuery").Body["text"], "cancelled")

	c.process(context.Background(), []Update{textUpdate(3, 9, "done")}, 0)
	assert.Empty(t, resolver.token)
}

func TestCancelKeyword(t *testing.T) {
	c, bot := newTestClient(t)
	resolver := &fakeResolver{}
	c.SetResolver(resolver)

	c.process(context.Background(), []Update{
		clickUpdate(1, 9, "resolve:tok_abc"),
		textUpdate(2, 9, "  CANCEL "),
	}, 0)

	assert.Empty(t, resolver.token)
	assert.Contains(t, bot.last("sendMessage").Body["text"], "Resolution cancelled")
}

func TestRemarkOutcomes(t *testing.T) {
	cm := testComplaint()
	tests := []struct {
		name     string
		resolver *fakeResolver
		want     string
	}{
		{
			name:     "already resolved",
			resolver: &fakeResolver{res: complaint.Resolution{Outcome: complaint.OutcomeAlreadyResolved, Complaint: &cm}},
			want:     "already resolved",
		},
		{
			name:     "not found",
			resolver: &fakeResolver{res: complaint.Resolution{Outcome: complaint.OutcomeNotFound}},
			want:     "not found",
		},
		{
			name:     "store failure",
			resolver: &fakeResolver{err: errors.New("db down")},
			want:     "Failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, bot := newTestClient(t)
			c.SetResolver(tt.resolver)

			c.process(context.Background(), []Update{
				clickUpdate(1, 9, "resolve:tok_abc"),
				textUpdate(2, 9, "fixed"),
			}, 0)

			assert.Contains(t, bot.last("sendMessage").Body["text"], tt.want)
		})
	}
}

func TestInvalidCallbackData(t *testing.T) {
	c, bot := newTestClient(t)
	c.process(context.Background(), []Update{clickUpdate(1, 9, "delete:everything")}, 0)

	assert.Equal(t, []string{"answerCallbackQuery"}, bot.methods())
	assert.Equal(t, "Invalid action", bot.last("answerCallbackQuery").Body["text"])
}

func TestMessagesWithoutPendingAreIgnored(t *testing.T) {
	c, bot := newTestClient(t)
	c.process(context.Background(), []Update{textUpdate(1, 9, "hello there")}, 0)
	assert.Empty(t, bot.methods())
}

func TestSummaryCommand(t *testing.T) {
	c, bot := newTestClient(t)
	c.SetSummary(fakeSummary{png: []byte("\x89PNG fake")})

	c.process(context.Background(), []Update{textUpdate(1, 9, "/summary@hostel_bot")}, 0)

	photo := bot.last("sendPhoto")
	assert.Contains(t, photo.Raw, `name="photo"; filename="summary.png"`)
	assert.Contains(t, photo.Raw, "-1001")
}

func TestSummaryCommandNothingPending(t *testing.T) {
	c, bot := newTestClient(t)
	c.SetSummary(fakeSummary{})

	c.process(context.Background(), []Update{textUpdate(1, 9, "/summary")}, 0)

	assert.NotContains(t, bot.methods(), "sendPhoto")
	assert.Contains(t, bot.last("sendMessage").Body["text"], "No pending complaints")
}

func TestGetUpdates(t *testing.T) {
	c, bot := newTestClient(t)
	c.pollTimeout = 0

	updates, err := c.getUpdates(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, 7, updates[0].UpdateID)
	assert.Equal(t, "hello", updates[0].Message.Text)
	assert.Equal(t, float64(7), bot.last("getUpdates").Body["offset"])
}

func TestAPIErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c := New(api.NewRestClient(api.Options{BaseURL: srv.URL, Timeout: time.Second}), "123:ABC", "-1", false, zap.NewNop())
	err := c.Notify(context.Background(), complaint.Event{Type: complaint.EventCreated, Complaint: testComplaint()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestHandleUpdatesStopsOnCancel(t *testing.T) {
	c, _ := newTestClient(t)
	c.pollTimeout = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.HandleUpdates(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("update loop did not stop")
	}
}

func TestIsCommand(t *testing.T) {
	assert.True(t, isCommand("/summary", "/summary"))
	assert.True(t, isCommand("/summary@bot now", "/summary"))
	assert.False(t, isCommand("summary", "/summary"))
	assert.False(t, isCommand("/summaryx", "/summary"))
}
