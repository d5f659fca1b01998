// Package telegram provides the department chat integration.
//
// This package handles:
//   - Posting new complaints with a "Mark as Resolved" inline button
//   - Prompting for a remark when the button is clicked
//   - Resolving the complaint with that remark
//   - Editing the original message once the complaint is resolved
//   - Replying to /summary with the pending complaints image
//   - Long polling for updates
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"hostelmon/internal/complaint"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// APIBaseURL is the Telegram Bot API root.
const APIBaseURL = "https://api.telegram.org"

const (
	callbackPrefix = "resolve:"
	pollTimeout    = 30
	retryDelay     = 5 * time.Second
)

// Resolver performs the resolve transition for a token.
type Resolver interface {
	Resolve(ctx context.Context, token, note string) (complaint.Resolution, error)
}

// SummarySource renders the pending complaints image. It returns nil data
// when nothing is pending.
type SummarySource interface {
	PendingPNG(ctx context.Context) ([]byte, error)
}

// PendingResolution is a button click waiting for its remark.
type PendingResolution struct {
	Token           string
	MessageID       int
	PromptMessageID int
}

// Client is the department chat bot.
//
// pending and messages are guarded by mu; the update loop and the
// notification workers touch them concurrently.
type Client struct {
	http     *resty.Client
	botToken string
	chatID   string
	debug    bool
	log      *zap.Logger

	resolver Resolver
	summary  SummarySource

	pollTimeout int
	retryDelay  time.Duration

	mu       sync.Mutex
	pending  map[int64]PendingResolution
	messages map[string]int // complaint id -> chat message id
}

// New returns a Client. http must have its base URL set to the Bot API and
// a timeout longer than the long polling window.
func New(http *resty.Client, botToken, chatID string, debug bool, log *zap.Logger) *Client {
	return &Client{
		http:        http,
		botToken:    botToken,
		chatID:      chatID,
		debug:       debug,
		log:         log,
		pollTimeout: pollTimeout,
		retryDelay:  retryDelay,
		pending:     make(map[int64]PendingResolution),
		messages:    make(map[string]int),
	}
}

// SetResolver wires the resolve path used by the remark flow.
func (c *Client) SetResolver(r Resolver) { c.resolver = r }

// SetSummary wires the /summary command.
func (c *Client) SetSummary(s SummarySource) { c.summary = s }

// Telegram API types

// OutgoingMessage is a sendMessage request.
type OutgoingMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           any    `json:"reply_markup,omitempty"`
	ReplyToMessageID      int    `json:"reply_to_message_id,omitempty"`
}

// InlineKeyboardMarkup represents an inline keyboard.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton represents a button in an inline keyboard.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// ForceReply prompts the user to reply to the bot's message.
type ForceReply struct {
	ForceReply            bool   `json:"force_reply"`
	Selective             bool   `json:"selective,omitempty"`
	InputFieldPlaceholder string `json:"input_field_placeholder,omitempty"`
}

// Update is one entry from getUpdates.
type Update struct {
	UpdateID      int              `json:"update_id"`
	Message       *IncomingMessage `json:"message,omitempty"`
	CallbackQuery *CallbackQuery   `json:"callback_query,omitempty"`
}

// IncomingMessage is a received chat message.
type IncomingMessage struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	Text      string `json:"text"`
}

// Chat represents a Telegram chat.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// CallbackQuery is an inline button click.
type CallbackQuery struct {
	ID      string           `json:"id"`
	From    User             `json:"from"`
	Message *IncomingMessage `json:"message"`
	Data    string           `json:"data"`
}

// User represents a Telegram user.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// EditMessageRequest is an editMessageText request.
type EditMessageRequest struct {
	ChatID      string                `json:"chat_id"`
	MessageID   int                   `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type deleteMessageRequest struct {
	ChatID    string `json:"chat_id"`
	MessageID int    `json:"message_id"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// call posts payload to a Bot API method and decodes result into out
// when out is non-nil.
func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	var res apiResponse
	_, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&res).
		SetError(&res).
		Post(c.methodPath(method))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	return decodeResult(method, res, out)
}

func (c *Client) methodPath(method string) string {
	return fmt.Sprintf("/bot%s/%s", c.botToken, method)
}

func decodeResult(method string, res apiResponse, out any) error {
	if !res.OK {
		return fmt.Errorf("telegram %s: %s", method, res.Description)
	}
	if out == nil || len(res.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

// send posts a message and returns its id.
func (c *Client) send(ctx context.Context, msg OutgoingMessage) (int, error) {
	if c.debug {
		c.log.Info("DEBUG MODE: skipping Telegram message", zap.String("text", msg.Text))
		return 0, nil
	}
	var sent IncomingMessage
	if err := c.call(ctx, "sendMessage", msg, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *Client) say(ctx context.Context, text string) {
	if _, err := c.send(ctx, OutgoingMessage{ChatID: c.chatID, Text: text, ParseMode: "HTML"}); err != nil {
		c.log.Warn("Failed to send Telegram message", zap.Error(err))
	}
}

func (c *Client) deleteMessage(ctx context.Context, messageID int) {
	if messageID <= 0 || c.debug {
		return
	}
	if err := c.call(ctx, "deleteMessage", deleteMessageRequest{ChatID: c.chatID, MessageID: messageID}, nil); err != nil {
		c.log.Debug("Failed to delete Telegram message", zap.Int("message_id", messageID), zap.Error(err))
	}
}

func (c *Client) answerCallbackQuery(ctx context.Context, id, text string) {
	if c.debug {
		return
	}
	payload := map[string]any{
		"callback_query_id": id,
		"text":              text,
		"show_alert":        false,
	}
	if err := c.call(ctx, "answerCallbackQuery", payload, nil); err != nil {
		c.log.Debug("Failed to answer callback query", zap.Error(err))
	}
}

func (c *Client) Name() string { return "telegram" }

// Notify posts created complaints and marks resolved ones.
func (c *Client) Notify(ctx context.Context, ev complaint.Event) error {
	switch ev.Type {
	case complaint.EventCreated:
		return c.postComplaint(ctx, ev.Complaint)
	case complaint.EventResolved:
		return c.markResolved(ctx, ev.Complaint)
	}
	return nil
}

func (c *Client) postComplaint(ctx context.Context, cm complaint.Complaint) error {
	msg := OutgoingMessage{
		ChatID:                c.chatID,
		Text:                  ComplaintText(cm),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyMarkup: &InlineKeyboardMarkup{
			InlineKeyboard: [][]InlineKeyboardButton{{
				{Text: "✅ Mark as Resolved", CallbackData: callbackPrefix + cm.ResolveToken},
			}},
		},
	}

	id, err := c.send(ctx, msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.messages[cm.ID] = id
	c.mu.Unlock()

	c.log.Info("Complaint posted to Telegram", zap.String("id", cm.ID), zap.Int("message_id", id))
	return nil
}

func (c *Client) markResolved(ctx context.Context, cm complaint.Complaint) error {
	c.mu.Lock()
	messageID, ok := c.messages[cm.ID]
	delete(c.messages, cm.ID)
	c.mu.Unlock()

	text := ResolvedText(cm)
	if !ok || messageID == 0 {
		_, err := c.send(ctx, OutgoingMessage{ChatID: c.chatID, Text: text, ParseMode: "HTML"})
		return err
	}
	if c.debug {
		c.log.Info("DEBUG MODE: skipping Telegram edit", zap.Int("message_id", messageID))
		return nil
	}

	req := EditMessageRequest{
		ChatID:      c.chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}},
	}
	return c.call(ctx, "editMessageText", req, nil)
}

// ComplaintText is the chat message for a new complaint.
func ComplaintText(cm complaint.Complaint) string {
	return fmt.Sprintf(
		"📋 Complaint #%s\n\n"+
			"🏠 %s\n"+
			"🚪 Room %s\n"+
			"🏷 %s · %s\n"+
			"📅 %s\n\n"+
			"💬 <b>Details:</b>\n%s\n\n"+
			"📨 %s",
		cm.ShortID(),
		html.EscapeString(orUnknown(cm.Facility)),
		html.EscapeString(orUnknown(cm.SubUnit)),
		cm.Category, cm.Priority,
		cm.CreatedAt.Format("02 Jan 2006, 03:04 PM"),
		html.EscapeString(cm.Summary),
		html.EscapeString(cm.RouteAddress),
	)
}

// ResolvedText replaces the complaint message once resolved.
func ResolvedText(cm complaint.Complaint) string {
	note := complaint.DefaultResolutionNote
	if cm.ResolutionNote != nil && *cm.ResolutionNote != "" {
		note = *cm.ResolutionNote
	}
	resolvedAt := time.Now()
	if cm.ResolvedAt != nil {
		resolvedAt = *cm.ResolvedAt
	}
	return fmt.Sprintf(
		"✅ <b>RESOLVED</b>\n\n"+
			"Complaint #%s\n"+
			"🏷 %s\n"+
			"📝 %s\n"+
			"🕐 %s",
		cm.ShortID(),
		cm.Category,
		html.EscapeString(note),
		resolvedAt.Format("02 Jan 2006, 03:04 PM"),
	)
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return "Unknown"
	}
	return *s
}

// HandleUpdates long-polls for updates until ctx is cancelled.
func (c *Client) HandleUpdates(ctx context.Context) {
	c.log.Info("Starting Telegram update handler")
	offset := 0

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Telegram update handler stopped")
			return
		default:
		}

		updates, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.log.Warn("Error getting Telegram updates", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
			continue
		}

		offset = c.process(ctx, updates, offset)
	}
}

// process handles updates in order and returns the next offset.
func (c *Client) process(ctx context.Context, updates []Update, offset int) int {
	for _, u := range updates {
		switch {
		case u.CallbackQuery != nil:
			c.handleCallbackQuery(ctx, u.CallbackQuery)
		case u.Message != nil:
			c.handleMessage(ctx, u.Message)
		}
		offset = u.UpdateID + 1
	}
	return offset
}

func (c *Client) getUpdates(ctx context.Context, offset int) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         c.pollTimeout,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// handleCallbackQuery starts (or toggles off) the remark prompt.
func (c *Client) handleCallbackQuery(ctx context.Context, q *CallbackQuery) {
	c.log.Debug("Received callback query", zap.String("from", q.From.FirstName))

	token, ok := strings.CutPrefix(q.Data, callbackPrefix)
	if !ok || token == "" {
		c.answerCallbackQuery(ctx, q.ID, "Invalid action")
		return
	}

	messageID := 0
	if q.Message != nil {
		messageID = q.Message.MessageID
	}

	c.mu.Lock()
	if prev, exists := c.pending[q.From.ID]; exists && prev.Token == token {
		// second click on the same button cancels
		delete(c.pending, q.From.ID)
		c.mu.Unlock()

		c.deleteMessage(ctx, prev.PromptMessageID)
		c.answerCallbackQuery(ctx, q.ID, "Resolution cancelled")
		c.log.Info("Resolution cancelled by toggle", zap.String("from", q.From.FirstName))
		return
	}
	c.pending[q.From.ID] = PendingResolution{Token: token, MessageID: messageID}
	c.mu.Unlock()

	prompt := OutgoingMessage{
		ChatID:           c.chatID,
		Text:             fmt.Sprintf("📝 Remarks from %s (send <b>cancel</b> to abort):", html.EscapeString(q.From.FirstName)),
		ParseMode:        "HTML",
		ReplyToMessageID: messageID,
		ReplyMarkup: &ForceReply{
			ForceReply:            true,
			Selective:             true,
			InputFieldPlaceholder: "Enter resolution details...",
		},
	}
	promptID, err := c.send(ctx, prompt)
	if err != nil {
		c.log.Warn("Failed to send remark prompt", zap.Error(err))
		c.answerCallbackQuery(ctx, q.ID, "Error sending prompt")
		return
	}

	c.mu.Lock()
	if p, exists := c.pending[q.From.ID]; exists && p.Token == token {
		p.PromptMessageID = promptID
		c.pending[q.From.ID] = p
	}
	c.mu.Unlock()

	c.answerCallbackQuery(ctx, q.ID, "Please send your remarks")
}

// handleMessage consumes a pending remark or a /summary command.
func (c *Client) handleMessage(ctx context.Context, m *IncomingMessage) {
	if m.From == nil || strings.TrimSpace(m.Text) == "" {
		return
	}

	if isCommand(m.Text, "/summary") {
		c.sendSummary(ctx)
		return
	}

	c.mu.Lock()
	p, exists := c.pending[m.From.ID]
	if exists {
		delete(c.pending, m.From.ID)
	}
	c.mu.Unlock()
	if !exists {
		return
	}

	c.deleteMessage(ctx, p.PromptMessageID)

	if strings.EqualFold(strings.TrimSpace(m.Text), "cancel") {
		c.say(ctx, "❌ Resolution cancelled.")
		return
	}

	if c.resolver == nil {
		c.say(ctx, "❌ Resolving from chat is not enabled.")
		return
	}

	res, err := c.resolver.Resolve(ctx, p.Token, m.Text)
	if err != nil {
		c.log.Error("Failed to resolve complaint from chat", zap.Error(err))
		c.say(ctx, "❌ Failed to mark the complaint as resolved. Please try again.")
		return
	}

	switch res.Outcome {
	case complaint.OutcomeResolved:
		// the resolved event edits the original message
		c.log.Info("Complaint resolved from chat",
			zap.String("id", res.Complaint.ID),
			zap.String("by", m.From.FirstName))
	case complaint.OutcomeAlreadyResolved:
		c.say(ctx, fmt.Sprintf("ℹ️ Complaint <b>#%s</b> was already resolved.", res.Complaint.ShortID()))
	case complaint.OutcomeNotFound:
		c.say(ctx, "❌ Complaint not found.")
	}
}

func isCommand(text, cmd string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return name == cmd
}

func (c *Client) sendSummary(ctx context.Context) {
	if c.summary == nil {
		c.say(ctx, "Summary is not available.")
		return
	}

	png, err := c.summary.PendingPNG(ctx)
	if err != nil {
		c.log.Error("Failed to render summary", zap.Error(err))
		c.say(ctx, "❌ Failed to build the summary.")
		return
	}
	if len(png) == 0 {
		c.say(ctx, "✅ No pending complaints.")
		return
	}

	if err := c.SendPhoto(ctx, png, "Pending complaints"); err != nil {
		c.log.Error("Failed to send summary", zap.Error(err))
	}
}

// SendPhoto uploads a PNG to the chat.
func (c *Client) SendPhoto(ctx context.Context, png []byte, caption string) error {
	if c.debug {
		c.log.Info("DEBUG MODE: skipping Telegram photo", zap.Int("bytes", len(png)))
		return nil
	}

	var res apiResponse
	_, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": c.chatID,
			"caption": caption,
		}).
		SetFileReader("photo", "summary.png", bytes.NewReader(png)).
		SetResult(&res).
		SetError(&res).
		Post(c.methodPath("sendPhoto"))
	if err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}
	return decodeResult("sendPhoto", res, nil)
}
