// Package whatsapp talks to the Meta WhatsApp Cloud API: outbound text
// messages and inbound webhook payloads.
package whatsapp

import (
	"context"
	"fmt"

	"hostelmon/internal/complaint"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// GraphBaseURL is the Meta Graph API root.
const GraphBaseURL = "https://graph.facebook.com"

// NonTextReply is sent when a reporter sends media instead of text.
const NonTextReply = "Please send your complaint as a text message. You can also describe the issue in words."

// Client sends WhatsApp text messages from one business phone number.
//
// It acknowledges reporters (complaint.Replier) and tells them when their
// complaint is resolved (notify.Notifier).
type Client struct {
	http          *resty.Client
	phoneNumberID string
	accessToken   string
	apiVersion    string
	debug         bool
	log           *zap.Logger
}

// New returns a Client. http must have its base URL set to the Graph API.
func New(http *resty.Client, phoneNumberID, accessToken, apiVersion string, debug bool, log *zap.Logger) *Client {
	return &Client{
		http:          http,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		apiVersion:    apiVersion,
		debug:         debug,
		log:           log,
	}
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Reply sends text to the WhatsApp number to.
func (c *Client) Reply(ctx context.Context, to, text string) error {
	if c.debug {
		c.log.Info("DEBUG MODE: skipping WhatsApp message", zap.String("to", to))
		return nil
	}

	var (
		out    sendResponse
		failed graphError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.accessToken).
		SetHeader("Content-Type", "application/json").
		SetPathParams(map[string]string{
			"version": c.apiVersion,
			"phone":   c.phoneNumberID,
		}).
		SetBody(sendRequest{
			MessagingProduct: "whatsapp",
			To:               to,
			Type:             "text",
			Text:             textBody{Body: text},
		}).
		SetResult(&out).
		SetError(&failed).
		Post("/{version}/{phone}/messages")
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("whatsapp api returned %d: %s", resp.StatusCode(), failed.Error.Message)
	}

	c.log.Info("WhatsApp message sent", zap.String("to", to))
	return nil
}

func (c *Client) Name() string { return "whatsapp" }

// Notify tells the reporter about complaint.resolved events.
func (c *Client) Notify(ctx context.Context, ev complaint.Event) error {
	if ev.Type != complaint.EventResolved || ev.Complaint.ReporterHandle == "" {
		return nil
	}
	return c.Reply(ctx, ev.Complaint.ReporterHandle, complaint.ResolvedNotice(ev.Complaint))
}
