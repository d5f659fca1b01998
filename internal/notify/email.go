package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"hostelmon/internal/complaint"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ResendBaseURL is the Resend REST endpoint.
const ResendBaseURL = "https://api.resend.com"

// Email mails new complaints to their route address through Resend.
type Email struct {
	client  *resty.Client
	apiKey  string
	from    string
	baseURL string // public server URL used in resolve links
	debug   bool
	log     *zap.Logger
}

// NewEmail returns an Email notifier. client must have its base URL set to
// the Resend API.
func NewEmail(client *resty.Client, apiKey, from, publicURL string, debug bool, log *zap.Logger) *Email {
	return &Email{
		client:  client,
		apiKey:  apiKey,
		from:    from,
		baseURL: strings.TrimRight(publicURL, "/"),
		debug:   debug,
		log:     log,
	}
}

func (e *Email) Name() string { return "email" }

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Notify sends complaint.created events; others are ignored.
func (e *Email) Notify(ctx context.Context, ev complaint.Event) error {
	if ev.Type != complaint.EventCreated {
		return nil
	}
	c := ev.Complaint

	req := resendRequest{
		From:    e.from,
		To:      []string{c.RouteAddress},
		Subject: Subject(c),
		Text:    e.Body(c),
	}

	if e.debug {
		e.log.Info("DEBUG MODE: skipping email",
			zap.String("to", c.RouteAddress),
			zap.String("subject", req.Subject))
		return nil
	}

	var (
		out    resendResponse
		failed resendError
	)
	resp, err := e.client.R().
		SetContext(ctx).
		SetAuthToken(e.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		SetError(&failed).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("resend returned %d: %s", resp.StatusCode(), failed.Message)
	}

	e.log.Info("Email sent",
		zap.String("to", c.RouteAddress),
		zap.String("complaint", c.ShortID()),
		zap.String("email_id", out.ID))
	return nil
}

// Subject is "[PRIORITY] New Complaint #SHORTID".
func Subject(c complaint.Complaint) string {
	return fmt.Sprintf("[%s] New Complaint #%s", c.Priority, c.ShortID())
}

// ResolveLink is the one-click resolve URL for c.
func (e *Email) ResolveLink(c complaint.Complaint) string {
	return e.baseURL + "/resolve?token=" + url.QueryEscape(c.ResolveToken)
}

// Body renders the plain-text mail body.
func (e *Email) Body(c complaint.Complaint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A new complaint has been registered.\n\n")
	fmt.Fprintf(&b, "Complaint ID: #%s\n", c.ShortID())
	fmt.Fprintf(&b, "Category:     %s\n", c.Category)
	fmt.Fprintf(&b, "Priority:     %s\n", c.Priority)
	fmt.Fprintf(&b, "Hostel:       %s\n", orUnknown(c.Facility))
	fmt.Fprintf(&b, "Room:         %s\n", orUnknown(c.SubUnit))
	fmt.Fprintf(&b, "Reported at:  %s\n", c.CreatedAt.Format("02 Jan 2006 15:04 MST"))
	fmt.Fprintf(&b, "\nComplaint:\n%s\n", c.RawText)
	fmt.Fprintf(&b, "\nMark as resolved:\n%s\n", e.ResolveLink(c))
	fmt.Fprintf(&b, "\nAdd a note by appending &note=<your note> to the link.\n")
	return b.String()
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return "Not specified"
	}
	return *s
}
