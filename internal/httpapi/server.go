// Package httpapi exposes the HTTP surface: the WhatsApp webhook, the
// one-click resolve link, the complaint list, the pending summary image and
// health.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hostelmon/internal/complaint"
	"hostelmon/internal/health"
	"hostelmon/internal/whatsapp"

	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// Response texts for GET /resolve.
const (
	MsgRunning         = "Hostel Complaint System is running!"
	MsgInvalidLink     = "Invalid link."
	MsgNotFound        = "Complaint not found."
	MsgAlreadyResolved = "Already resolved."
	MsgFailed          = "Something went wrong."
)

// SummarySource renders the pending complaints image.
type SummarySource interface {
	PendingPNG(ctx context.Context) ([]byte, error)
}

// Server holds the handler dependencies. Replier, Summary and Monitor are
// optional.
type Server struct {
	Service     *complaint.Service
	Replier     complaint.Replier
	Summary     SummarySource
	Monitor     *health.Monitor
	VerifyToken string
	Log         *zap.Logger
}

// Routes returns the request multiplexer.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /webhook", s.handleVerify)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /resolve", s.handleResolve)
	mux.HandleFunc("GET /complaints", s.handleList)
	mux.HandleFunc("GET /complaints/summary.png", s.handleSummary)
	if s.Monitor != nil {
		mux.HandleFunc("GET /health", s.Monitor.Handler())
	}
	return mux
}

// NewHTTPServer wraps handler with conservative timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, MsgRunning)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := whatsapp.Verify(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), s.VerifyToken)
	if !ok {
		s.Log.Warn("Webhook verification failed", zap.String("mode", q.Get("hub.mode")))
		writeText(w, http.StatusForbidden, "Verification failed")
		return
	}
	s.Log.Info("Webhook verified")
	writeText(w, http.StatusOK, challenge)
}

// handleWebhook always answers 200 so Meta does not redeliver; failures
// are logged and the sender gets the fallback acknowledgement.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.Log.Warn("Failed to read webhook body", zap.Error(err))
		writeText(w, http.StatusOK, "ok")
		return
	}

	msgs, err := whatsapp.ParseWebhook(body)
	if err != nil {
		s.Log.Warn("Malformed webhook payload", zap.Error(err))
		writeText(w, http.StatusOK, "ok")
		return
	}

	for _, m := range msgs {
		s.handleMessage(r.Context(), m)
	}
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) handleMessage(ctx context.Context, m whatsapp.Message) {
	if !m.IsText() {
		s.Log.Info("Non-text message received", zap.String("from", m.From), zap.String("type", m.Type))
		if s.Replier != nil {
			if err := s.Replier.Reply(ctx, m.From, whatsapp.NonTextReply); err != nil {
				s.Log.Warn("Failed to reply to non-text message", zap.Error(err))
			}
		}
		s.recordIntake(false, nil)
		return
	}

	c, err := s.Service.Intake(ctx, m.From, m.Body())
	s.recordIntake(c != nil, err)
}

func (s *Server) recordIntake(created bool, err error) {
	if s.Monitor != nil {
		s.Monitor.RecordIntake(created, err)
	}
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeText(w, http.StatusBadRequest, MsgInvalidLink)
		return
	}

	res, err := s.Service.Resolve(r.Context(), token, r.URL.Query().Get("note"))
	if err != nil {
		writeText(w, http.StatusInternalServerError, MsgFailed)
		return
	}

	switch res.Outcome {
	case complaint.OutcomeNotFound:
		writeText(w, http.StatusNotFound, MsgNotFound)
	case complaint.OutcomeAlreadyResolved:
		writeText(w, http.StatusOK, MsgAlreadyResolved)
	default:
		writeText(w, http.StatusOK, ResolvedPage(*res.Complaint))
	}
}

// ResolvedPage is the confirmation shown after a resolve link was used.
func ResolvedPage(c complaint.Complaint) string {
	return fmt.Sprintf("Complaint #%s marked as resolved.\nCategory: %s\nThe reporter has been notified.",
		c.ShortID(), c.Category)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	cs, err := s.Service.Manager().List(r.Context())
	if err != nil {
		s.Log.Error("Failed to list complaints", zap.Error(err))
		writeText(w, http.StatusInternalServerError, MsgFailed)
		return
	}
	if cs == nil {
		cs = []complaint.Complaint{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(cs)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.Summary == nil {
		writeText(w, http.StatusNotFound, "Summary not available.")
		return
	}

	png, err := s.Summary.PendingPNG(r.Context())
	if err != nil {
		s.Log.Error("Failed to render summary", zap.Error(err))
		writeText(w, http.StatusInternalServerError, MsgFailed)
		return
	}
	if len(png) == 0 {
		writeText(w, http.StatusNotFound, "No pending complaints.")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, text)
}
