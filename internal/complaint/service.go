package complaint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventCreated  EventType = "complaint.created"
	EventResolved EventType = "complaint.resolved"
)

// Event is handed to a Publisher after a transition was persisted.
// Complaint carries the resolve token in memory; it is dropped whenever the
// record is serialized.
type Event struct {
	Type       EventType `json:"type"`
	Complaint  Complaint `json:"complaint"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher receives lifecycle events. Publish must not block on delivery.
type Publisher interface {
	Publish(ev Event)
}

// Replier sends a text message back to a reporter.
type Replier interface {
	Reply(ctx context.Context, to, text string) error
}

// Translator turns text into English before analysis.
type Translator interface {
	ToEnglish(ctx context.Context, text string) (string, error)
}

// FallbackAck is sent when the complaint could not be stored.
const FallbackAck = "Complaint received! Our team will look into it shortly."

// Service ties assembly, the lifecycle and the outbound side together.
// Publisher, Replier, Translator and RemoteClassifier are optional.
type Service struct {
	manager   *Manager
	assembler *Assembler
	log       *zap.Logger

	publisher  Publisher
	replier    Replier
	translator Translator
	remote     RemoteClassifier
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPublisher sets the lifecycle event sink.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithReplier sets the channel used to acknowledge reporters.
func WithReplier(r Replier) ServiceOption {
	return func(s *Service) { s.replier = r }
}

// WithTranslator enables the translation pre-pass.
func WithTranslator(t Translator) ServiceOption {
	return func(s *Service) { s.translator = t }
}

// WithRemoteClassifier switches assembly to the remote path.
func WithRemoteClassifier(rc RemoteClassifier) ServiceOption {
	return func(s *Service) { s.remote = rc }
}

// NewService builds a Service.
func NewService(m *Manager, a *Assembler, log *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{manager: m, assembler: a, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Manager exposes the underlying lifecycle manager for read paths.
func (s *Service) Manager() *Manager {
	return s.manager
}

// Intake handles one inbound message from sender. The sender is always
// acknowledged when a Replier is configured, even when persistence fails.
// Blank text is ignored and returns nil, nil.
func (s *Service) Intake(ctx context.Context, sender, text string) (*Complaint, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	p := s.assemble(ctx, sender, text)

	c, err := s.manager.Create(ctx, p)
	if err != nil {
		s.log.Error("Failed to store complaint",
			zap.String("sender", sender),
			zap.Error(err))
		s.reply(ctx, sender, FallbackAck)
		return nil, err
	}

	s.log.Info("Complaint created",
		zap.String("id", c.ID),
		zap.String("category", string(c.Category)),
		zap.String("priority", string(c.Priority)),
		zap.Float64("confidence", c.Confidence))

	s.reply(ctx, sender, Acknowledgement(*c))
	s.publish(EventCreated, *c)
	return c, nil
}

// Resolve runs the resolve transition and publishes complaint.resolved
// only when this call performed it.
func (s *Service) Resolve(ctx context.Context, token, note string) (Resolution, error) {
	res, err := s.manager.Resolve(ctx, token, note)
	if err != nil {
		s.log.Error("Failed to resolve complaint", zap.Error(err))
		return res, err
	}

	switch res.Outcome {
	case OutcomeResolved:
		s.log.Info("Complaint resolved", zap.String("id", res.Complaint.ID))
		s.publish(EventResolved, *res.Complaint)
	case OutcomeAlreadyResolved:
		s.log.Debug("Complaint already resolved", zap.String("id", res.Complaint.ID))
	case OutcomeNotFound:
		s.log.Debug("Resolve token not found")
	}
	return res, nil
}

func (s *Service) assemble(ctx context.Context, sender, text string) Payload {
	analysed := text
	if s.translator != nil {
		translated, err := s.translator.ToEnglish(ctx, text)
		if err != nil {
			s.log.Warn("Translation failed, using original text", zap.Error(err))
		} else if translated != "" {
			analysed = translated
		}
	}

	var p Payload
	if s.remote != nil {
		var err error
		p, err = s.assembler.AssembleRemote(ctx, analysed, sender, s.remote)
		if err != nil {
			s.log.Warn("Remote classifier failed, using fallback payload", zap.Error(err))
		}
	} else {
		p = s.assembler.Assemble(analysed, sender)
	}
	p.RawText = text
	return p
}

func (s *Service) reply(ctx context.Context, to, text string) {
	if s.replier == nil {
		return
	}
	if err := s.replier.Reply(ctx, to, text); err != nil {
		s.log.Warn("Failed to acknowledge sender", zap.String("to", to), zap.Error(err))
	}
}

func (s *Service) publish(t EventType, c Complaint) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(Event{Type: t, Complaint: c, OccurredAt: time.Now().UTC()})
}

// Acknowledgement is the reply sent to a reporter after a complaint was
// stored.
func Acknowledgement(c Complaint) string {
	return fmt.Sprintf(
		"Complaint Received!\n\nID: #%s\nCategory: %s\nPriority: %s\nAssigned to: %s\n\n"+
			"You will be notified once it is resolved. Thank you!",
		c.ShortID(), c.Category, c.Priority, c.RouteAddress)
}

// ResolvedNotice is the message sent to a reporter once resolved.
func ResolvedNotice(c Complaint) string {
	note := DefaultResolutionNote
	if c.ResolutionNote != nil && *c.ResolutionNote != "" {
		note = *c.ResolutionNote
	}
	issue := c.Summary
	if issue == "" {
		issue = string(c.Category)
	}
	return fmt.Sprintf(
		"Great news!\n\nYour complaint #%s has been resolved.\n\nIssue: %s\nResolved by: %s\nNote: %s\n\n"+
			"Thank you for reporting. Hostel Management",
		c.ShortID(), issue, c.RouteAddress, note)
}
