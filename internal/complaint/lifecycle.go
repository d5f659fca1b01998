package complaint

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	apperrors "hostelmon/internal/errors"
)

// Outcome is the result tag of a resolve attempt. NotFound and
// AlreadyResolved are expected results, not errors.
type Outcome int

const (
	OutcomeResolved Outcome = iota
	OutcomeNotFound
	OutcomeAlreadyResolved
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeAlreadyResolved:
		return "already_resolved"
	default:
		return "unknown"
	}
}

// Resolution is returned by Manager.Resolve. Complaint is nil only for
// OutcomeNotFound.
type Resolution struct {
	Outcome   Outcome
	Complaint *Complaint
}

// Manager owns the complaint state transitions. It is safe for concurrent
// use as long as the Store is; atomicity of resolve is delegated to
// Store.UpdateWhere.
type Manager struct {
	store Store
	now   func() time.Time
	newID func() string
	token func() (string, error)
}

// NewManager returns a Manager persisting to store.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: NewID,
		token: NewResolveToken,
	}
}

// WithClock replaces the time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create persists a new PENDING complaint built from p.
func (m *Manager) Create(ctx context.Context, p Payload) (*Complaint, error) {
	token, err := m.token()
	if err != nil {
		return nil, apperrors.NewPersistenceError("create", err)
	}

	c := Complaint{
		ID:             m.newID(),
		ReporterHandle: p.ReporterHandle,
		RawText:        p.RawText,
		Facility:       p.Facility,
		SubUnit:        p.SubUnit,
		Category:       p.Category,
		Priority:       p.Priority,
		Summary:        p.Summary,
		RouteAddress:   p.RouteAddress,
		Confidence:     p.Confidence,
		Status:         StatusPending,
		ResolveToken:   token,
		CreatedAt:      m.now(),
	}

	saved, err := m.store.Insert(ctx, c)
	if err != nil {
		return nil, apperrors.NewPersistenceError("create", err)
	}
	return &saved, nil
}

// Resolve moves the complaint holding token to RESOLVED. An empty note is
// replaced by DefaultResolutionNote. Resolving twice returns
// OutcomeAlreadyResolved with the record from the first call.
func (m *Manager) Resolve(ctx context.Context, token, note string) (Resolution, error) {
	if token == "" {
		return Resolution{Outcome: OutcomeNotFound}, nil
	}

	existing, err := m.store.FindOne(ctx, FieldResolveToken, token)
	if err != nil {
		return Resolution{}, apperrors.NewPersistenceError("resolve", err)
	}
	if existing == nil {
		return Resolution{Outcome: OutcomeNotFound}, nil
	}
	if existing.IsResolved() {
		return Resolution{Outcome: OutcomeAlreadyResolved, Complaint: existing}, nil
	}

	note = strings.TrimSpace(note)
	if note == "" {
		note = DefaultResolutionNote
	}

	updated, err := m.store.UpdateWhere(ctx, FieldResolveToken, token, StatusPending, Patch{
		Status:         StatusResolved,
		ResolvedAt:     m.now(),
		ResolutionNote: note,
	})
	if stderrors.Is(err, ErrNoMatch) {
		// Another resolver won the swap between our read and write.
		current, ferr := m.store.FindOne(ctx, FieldResolveToken, token)
		if ferr != nil {
			return Resolution{}, apperrors.NewPersistenceError("resolve", ferr)
		}
		if current == nil {
			return Resolution{Outcome: OutcomeNotFound}, nil
		}
		return Resolution{Outcome: OutcomeAlreadyResolved, Complaint: current}, nil
	}
	if err != nil {
		return Resolution{}, apperrors.NewPersistenceError("resolve", err)
	}
	return Resolution{Outcome: OutcomeResolved, Complaint: &updated}, nil
}

// FindByToken is a read-only lookup. It returns nil, nil when no complaint
// holds token.
func (m *Manager) FindByToken(ctx context.Context, token string) (*Complaint, error) {
	if token == "" {
		return nil, nil
	}
	c, err := m.store.FindOne(ctx, FieldResolveToken, token)
	if err != nil {
		return nil, apperrors.NewPersistenceError("find", err)
	}
	return c, nil
}

// FindByID looks a complaint up by id.
func (m *Manager) FindByID(ctx context.Context, id string) (*Complaint, error) {
	c, err := m.store.FindOne(ctx, FieldID, id)
	if err != nil {
		return nil, apperrors.NewPersistenceError("find", err)
	}
	return c, nil
}

// List returns all complaints, newest first.
func (m *Manager) List(ctx context.Context) ([]Complaint, error) {
	all, err := m.store.FindAll(ctx, FieldCreatedAt, true)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list", err)
	}
	return all, nil
}

// Pending returns the PENDING complaints, newest first.
func (m *Manager) Pending(ctx context.Context) ([]Complaint, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]Complaint, 0, len(all))
	for _, c := range all {
		if !c.IsResolved() {
			pending = append(pending, c)
		}
	}
	return pending, nil
}
