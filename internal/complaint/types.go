// Package complaint provides the complaint record, its assembly from raw
// text and its lifecycle from creation to resolution.
package complaint

import (
	"context"
	"errors"
	"strings"
	"time"

	"hostelmon/internal/classify"
)

// Status is the lifecycle state of a complaint. PENDING advances to
// RESOLVED exactly once; RESOLVED is terminal.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusResolved Status = "RESOLVED"
)

// DefaultResolutionNote is stored when a resolver gives no note.
const DefaultResolutionNote = "Issue has been resolved."

// Complaint is a persisted complaint record.
//
// ResolveToken is the only credential for the resolve transition. It is
// excluded from JSON so list endpoints and event payloads never leak it.
type Complaint struct {
	ID             string            `json:"id"`
	ReporterHandle string            `json:"reporter_handle"`
	RawText        string            `json:"raw_text"`
	Facility       *string           `json:"facility"`
	SubUnit        *string           `json:"sub_unit"`
	Category       classify.Category `json:"category"`
	Priority       classify.Priority `json:"priority"`
	Summary        string            `json:"summary"`
	RouteAddress   string            `json:"route_address"`
	Confidence     float64           `json:"confidence"`
	Status         Status            `json:"status"`
	ResolutionNote *string           `json:"resolution_note"`
	ResolveToken   string            `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
	ResolvedAt     *time.Time        `json:"resolved_at"`
}

// ShortID is the human-facing reference: the first 8 characters of the
// id, uppercased.
func (c Complaint) ShortID() string {
	id := c.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}

// IsResolved reports whether the complaint reached its terminal state.
func (c Complaint) IsResolved() bool {
	return c.Status == StatusResolved
}

// Payload is an assembled complaint before persistence: no id, no token.
type Payload struct {
	ReporterHandle string
	RawText        string
	Facility       *string
	SubUnit        *string
	Category       classify.Category
	Priority       classify.Priority
	Summary        string
	RouteAddress   string
	Confidence     float64
}

// Field names a queryable record column.
type Field string

const (
	FieldID             Field = "id"
	FieldResolveToken   Field = "resolve_token"
	FieldReporterHandle Field = "reporter_handle"
	FieldStatus         Field = "status"
	FieldCategory       Field = "category"
	FieldCreatedAt      Field = "created_at"
)

// Patch is the set of columns the resolve transition writes.
type Patch struct {
	Status         Status
	ResolvedAt     time.Time
	ResolutionNote string
}

// ErrNoMatch is returned by Store.UpdateWhere when no record matched both
// the lookup and the status precondition.
var ErrNoMatch = errors.New("no record matched the update condition")

// Store is the record store the lifecycle depends on.
//
// UpdateWhere must be atomic: it applies patch only to a record whose
// field equals value and whose status equals from, as a single
// compare-and-swap. Two concurrent resolves of the same token must not
// both succeed.
type Store interface {
	Insert(ctx context.Context, c Complaint) (Complaint, error)
	UpdateWhere(ctx context.Context, field Field, value string, from Status, patch Patch) (Complaint, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, field Field, value string) (*Complaint, error)
	FindAll(ctx context.Context, orderBy Field, desc bool) ([]Complaint, error)
}
