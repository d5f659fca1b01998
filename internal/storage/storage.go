// Package storage provides the complaint record stores.
//
// Backends:
//   - Memory: in-memory maps, optionally persisted to a CSV file
//   - Postgres: lib/pq, conditional UPDATE ... RETURNING
//   - Redis: go-redis, WATCH/MULTI compare-and-swap
//
// Every backend implements complaint.Store. The resolve transition is a
// compare-and-swap on status in all of them.
package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"hostelmon/internal/classify"
	"hostelmon/internal/complaint"

	"go.uber.org/zap"
)

// bufferSize for buffered CSV writes (64KB).
const bufferSize = 64 * 1024

// ErrDuplicate is returned by Insert when the id or token is taken.
var ErrDuplicate = errors.New("complaint id or token already exists")

// csvHeader is the column order of the CSV file.
var csvHeader = []string{
	"id", "reporter_handle", "raw_text", "facility", "sub_unit",
	"category", "priority", "summary", "route_address", "confidence",
	"status", "resolution_note", "resolve_token", "created_at", "resolved_at",
}

// Memory is a thread-safe complaint store.
//
// Data flow:
//
//	Read:   CSV → load into maps → serve from maps
//	Insert: update maps → append row to CSV
//	Update: update maps → rewrite entire CSV
//
// With an empty path nothing touches disk.
type Memory struct {
	mu      sync.RWMutex
	path    string
	log     *zap.Logger
	records map[string]*complaint.Complaint // id → record
	byToken map[string]string               // token → id
}

// NewMemory returns a store that lives only in memory.
func NewMemory() *Memory {
	return &Memory{
		log:     zap.NewNop(),
		records: make(map[string]*complaint.Complaint),
		byToken: make(map[string]string),
	}
}

// OpenCSV returns a Memory store backed by the CSV file at path, loading
// any records already in it. A missing file is created on first insert.
func OpenCSV(path string, log *zap.Logger) (*Memory, error) {
	m := NewMemory()
	m.path = path
	m.log = log
	if err := m.loadFromFile(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Memory) loadFromFile() error {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.log.Info("No existing complaint file found, starting empty", zap.String("path", m.path))
			return nil
		}
		return fmt.Errorf("open complaint file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("read complaint file: %w", err)
	}

	count := 0
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == csvHeader[0] {
			continue
		}
		c, err := decodeRow(row)
		if err != nil {
			m.log.Warn("Skipping malformed complaint row", zap.Int("line", i+1), zap.Error(err))
			continue
		}
		m.records[c.ID] = &c
		m.byToken[c.ResolveToken] = c.ID
		count++
	}

	m.log.Info("Loaded complaints from storage", zap.Int("count", count), zap.String("path", m.path))
	return nil
}

// Insert stores c. Ids and tokens must be unique.
func (m *Memory) Insert(_ context.Context, c complaint.Complaint) (complaint.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[c.ID]; ok {
		return complaint.Complaint{}, ErrDuplicate
	}
	if _, ok := m.byToken[c.ResolveToken]; ok {
		return complaint.Complaint{}, ErrDuplicate
	}

	if m.path != "" {
		if err := m.appendToFile(c); err != nil {
			return complaint.Complaint{}, err
		}
	}

	stored := c
	m.records[c.ID] = &stored
	m.byToken[c.ResolveToken] = c.ID
	return c, nil
}

// UpdateWhere applies patch to the record whose field equals value, only if
// its status is from. The check and the write happen under one lock.
func (m *Memory) UpdateWhere(_ context.Context, field complaint.Field, value string, from complaint.Status, patch complaint.Patch) (complaint.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.lookup(field, value)
	if c == nil || c.Status != from {
		return complaint.Complaint{}, complaint.ErrNoMatch
	}

	previous := *c
	applyPatch(c, patch)

	if m.path != "" {
		if err := m.rewriteFile(); err != nil {
			*c = previous
			return complaint.Complaint{}, err
		}
	}
	return *c, nil
}

// FindOne returns a copy of the first record whose field equals value.
func (m *Memory) FindOne(_ context.Context, field complaint.Field, value string) (*complaint.Complaint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.lookup(field, value)
	if c == nil {
		return nil, nil
	}
	found := *c
	return &found, nil
}

// FindAll returns every record ordered by orderBy.
func (m *Memory) FindAll(_ context.Context, orderBy complaint.Field, desc bool) ([]complaint.Complaint, error) {
	m.mu.RLock()
	all := make([]complaint.Complaint, 0, len(m.records))
	for _, c := range m.records {
		all = append(all, *c)
	}
	m.mu.RUnlock()

	sortComplaints(all, orderBy, desc)
	return all, nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// lookup must be called with the lock held.
func (m *Memory) lookup(field complaint.Field, value string) *complaint.Complaint {
	switch field {
	case complaint.FieldID:
		return m.records[value]
	case complaint.FieldResolveToken:
		if id, ok := m.byToken[value]; ok {
			return m.records[id]
		}
		return nil
	}

	// Other columns: scan in creation order so the result is stable.
	var match *complaint.Complaint
	for _, c := range m.records {
		if fieldValue(*c, field) != value {
			continue
		}
		if match == nil || c.CreatedAt.Before(match.CreatedAt) {
			match = c
		}
	}
	return match
}

func (m *Memory) appendToFile(c complaint.Complaint) error {
	writeHeader := false
	if info, err := os.Stat(m.path); err != nil || info.Size() == 0 {
		writeHeader = true
	}

	file, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	buffered := bufio.NewWriterSize(file, bufferSize)
	writer := csv.NewWriter(buffered)
	if writeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return err
		}
	}
	if err := writer.Write(encodeRow(c)); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buffered.Flush()
}

// rewriteFile replaces the CSV file with the current records, writing to a
// temp file first and renaming it into place.
func (m *Memory) rewriteFile() error {
	all := make([]complaint.Complaint, 0, len(m.records))
	for _, c := range m.records {
		all = append(all, *c)
	}
	sortComplaints(all, complaint.FieldCreatedAt, false)

	tmp := m.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	buffered := bufio.NewWriterSize(file, bufferSize)
	writer := csv.NewWriter(buffered)
	if err := writer.Write(csvHeader); err != nil {
		file.Close()
		return err
	}
	for _, c := range all {
		if err := writer.Write(encodeRow(c)); err != nil {
			file.Close()
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return err
	}
	if err := buffered.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

func applyPatch(c *complaint.Complaint, patch complaint.Patch) {
	resolvedAt := patch.ResolvedAt
	note := patch.ResolutionNote
	c.Status = patch.Status
	c.ResolvedAt = &resolvedAt
	c.ResolutionNote = &note
}

func encodeRow(c complaint.Complaint) []string {
	resolvedAt := ""
	if c.ResolvedAt != nil {
		resolvedAt = c.ResolvedAt.Format(time.RFC3339Nano)
	}
	return []string{
		c.ID,
		c.ReporterHandle,
		c.RawText,
		deref(c.Facility),
		deref(c.SubUnit),
		string(c.Category),
		string(c.Priority),
		c.Summary,
		c.RouteAddress,
		strconv.FormatFloat(c.Confidence, 'f', -1, 64),
		string(c.Status),
		deref(c.ResolutionNote),
		c.ResolveToken,
		c.CreatedAt.Format(time.RFC3339Nano),
		resolvedAt,
	}
}

func decodeRow(row []string) (complaint.Complaint, error) {
	if len(row) != len(csvHeader) {
		return complaint.Complaint{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}

	confidence, err := strconv.ParseFloat(row[9], 64)
	if err != nil {
		return complaint.Complaint{}, fmt.Errorf("confidence: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, row[13])
	if err != nil {
		return complaint.Complaint{}, fmt.Errorf("created_at: %w", err)
	}

	c := complaint.Complaint{
		ID:             row[0],
		ReporterHandle: row[1],
		RawText:        row[2],
		Facility:       ref(row[3]),
		SubUnit:        ref(row[4]),
		Category:       classify.ParseCategory(row[5]),
		Priority:       classify.ParsePriority(row[6]),
		Summary:        row[7],
		RouteAddress:   row[8],
		Confidence:     confidence,
		Status:         complaint.Status(row[10]),
		ResolutionNote: ref(row[11]),
		ResolveToken:   row[12],
		CreatedAt:      createdAt,
	}
	if row[14] != "" {
		resolvedAt, err := time.Parse(time.RFC3339Nano, row[14])
		if err != nil {
			return complaint.Complaint{}, fmt.Errorf("resolved_at: %w", err)
		}
		c.ResolvedAt = &resolvedAt
	}
	if c.ID == "" || c.ResolveToken == "" {
		return complaint.Complaint{}, errors.New("missing id or token")
	}
	return c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
