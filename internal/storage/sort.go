package storage

import (
	"sort"

	"hostelmon/internal/complaint"
)

// fieldValue returns the string form of a queryable column.
func fieldValue(c complaint.Complaint, f complaint.Field) string {
	switch f {
	case complaint.FieldID:
		return c.ID
	case complaint.FieldResolveToken:
		return c.ResolveToken
	case complaint.FieldReporterHandle:
		return c.ReporterHandle
	case complaint.FieldStatus:
		return string(c.Status)
	case complaint.FieldCategory:
		return string(c.Category)
	default:
		return ""
	}
}

// sortComplaints orders cs by field. Ties keep creation order, then id.
func sortComplaints(cs []complaint.Complaint, field complaint.Field, desc bool) {
	less := func(a, b complaint.Complaint) bool {
		if field != complaint.FieldCreatedAt {
			av, bv := fieldValue(a, field), fieldValue(b, field)
			if av != bv {
				return av < bv
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	}

	sort.SliceStable(cs, func(i, j int) bool {
		if desc {
			return less(cs[j], cs[i])
		}
		return less(cs[i], cs[j])
	})
}
