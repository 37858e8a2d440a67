package sync

import (
	"fmt"
	"strconv"
	"strings"

	domain "github.com/nvclab/student-sync/internal/domain/sync"
)

// Resolve decides NEW versus EXISTING for one mapped student record. The
// stored record, when present, comes from the pass-local cache: the resolver
// itself never queries the remote table.
//
// For an existing student every incoming field is compared against the
// stored value: both sides non-empty and different is a conflict, stored
// side empty or missing is an addition that may be written without
// confirmation. Lookup is by exact student id, no fuzzy matching.
func Resolve(mapped MappedRow, stored *domain.Record) domain.Decision {
	if stored == nil {
		return domain.Decision{Kind: domain.DecisionNew}
	}

	decision := domain.Decision{
		Kind:      domain.DecisionExisting,
		RecordID:  stored.ID,
		Additions: map[string]any{},
	}

	for field, newValue := range mapped.StudentFields {
		existing := stored.FieldString(field)
		if existing == "" {
			decision.Additions[field] = newValue
			continue
		}
		if !valuesEqual(existing, newValue) {
			decision.Conflicts = append(decision.Conflicts, domain.Conflict{
				StudentID:     mapped.StudentID,
				Nickname:      mapped.Nickname,
				FieldName:     field,
				ExistingValue: stored.Fields[field],
				NewValue:      newValue,
			})
		}
	}

	return decision
}

// valuesEqual compares a stored value (already rendered as a string) with an
// incoming mapped value. Numeric values are compared numerically so that a
// stored 25 does not conflict with an incoming "25".
func valuesEqual(existing string, incoming any) bool {
	incomingStr := renderValue(incoming)
	if strings.TrimSpace(existing) == strings.TrimSpace(incomingStr) {
		return true
	}

	ev, err1 := strconv.ParseFloat(strings.TrimSpace(existing), 64)
	nv, err2 := strconv.ParseFloat(strings.TrimSpace(incomingStr), 64)
	return err1 == nil && err2 == nil && ev == nv
}

func renderValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}
