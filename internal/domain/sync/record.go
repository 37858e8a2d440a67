package sync

import (
	"fmt"
	"strconv"
	"strings"
)

// CsvRow is one parsed CSV data line, column name -> cleaned cell value.
type CsvRow map[string]string

// TableRef identifies one bitable table inside a bitable app.
type TableRef struct {
	AppToken string `validate:"required"`
	TableID  string `validate:"required"`
}

func (t TableRef) IsZero() bool {
	return t.AppToken == "" || t.TableID == ""
}

// Record is a row of a remote table as returned by the table client.
type Record struct {
	ID     string
	Fields map[string]any
}

// FieldString returns the stored value of a field rendered as a trimmed string.
func (r Record) FieldString(name string) string {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// Clone returns a copy whose field map is independent of the original.
func (r Record) Clone() Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{ID: r.ID, Fields: fields}
}

// Conflict is a detected difference between a stored student field and the
// incoming value for the same student. It is surfaced for manual review and
// never applied automatically.
type Conflict struct {
	StudentID     string `json:"student_id"`
	Nickname      string `json:"nickname,omitempty"`
	FieldName     string `json:"field_name"`
	ExistingValue any    `json:"existing_value"`
	NewValue      any    `json:"new_value"`
}

type DecisionKind int

const (
	DecisionNew DecisionKind = iota
	DecisionExisting
)

// Decision is the resolver's verdict for one mapped student record.
type Decision struct {
	Kind      DecisionKind
	RecordID  string
	Conflicts []Conflict
	// Additions are incoming fields the stored record does not have yet.
	// They are safe to write without confirmation.
	Additions map[string]any
}
