package sync

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nvclab/student-sync/internal/config"
	domain "github.com/nvclab/student-sync/internal/domain/sync"
)

const (
	minAge = 1
	maxAge = 120

	minPhoneDigits = 7
	maxPhoneDigits = 15
)

var learningDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

// MappedRow is the outcome of mapping one CSV row: the fields destined for
// the student table, the fields destined for the learning-record table, and
// any non-fatal mapping warnings.
type MappedRow struct {
	StudentID      string
	Nickname       string
	StudentFields  map[string]any
	LearningFields map[string]any
	Warnings       []string
}

// FieldMapper is a pure transform from a CSV row to the two per-table field
// sets, driven by the statically configured rule table.
type FieldMapper struct {
	rules          map[string]config.FieldRule
	studentIDField string
	nicknameField  string
	logger         *slog.Logger
}

func NewFieldMapper(cfg *config.Config, logger *slog.Logger) *FieldMapper {
	rules := make(map[string]config.FieldRule, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		rules[rule.Source] = rule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FieldMapper{
		rules:          rules,
		studentIDField: cfg.StudentIDField,
		nicknameField:  cfg.NicknameField,
		logger:         logger,
	}
}

// MapRow applies the configured rules to one row. Columns without a rule are
// dropped. A missing student id or nickname fails the row with ErrValidation
// naming the column; a bad age only drops the field and records a warning.
func (m *FieldMapper) MapRow(row domain.CsvRow) (MappedRow, error) {
	mapped := MappedRow{
		StudentFields:  map[string]any{},
		LearningFields: map[string]any{},
	}

	for column, raw := range row {
		value := strings.TrimSpace(raw)
		if value == "" || isNullToken(value) {
			continue
		}

		rule, ok := m.rules[column]
		if !ok {
			m.logger.Debug("dropping unmapped column", "column", column)
			continue
		}

		coerced, warning, err := coerce(rule, value)
		if err != nil {
			mapped.Warnings = append(mapped.Warnings, fmt.Sprintf("%s: %v", column, err))
			continue
		}
		if warning != "" {
			mapped.Warnings = append(mapped.Warnings, fmt.Sprintf("%s: %s", column, warning))
		}

		if rule.Table == config.TableLearning {
			mapped.LearningFields[rule.Dest] = coerced
		} else {
			mapped.StudentFields[rule.Dest] = coerced
		}
	}

	id, _ := mapped.StudentFields[m.studentIDField].(string)
	if id == "" {
		return MappedRow{}, fmt.Errorf("%w: missing required column %q", ErrValidation, m.studentIDField)
	}
	nickname, _ := mapped.StudentFields[m.nicknameField].(string)
	if nickname == "" {
		return MappedRow{}, fmt.Errorf("%w: missing required column %q", ErrValidation, m.nicknameField)
	}

	mapped.StudentID = id
	mapped.Nickname = nickname
	return mapped, nil
}

func coerce(rule config.FieldRule, value string) (any, string, error) {
	switch rule.Coerce {
	case config.CoercePhone:
		return coercePhone(value)
	case config.CoerceInteger:
		return coerceAge(value)
	case config.CoerceDate:
		return coerceDate(value)
	default:
		return value, "", nil
	}
}

// coercePhone normalizes a phone cell to a digit-only string. Spreadsheet
// exports frequently render numeric phones as floats with a trailing ".0".
func coercePhone(value string) (any, string, error) {
	value = strings.TrimSuffix(value, ".0")

	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil, "", fmt.Errorf("phone has no digits: %q", value)
	}

	phone := digits.String()
	if len(phone) < minPhoneDigits || len(phone) > maxPhoneDigits {
		return phone, fmt.Sprintf("unusual phone length %d", len(phone)), nil
	}
	return phone, "", nil
}

func coerceAge(value string) (any, string, error) {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, "", fmt.Errorf("not a number: %q", value)
	}
	age := int(parsed)
	if age < minAge || age > maxAge {
		return nil, "", fmt.Errorf("age out of range: %d", age)
	}
	return age, "", nil
}

// coerceDate converts a date cell to the millisecond timestamp the remote
// date field type expects.
func coerceDate(value string) (any, string, error) {
	ms, err := DateMillis(value)
	if err != nil {
		return nil, "", err
	}
	return ms, "", nil
}

// DateMillis parses the date spellings the exports use and returns a
// millisecond unix timestamp.
func DateMillis(value string) (int64, error) {
	for _, layout := range learningDateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized date format: %q", value)
}

func isNullToken(value string) bool {
	switch strings.ToLower(value) {
	case "nan", "null", "none":
		return true
	}
	return false
}
