package sync_test

import (
	"testing"

	app "github.com/nvclab/student-sync/internal/application/sync"
	domain "github.com/nvclab/student-sync/internal/domain/sync"
)

func TestResolveNewStudent(t *testing.T) {
	t.Parallel()

	mapped := app.MappedRow{
		StudentID:     "u1",
		Nickname:      "Alice",
		StudentFields: map[string]any{"用户ID": "u1", "昵称": "Alice"},
	}

	decision := app.Resolve(mapped, nil)
	if decision.Kind != domain.DecisionNew {
		t.Fatalf("expected NEW decision, got %v", decision.Kind)
	}
}

func TestResolveConflictOnChangedField(t *testing.T) {
	t.Parallel()

	stored := &domain.Record{ID: "rec1", Fields: map[string]any{
		"用户ID": "u1",
		"昵称":   "Alice",
		"手机号":  "12345678",
	}}
	mapped := app.MappedRow{
		StudentID: "u1",
		Nickname:  "Alice",
		StudentFields: map[string]any{
			"用户ID": "u1",
			"昵称":   "Alice",
			"手机号":  "67890123",
		},
	}

	decision := app.Resolve(mapped, stored)
	if decision.Kind != domain.DecisionExisting {
		t.Fatalf("expected EXISTING decision, got %v", decision.Kind)
	}
	if decision.RecordID != "rec1" {
		t.Fatalf("expected record id rec1, got %q", decision.RecordID)
	}
	if len(decision.Conflicts) != 1 {
		t.Fatalf("expected exactly one conflict, got %v", decision.Conflicts)
	}
	conflict := decision.Conflicts[0]
	if conflict.FieldName != "手机号" {
		t.Fatalf("expected conflict on 手机号, got %q", conflict.FieldName)
	}
	if conflict.ExistingValue != "12345678" || conflict.NewValue != "67890123" {
		t.Fatalf("conflict carries wrong values: %+v", conflict)
	}
	if len(decision.Additions) != 0 {
		t.Fatalf("expected no additions, got %v", decision.Additions)
	}
}

func TestResolveAdditionForEmptyStoredField(t *testing.T) {
	t.Parallel()

	stored := &domain.Record{ID: "rec1", Fields: map[string]any{
		"用户ID": "u1",
		"昵称":   "Alice",
		"城市":   "",
	}}
	mapped := app.MappedRow{
		StudentID: "u1",
		Nickname:  "Alice",
		StudentFields: map[string]any{
			"用户ID": "u1",
			"昵称":   "Alice",
			"城市":   "上海",
			"性别":   "女",
		},
	}

	decision := app.Resolve(mapped, stored)
	if len(decision.Conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %v", decision.Conflicts)
	}
	if len(decision.Additions) != 2 {
		t.Fatalf("expected 2 additions, got %v", decision.Additions)
	}
	if decision.Additions["城市"] != "上海" || decision.Additions["性别"] != "女" {
		t.Fatalf("unexpected additions: %v", decision.Additions)
	}
}

func TestResolveNumericValuesCompareEqual(t *testing.T) {
	t.Parallel()

	stored := &domain.Record{ID: "rec1", Fields: map[string]any{
		"用户ID": "u1",
		"年龄":   float64(25),
	}}
	mapped := app.MappedRow{
		StudentID: "u1",
		Nickname:  "Alice",
		StudentFields: map[string]any{
			"用户ID": "u1",
			"年龄":   25,
		},
	}

	decision := app.Resolve(mapped, stored)
	if len(decision.Conflicts) != 0 {
		t.Fatalf("stored 25.0 must not conflict with incoming 25: %v", decision.Conflicts)
	}
}

func TestResolveIgnoresWhitespaceDifferences(t *testing.T) {
	t.Parallel()

	stored := &domain.Record{ID: "rec1", Fields: map[string]any{"昵称": " Alice "}}
	mapped := app.MappedRow{
		StudentID:     "u1",
		Nickname:      "Alice",
		StudentFields: map[string]any{"昵称": "Alice"},
	}

	decision := app.Resolve(mapped, stored)
	if len(decision.Conflicts) != 0 {
		t.Fatalf("whitespace-only difference is not a conflict: %v", decision.Conflicts)
	}
}
