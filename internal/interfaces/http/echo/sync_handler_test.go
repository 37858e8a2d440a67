package echo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	app "github.com/nvclab/student-sync/internal/application/sync"
	domain "github.com/nvclab/student-sync/internal/domain/sync"
	"github.com/nvclab/student-sync/internal/infrastructure/db/models"
)

type fakeService struct {
	result   *domain.SyncResult
	err      error
	applied  *domain.ConflictUpdateResult
	applyErr error
	running  bool

	gotRows      []domain.CsvRow
	gotCourse    string
	gotDate      string
	gotConflicts []domain.Conflict
}

func (f *fakeService) Run(ctx context.Context, rows []domain.CsvRow, courseName, learningDate string) (*domain.SyncResult, error) {
	f.gotRows = rows
	f.gotCourse = courseName
	f.gotDate = learningDate
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeService) ApplyConflicts(ctx context.Context, selected []domain.Conflict) (*domain.ConflictUpdateResult, error) {
	f.gotConflicts = selected
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	return f.applied, nil
}

func (f *fakeService) Running() bool { return f.running }

type fakeHistory struct {
	passes   []models.SyncPass
	err      error
	gotLimit int
}

func (f *fakeHistory) Recent(ctx context.Context, limit int) ([]models.SyncPass, error) {
	f.gotLimit = limit
	return f.passes, f.err
}

func sessionWithRows() *UploadSession {
	session := NewUploadSession()
	session.Set(
		[]domain.CsvRow{{"用户ID": "u1", "昵称": "Alice"}},
		[]string{"用户ID", "昵称"},
		"用户ID|昵称",
		"students.csv",
	)
	return session
}

func doJSON(t *testing.T, handler echo.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestSyncWithoutUpload(t *testing.T) {
	handler := NewSyncHandler(&fakeService{}, NewUploadSession(), &fakeHistory{})

	rec := doJSON(t, handler.Sync, http.MethodPost, "/api/v1/sync", `{}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != "no_upload" {
		t.Fatalf("expected no_upload error, got %+v", resp.Error)
	}
}

func TestSyncSuccess(t *testing.T) {
	result := domain.NewSyncResult("pass-1")
	result.TotalRecords = 1
	result.ProcessedRecords = 1
	result.Finish()
	service := &fakeService{result: result}
	handler := NewSyncHandler(service, sessionWithRows(), &fakeHistory{})

	rec := doJSON(t, handler.Sync, http.MethodPost, "/api/v1/sync",
		`{"course_name":"NVC基础课程","learning_date":"2024-01-15"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if service.gotCourse != "NVC基础课程" || service.gotDate != "2024-01-15" {
		t.Fatalf("request fields not forwarded: %q %q", service.gotCourse, service.gotDate)
	}
	if len(service.gotRows) != 1 {
		t.Fatalf("expected session rows forwarded, got %d", len(service.gotRows))
	}
	if !strings.Contains(rec.Body.String(), "pass-1") {
		t.Fatalf("result not rendered: %s", rec.Body.String())
	}
}

func TestSyncErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"in progress", app.ErrSyncInProgress, http.StatusConflict, "sync_in_progress"},
		{"not configured", app.ErrNotConfigured, http.StatusServiceUnavailable, "not_configured"},
		{"validation", app.ErrValidation, http.StatusBadRequest, "invalid_request"},
		{"remote failure", context.DeadlineExceeded, http.StatusBadGateway, "sync_failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewSyncHandler(&fakeService{err: tc.err}, sessionWithRows(), &fakeHistory{})

			rec := doJSON(t, handler.Sync, http.MethodPost, "/api/v1/sync", `{}`)

			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			resp := decodeResponse(t, rec)
			if resp.Error == nil || resp.Error.Code != tc.wantBody {
				t.Fatalf("expected error code %q, got %+v", tc.wantBody, resp.Error)
			}
		})
	}
}

func TestStatusReportsRunningAndLastResult(t *testing.T) {
	result := domain.NewSyncResult("pass-1")
	result.Finish()
	service := &fakeService{result: result, running: true}
	handler := NewSyncHandler(service, sessionWithRows(), &fakeHistory{})

	// seed lastResult through a successful sync
	if rec := doJSON(t, handler.Sync, http.MethodPost, "/api/v1/sync", `{}`); rec.Code != http.StatusOK {
		t.Fatalf("seed sync failed: %d", rec.Code)
	}

	rec := doJSON(t, handler.Status, http.MethodGet, "/api/v1/sync/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `"running":true`) {
		t.Fatalf("running flag missing: %s", body)
	}
	if !strings.Contains(body, "pass-1") {
		t.Fatalf("last result missing: %s", body)
	}
	if !strings.Contains(body, "students.csv") {
		t.Fatalf("upload info missing: %s", body)
	}
}

func TestPassesListsJournal(t *testing.T) {
	history := &fakeHistory{passes: []models.SyncPass{
		{ID: "pass-2", TotalRecords: 5},
		{ID: "pass-1", TotalRecords: 3},
	}}
	handler := NewSyncHandler(&fakeService{}, NewUploadSession(), history)

	rec := doJSON(t, handler.Passes, http.MethodGet, "/api/v1/sync/passes?limit=2", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if history.gotLimit != 2 {
		t.Fatalf("limit not forwarded, got %d", history.gotLimit)
	}
	if !strings.Contains(rec.Body.String(), "pass-2") {
		t.Fatalf("passes not rendered: %s", rec.Body.String())
	}
}

func TestApplyConflictsRequiresSelection(t *testing.T) {
	handler := NewSyncHandler(&fakeService{}, NewUploadSession(), &fakeHistory{})

	rec := doJSON(t, handler.ApplyConflicts, http.MethodPost, "/api/v1/conflicts/apply", `{"conflicts":[]}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != "no_conflicts" {
		t.Fatalf("expected no_conflicts, got %+v", resp.Error)
	}
}

func TestApplyConflictsForwardsSelection(t *testing.T) {
	service := &fakeService{applied: &domain.ConflictUpdateResult{UpdatedCount: 1}}
	handler := NewSyncHandler(service, NewUploadSession(), &fakeHistory{})

	body := `{"conflicts":[{"student_id":"u1","field_name":"手机号","new_value":"67890123"}]}`
	rec := doJSON(t, handler.ApplyConflicts, http.MethodPost, "/api/v1/conflicts/apply", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(service.gotConflicts) != 1 || service.gotConflicts[0].StudentID != "u1" {
		t.Fatalf("selection not forwarded: %+v", service.gotConflicts)
	}
	if !strings.Contains(rec.Body.String(), `"updated_count":1`) {
		t.Fatalf("result not rendered: %s", rec.Body.String())
	}
}

func TestApplyConflictsNotConfigured(t *testing.T) {
	handler := NewSyncHandler(&fakeService{applyErr: app.ErrNotConfigured}, NewUploadSession(), &fakeHistory{})

	body := `{"conflicts":[{"student_id":"u1","field_name":"手机号"}]}`
	rec := doJSON(t, handler.ApplyConflicts, http.MethodPost, "/api/v1/conflicts/apply", body)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
