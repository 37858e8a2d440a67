package echo

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"

	app "github.com/nvclab/student-sync/internal/application/sync"
	domain "github.com/nvclab/student-sync/internal/domain/sync"
	"github.com/nvclab/student-sync/internal/infrastructure/db/models"
)

type passHistory interface {
	Recent(ctx context.Context, limit int) ([]models.SyncPass, error)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type SyncHandler struct {
	service app.Service
	session *UploadSession
	history passHistory

	mu         sync.Mutex
	lastResult *domain.SyncResult
}

func NewSyncHandler(service app.Service, session *UploadSession, history passHistory) *SyncHandler {
	return &SyncHandler{service: service, session: session, history: history}
}

type syncRequest struct {
	CourseName   string `json:"course_name"`
	LearningDate string `json:"learning_date"`
}

// syncResultBody adds the derived figures the UI renders next to the raw
// counters.
type syncResultBody struct {
	*domain.SyncResult
	ErrorCount      int     `json:"error_count"`
	ConflictsCount  int     `json:"conflicts_count"`
	SuccessRate     float64 `json:"success_rate"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func resultBody(result *domain.SyncResult) syncResultBody {
	return syncResultBody{
		SyncResult:      result,
		ErrorCount:      result.ErrorCount(),
		ConflictsCount:  result.ConflictCount(),
		SuccessRate:     result.SuccessRate(),
		DurationSeconds: result.Duration().Seconds(),
	}
}

func (h *SyncHandler) Sync(c echo.Context) error {
	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "invalid request body",
		}})
	}

	rows, err := h.session.Rows()
	if err != nil {
		return c.JSON(http.StatusNotFound, apiResponse{Error: &errorBody{
			Code:    "no_upload",
			Message: "upload a CSV file before starting a sync",
		}})
	}

	result, err := h.service.Run(c.Request().Context(), rows, req.CourseName, req.LearningDate)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSyncInProgress):
			return c.JSON(http.StatusConflict, apiResponse{Error: &errorBody{
				Code:    "sync_in_progress",
				Message: "a sync pass is already running",
			}})
		case errors.Is(err, app.ErrNotConfigured):
			return c.JSON(http.StatusServiceUnavailable, apiResponse{Error: &errorBody{
				Code:    "not_configured",
				Message: "sync tables are not configured",
			}})
		case errors.Is(err, app.ErrValidation):
			return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
				Code:    "invalid_request",
				Message: err.Error(),
			}})
		default:
			return c.JSON(http.StatusBadGateway, apiResponse{Error: &errorBody{
				Code:    "sync_failed",
				Message: err.Error(),
			}})
		}
	}

	h.mu.Lock()
	h.lastResult = result
	h.mu.Unlock()

	return c.JSON(http.StatusOK, apiResponse{Data: resultBody(result)})
}

type syncStatus struct {
	Running    bool            `json:"running"`
	Upload     *uploadInfo     `json:"upload,omitempty"`
	LastResult *syncResultBody `json:"last_result,omitempty"`
}

func (h *SyncHandler) Status(c echo.Context) error {
	status := syncStatus{Running: h.service.Running()}

	if info, ok := h.session.Info(); ok {
		status.Upload = &info
	}

	h.mu.Lock()
	if h.lastResult != nil {
		body := resultBody(h.lastResult)
		status.LastResult = &body
	}
	h.mu.Unlock()

	return c.JSON(http.StatusOK, apiResponse{Data: status})
}

// Passes lists recent sync passes from the local journal, newest first.
func (h *SyncHandler) Passes(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	passes, err := h.history.Recent(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "internal_error",
			Message: "failed to load sync passes",
		}})
	}
	return c.JSON(http.StatusOK, apiResponse{Data: passes})
}

type applyConflictsRequest struct {
	Conflicts []domain.Conflict `json:"conflicts"`
}

func (h *SyncHandler) ApplyConflicts(c echo.Context) error {
	var req applyConflictsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "invalid request body",
		}})
	}
	if len(req.Conflicts) == 0 {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "no_conflicts",
			Message: "no conflicts selected",
		}})
	}

	result, err := h.service.ApplyConflicts(c.Request().Context(), req.Conflicts)
	if err != nil {
		if errors.Is(err, app.ErrNotConfigured) {
			return c.JSON(http.StatusServiceUnavailable, apiResponse{Error: &errorBody{
				Code:    "not_configured",
				Message: "sync tables are not configured",
			}})
		}
		return c.JSON(http.StatusBadGateway, apiResponse{Error: &errorBody{
			Code:    "apply_failed",
			Message: err.Error(),
		}})
	}

	return c.JSON(http.StatusOK, apiResponse{Data: result})
}
