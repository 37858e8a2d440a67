package echo

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nvclab/student-sync/internal/config"
	"github.com/nvclab/student-sync/internal/infrastructure/csvfile"
)

type mappingMemory interface {
	Remember(ctx context.Context, signature string, rules []config.FieldRule) error
	Suggest(ctx context.Context, signature string) ([]config.FieldRule, error)
}

type UploadHandler struct {
	session *UploadSession
	memory  mappingMemory
}

func NewUploadHandler(session *UploadSession, memory mappingMemory) *UploadHandler {
	return &UploadHandler{session: session, memory: memory}
}

type uploadResponse struct {
	uploadInfo
	SuggestedRules []config.FieldRule `json:"suggested_rules,omitempty"`
}

func (h *UploadHandler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "missing_file",
			Message: "multipart field \"file\" is required",
		}})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "unreadable_file",
			Message: "uploaded file could not be opened",
		}})
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "unreadable_file",
			Message: "uploaded file could not be read",
		}})
	}

	rows, headers, err := csvfile.ReadRows(raw)
	if err != nil {
		code := "invalid_csv"
		if errors.Is(err, csvfile.ErrEmptyFile) {
			code = "empty_csv"
		}
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    code,
			Message: err.Error(),
		}})
	}

	signature := csvfile.HeaderSignature(headers)
	h.session.Set(rows, headers, signature, fileHeader.Filename)

	resp := uploadResponse{}
	resp.uploadInfo, _ = h.session.Info()
	if h.memory != nil {
		if rules, err := h.memory.Suggest(c.Request().Context(), signature); err == nil {
			resp.SuggestedRules = rules
		}
	}

	return c.JSON(http.StatusOK, apiResponse{Data: resp})
}

func (h *UploadHandler) Clear(c echo.Context) error {
	h.session.Clear()
	return c.JSON(http.StatusOK, apiResponse{Data: map[string]string{"status": "cleared"}})
}

type rememberMappingRequest struct {
	Rules []config.FieldRule `json:"rules"`
}

// RememberMapping saves reviewer-confirmed mapping rules for the header
// layout of the current upload.
func (h *UploadHandler) RememberMapping(c echo.Context) error {
	signature := h.session.Signature()
	if signature == "" {
		return c.JSON(http.StatusNotFound, apiResponse{Error: &errorBody{
			Code:    "no_upload",
			Message: "upload a file before saving mapping choices",
		}})
	}

	var req rememberMappingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "invalid request body",
		}})
	}

	if err := h.memory.Remember(c.Request().Context(), signature, req.Rules); err != nil {
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "internal_error",
			Message: "failed to save mapping choices",
		}})
	}

	return c.JSON(http.StatusOK, apiResponse{Data: map[string]int{"saved": len(req.Rules)}})
}
