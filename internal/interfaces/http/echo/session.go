package echo

import (
	"errors"
	"sync"
	"time"

	domain "github.com/nvclab/student-sync/internal/domain/sync"
)

var ErrNoUpload = errors.New("no uploaded file")

// UploadSession owns at most one pending upload. It is passed to the
// handlers explicitly; the single-pass invariant itself lives in the sync
// service.
type UploadSession struct {
	mu         sync.Mutex
	rows       []domain.CsvRow
	headers    []string
	signature  string
	filename   string
	uploadedAt time.Time
}

func NewUploadSession() *UploadSession {
	return &UploadSession{}
}

func (s *UploadSession) Set(rows []domain.CsvRow, headers []string, signature, filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
	s.headers = headers
	s.signature = signature
	s.filename = filename
	s.uploadedAt = time.Now()
}

func (s *UploadSession) Rows() ([]domain.CsvRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		return nil, ErrNoUpload
	}
	rows := make([]domain.CsvRow, len(s.rows))
	copy(rows, s.rows)
	return rows, nil
}

func (s *UploadSession) Signature() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signature
}

func (s *UploadSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	s.headers = nil
	s.signature = ""
	s.filename = ""
	s.uploadedAt = time.Time{}
}

type uploadInfo struct {
	Filename   string    `json:"filename"`
	Rows       int       `json:"rows"`
	Headers    []string  `json:"headers"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (s *UploadSession) Info() (uploadInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		return uploadInfo{}, false
	}
	return uploadInfo{
		Filename:   s.filename,
		Rows:       len(s.rows),
		Headers:    s.headers,
		UploadedAt: s.uploadedAt,
	}, true
}
