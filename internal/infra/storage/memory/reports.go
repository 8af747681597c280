package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"motorent/internal/app/policies"
)

// ReportStore keeps uploaded exports in memory for local runs.
type ReportStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewReportStore() *ReportStore {
	return &ReportStore{objects: make(map[string][]byte)}
}

func (s *ReportStore) Upload(_ context.Context, key string, reader io.Reader, _ string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[key] = buf.Bytes()
	s.mu.Unlock()
	return "memory://" + key, nil
}

func (s *ReportStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

var _ policies.ReportStore = (*ReportStore)(nil)
