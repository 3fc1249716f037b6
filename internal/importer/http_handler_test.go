package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rpattn/sheetimport/internal/domain"
	"github.com/rpattn/sheetimport/internal/mapping"
	"github.com/rpattn/sheetimport/internal/repository"
)

type stubMappings struct {
	mu    sync.Mutex
	saved map[string]domain.ColumnMapping
}

func newStubMappings() *stubMappings {
	return &stubMappings{saved: make(map[string]domain.ColumnMapping)}
}

func (s *stubMappings) Save(ctx context.Context, name string, m domain.ColumnMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[name] = m
	return nil
}

func (s *stubMappings) Load(ctx context.Context, name string) (domain.ColumnMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.saved[name]
	if !ok {
		return nil, domain.ErrMappingNotFound
	}
	return m, nil
}

func (s *stubMappings) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.saved))
	for name := range s.saved {
		names = append(names, name)
	}
	return names, nil
}

var _ repository.MappingRepository = (*stubMappings)(nil)

func newTestHandler(t *testing.T) (http.Handler, *stubRecords, *stubMappings) {
	t.Helper()
	records := &stubRecords{}
	service, _ := newTestService(records, nil)
	mappings := newStubMappings()
	return NewHTTPHandler(service, mapping.NewResolver(nil), mappings), records, mappings
}

func multipartUpload(t *testing.T, fileName, contents string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(contents)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestSubmitEndpointAcceptsUpload(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	body, contentType := multipartUpload(t, "deliveries.csv", "qty\n10\n", map[string]string{
		"target":  "deliveries",
		"mapping": `{"qty":"qty"}`,
	})

	req := httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var response struct {
		JobID    string `json:"jobId"`
		Accepted bool   `json:"accepted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.JobID == "" || !response.Accepted {
		t.Fatalf("unexpected response: %+v", response)
	}
}

func TestSubmitEndpointReportsMappingErrors(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	// The catalog requires qty; an empty mapping cannot satisfy it.
	body, contentType := multipartUpload(t, "deliveries.csv", "qty\n10\n", map[string]string{
		"target":  "deliveries",
		"mapping": `{"qty":"skip"}`,
	})

	req := httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var response struct {
		Mapping struct {
			MissingRequired []string `json:"missing_required"`
		} `json:"mapping"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(response.Mapping.MissingRequired) != 1 || response.Mapping.MissingRequired[0] != "qty" {
		t.Fatalf("expected qty reported missing, got %s", rec.Body.String())
	}
}

func TestSubmitEndpointReportsConflicts(t *testing.T) {
	records := &stubRecords{}
	service, store := newTestService(records, nil)
	handler := NewHTTPHandler(service, mapping.NewResolver(nil), nil)

	if err := store.Create(context.Background(), domain.ImportJob{ID: "held", SourceName: "deliveries.csv"}); err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	body, contentType := multipartUpload(t, "deliveries.csv", "qty\n10\n", map[string]string{
		"target":  "deliveries",
		"mapping": `{"qty":"qty"}`,
	})
	req := httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStatusEndpoint(t *testing.T) {
	records := &stubRecords{}
	service, store := newTestService(records, nil)
	handler := NewHTTPHandler(service, mapping.NewResolver(nil), nil)

	if err := store.Create(context.Background(), domain.ImportJob{ID: "job-1", SourceName: "deliveries.csv", Step: "pending"}); err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/status?jobId=job-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/status?jobId=missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestFieldsEndpointReturnsCatalog(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/fields", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var catalog domain.FieldCatalog
	if err := json.Unmarshal(rec.Body.Bytes(), &catalog); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(catalog) == 0 {
		t.Fatal("expected non-empty catalog")
	}
}

func TestSuggestEndpoint(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/imports/suggest", strings.NewReader(`{"headers":["qty"]}`))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var suggestions []domain.MappingSuggestion
	if err := json.Unmarshal(rec.Body.Bytes(), &suggestions); err != nil {
		t.Fatalf("decode suggestions: %v", err)
	}
	if len(suggestions) != 1 || len(suggestions[0].Candidates) == 0 || suggestions[0].Candidates[0] != "qty" {
		t.Fatalf("unexpected suggestions: %+v", suggestions)
	}
}

func TestSavedMappingsRoundTrip(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/imports/mappings",
		strings.NewReader(`{"name":"monthly","mapping":{"qty":"qty"}}`))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on save, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/mappings?name=monthly", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on load, got %d", rec.Code)
	}
	var loaded domain.ColumnMapping
	if err := json.Unmarshal(rec.Body.Bytes(), &loaded); err != nil {
		t.Fatalf("decode mapping: %v", err)
	}
	if loaded["qty"] != "qty" {
		t.Fatalf("unexpected mapping: %v", loaded)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/mappings?name=unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown mapping, got %d", rec.Code)
	}
}
