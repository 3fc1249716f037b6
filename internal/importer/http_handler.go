package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rpattn/sheetimport/internal/domain"
	"github.com/rpattn/sheetimport/internal/mapping"
	"github.com/rpattn/sheetimport/internal/repository"
)

// Handler exposes import submission, status polling, the field catalog,
// mapping suggestions and saved mappings over HTTP.
type Handler struct {
	service  *Service
	resolver *mapping.Resolver
	mappings repository.MappingRepository
	mux      *http.ServeMux
}

// NewHTTPHandler wires the import endpoints. The mapping repository may
// be nil; saved-mapping endpoints then answer 404.
func NewHTTPHandler(service *Service, resolver *mapping.Resolver, mappings repository.MappingRepository) http.Handler {
	h := &Handler{service: service, resolver: resolver, mappings: mappings}

	mux := http.NewServeMux()
	mux.HandleFunc("/imports", h.submit)
	mux.HandleFunc("/imports/status", h.status)
	mux.HandleFunc("/imports/fields", h.fields)
	mux.HandleFunc("/imports/suggest", h.suggest)
	mux.HandleFunc("/imports/mappings", h.savedMappings)
	h.mux = mux
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	target := strings.TrimSpace(r.FormValue("target"))
	if target == "" {
		http.Error(w, "target is required", http.StatusBadRequest)
		return
	}

	var columnMapping domain.ColumnMapping
	if raw := strings.TrimSpace(r.FormValue("mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &columnMapping); err != nil {
			http.Error(w, fmt.Sprintf("invalid mapping json: %v", err), http.StatusBadRequest)
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	jobID, err := h.service.Submit(r.Context(), SubmitRequest{
		JobID:    strings.TrimSpace(r.FormValue("jobId")),
		Target:   target,
		FileName: header.Filename,
		Mapping:  columnMapping,
		Data:     bytes.NewReader(data),
	})
	if err != nil {
		writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobId": jobID, "accepted": true})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := strings.TrimSpace(r.URL.Query().Get("jobId"))
	if jobID == "" {
		http.Error(w, "jobId is required", http.StatusBadRequest)
		return
	}

	job, err := h.service.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			http.Error(w, "import job not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) fields(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Catalog())
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Headers []string `json:"headers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(payload.Headers) == 0 {
		http.Error(w, "headers are required", http.StatusBadRequest)
		return
	}

	suggestions := h.resolver.Suggest(payload.Headers, h.service.Catalog())
	writeJSON(w, http.StatusOK, suggestions)
}

func (h *Handler) savedMappings(w http.ResponseWriter, r *http.Request) {
	if h.mappings == nil {
		http.Error(w, "saved mappings are not configured", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			names, err := h.mappings.List(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, names)
			return
		}
		columnMapping, err := h.mappings.Load(r.Context(), name)
		if err != nil {
			if errors.Is(err, domain.ErrMappingNotFound) {
				http.Error(w, "saved mapping not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, columnMapping)
	case http.MethodPost:
		var payload struct {
			Name    string               `json:"name"`
			Mapping domain.ColumnMapping `json:"mapping"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(payload.Name) == "" || len(payload.Mapping) == 0 {
			http.Error(w, "name and mapping are required", http.StatusBadRequest)
			return
		}
		if err := h.mappings.Save(r.Context(), strings.TrimSpace(payload.Name), payload.Mapping); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"saved": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeSubmitError(w http.ResponseWriter, err error) {
	var mappingErr *domain.MappingError
	switch {
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &mappingErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   mappingErr.Error(),
			"mapping": mappingErr,
		})
	case errors.Is(err, domain.ErrMalformedInput), errors.Is(err, domain.ErrEmptyInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
