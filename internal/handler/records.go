// Package handler implements the HTTP layer over tenant instances:
// record CRUD, queries, counts and snapshot export/import.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"cellstore/internal/codec"
	"cellstore/internal/schema"
	"cellstore/internal/service"
	"cellstore/internal/store"
)

// RecordsHandler handles record API requests
type RecordsHandler struct {
	host *service.Host
}

// NewRecordsHandler creates a new records handler
func NewRecordsHandler(host *service.Host) *RecordsHandler {
	return &RecordsHandler{host: host}
}

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Register wires the record routes onto mux
func (h *RecordsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/{tenant}/tables/{table}/records", h.CreateRecord)
	mux.HandleFunc("GET /api/{tenant}/tables/{table}/records", h.ListRecords)
	mux.HandleFunc("GET /api/{tenant}/tables/{table}/records/{id}", h.GetRecord)
	mux.HandleFunc("PUT /api/{tenant}/tables/{table}/records/{id}", h.UpdateRecord)
	mux.HandleFunc("DELETE /api/{tenant}/tables/{table}/records/{id}", h.DeleteRecord)
	mux.HandleFunc("GET /api/{tenant}/tables/{table}/count", h.CountRecords)
	mux.HandleFunc("GET /api/{tenant}/tables/{table}/export", h.ExportTable)
	mux.HandleFunc("POST /api/{tenant}/tables/{table}/import", h.ImportTable)
}

// withTable resolves the tenant instance and table, then runs fn inside
// the instance's serialization lock, with the optional ?scope= override
// active for the duration of the request.
func (h *RecordsHandler) withTable(w http.ResponseWriter, r *http.Request, fn func(t *store.Table) error) {
	tenant := r.PathValue("tenant")
	tableName := r.PathValue("table")

	inst, err := h.host.Instance(tenant)
	if err != nil {
		writeError(w, "Invalid tenant", err.Error(), http.StatusBadRequest)
		return
	}

	err = inst.Do(func(reg *store.Registry) error {
		table := reg.Lookup(tableName)
		if table == nil {
			writeError(w, "Table not found", fmt.Sprintf("table %q is not registered", tableName), http.StatusNotFound)
			return nil
		}

		if scope := r.URL.Query().Get("scope"); scope != "" {
			return reg.Scope().RunScoped(scope, func() error {
				return fn(table)
			})
		}
		return fn(table)
	})
	if err != nil {
		h.writeFailure(w, err)
	}
}

// writeFailure maps storage errors onto HTTP statuses
func (h *RecordsHandler) writeFailure(w http.ResponseWriter, err error) {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		writeError(w, "Validation failed", verr.Error(), http.StatusBadRequest)
		return
	}
	var nf *store.NotFoundError
	if errors.As(err, &nf) {
		writeError(w, "Not found", nf.Error(), http.StatusNotFound)
		return
	}
	log.Printf("request failed: %v", err)
	writeError(w, "Internal error", err.Error(), http.StatusInternalServerError)
}

// CreateRecord creates a record from the JSON body
func (h *RecordsHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	h.withTable(w, r, func(t *store.Table) error {
		rec, err := t.Create(r.Context(), payload)
		if err != nil {
			return err
		}
		writeJSON(w, rec, http.StatusCreated)
		return nil
	})
}

// GetRecord returns one record by id
func (h *RecordsHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	h.withTable(w, r, func(t *store.Table) error {
		rec, err := t.FindByID(r.Context(), id)
		if err != nil {
			return err
		}
		if rec == nil {
			writeError(w, "Not found", fmt.Sprintf("record %q not found", id), http.StatusNotFound)
			return nil
		}
		writeJSON(w, rec, http.StatusOK)
		return nil
	})
}

// UpdateRecord merges the JSON body into an existing record
func (h *RecordsHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	h.withTable(w, r, func(t *store.Table) error {
		rec, err := t.Update(r.Context(), id, partial)
		if err != nil {
			return err
		}
		writeJSON(w, rec, http.StatusOK)
		return nil
	})
}

// DeleteRecord deletes a record; deleting a missing id still succeeds
func (h *RecordsHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	h.withTable(w, r, func(t *store.Table) error {
		if err := t.Delete(r.Context(), id); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}

// ListRecords runs a query built from the request parameters.
//
// Supported parameters:
//
//	where=path:op:value   (repeatable, ANDed together)
//	orderBy=path[:desc]
//	limit=n, offset=n
//	scope=group-id
func (h *RecordsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	h.withTable(w, r, func(t *store.Table) error {
		q, err := buildQuery(t, r)
		if err != nil {
			writeError(w, "Invalid query", err.Error(), http.StatusBadRequest)
			return nil
		}

		records, err := q.Get(r.Context())
		if err != nil {
			writeError(w, "Invalid query", err.Error(), http.StatusBadRequest)
			return nil
		}
		writeJSON(w, records, http.StatusOK)
		return nil
	})
}

// CountRecords returns the number of matching records
func (h *RecordsHandler) CountRecords(w http.ResponseWriter, r *http.Request) {
	h.withTable(w, r, func(t *store.Table) error {
		q, err := buildQuery(t, r)
		if err != nil {
			writeError(w, "Invalid query", err.Error(), http.StatusBadRequest)
			return nil
		}

		n, err := q.Count(r.Context())
		if err != nil {
			writeError(w, "Invalid query", err.Error(), http.StatusBadRequest)
			return nil
		}
		writeJSON(w, map[string]int{"count": n}, http.StatusOK)
		return nil
	})
}

// ExportTable streams a snapshot of the visible records
func (h *RecordsHandler) ExportTable(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	c := codec.ByFormat(format)
	if c == nil {
		writeError(w, "Unknown format", fmt.Sprintf("no codec for format %q", format), http.StatusBadRequest)
		return
	}

	h.withTable(w, r, func(t *store.Table) error {
		records, err := t.GetAll(r.Context())
		if err != nil {
			return err
		}

		snap := &codec.Snapshot{Table: t.Name(), Records: records}
		w.Header().Set("Content-Type", contentTypeFor(c.Format()))
		if err := c.Export(snap, w); err != nil {
			log.Printf("export failed: %v", err)
		}
		return nil
	})
}

// ImportTable creates records from an uploaded snapshot. Each record goes
// through normal validation; identities and timestamps are reassigned.
func (h *RecordsHandler) ImportTable(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	c := codec.ByFormat(format)
	if c == nil {
		writeError(w, "Unknown format", fmt.Sprintf("no codec for format %q", format), http.StatusBadRequest)
		return
	}

	snap, err := c.Parse(r.Body)
	if err != nil {
		writeError(w, "Invalid snapshot", err.Error(), http.StatusBadRequest)
		return
	}

	h.withTable(w, r, func(t *store.Table) error {
		imported := 0
		for _, rec := range snap.Records {
			if _, err := t.Create(r.Context(), rec.Fields); err != nil {
				return fmt.Errorf("record %d: %w", imported, err)
			}
			imported++
		}
		writeJSON(w, map[string]int{"imported": imported}, http.StatusCreated)
		return nil
	})
}

// buildQuery translates request parameters into a store query
func buildQuery(t *store.Table, r *http.Request) (*store.Query, error) {
	q := t.Limit(-1)

	for _, raw := range r.URL.Query()["where"] {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed where parameter %q, want path:op:value", raw)
		}
		q = q.Where(parts[0], store.Op(parts[1]), coerceValue(parts[2]))
	}

	if raw := r.URL.Query().Get("orderBy"); raw != "" {
		path, dir, _ := strings.Cut(raw, ":")
		q = q.OrderBy(path, dir == "desc")
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid limit %q", raw)
		}
		q = q.Limit(n)
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid offset %q", raw)
		}
		q = q.Offset(n)
	}

	return q, nil
}

// coerceValue guesses the bind type of a where value: bool, then number,
// then string.
func coerceValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// Helper functions

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, error, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}

func contentTypeFor(format string) string {
	if format == "yaml" {
		return "application/yaml"
	}
	return "application/json"
}
