package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"pcinventory/internal/events"
	"pcinventory/internal/inventory"
	"pcinventory/internal/models"
	"pcinventory/internal/version"
)

const maxBodyBytes = 64 << 10

// PCInfoHandler serves the ingest and listing endpoints.
type PCInfoHandler struct {
	db  *sql.DB
	bus *events.Bus
	log zerolog.Logger
}

// NewPCInfoHandler creates the handler.
func NewPCInfoHandler(db *sql.DB, bus *events.Bus, log zerolog.Logger) *PCInfoHandler {
	return &PCInfoHandler{db: db, bus: bus, log: log}
}

// Submit stores a report and answers with the action taken.
// POST <endpoint_path>
func (h *PCInfoHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.PCInfoRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		JSONError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	agentVersion, _ := version.FromUserAgent(r.UserAgent())
	res, err := inventory.Upsert(r.Context(), h.db, req, agentVersion)
	if errors.Is(err, inventory.ErrBlankUUID) {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("uuid", req.UUID).Msg("Failed to store report")
		JSONError(w, "Database error", http.StatusInternalServerError)
		return
	}

	m := res.Machine
	if res.Action == models.ActionCreated {
		h.log.Info().Int64("id", res.ID).Str("uuid", m.UUID).Str("user", m.UserName).Msg("Created new machine")
		h.bus.Publish(events.Created(m))
		JSONResponse(w, h.log, models.Created(res.ID))
		return
	}

	h.log.Info().Int64("id", res.ID).Str("uuid", m.UUID).Msg("Updated existing machine")
	h.bus.Publish(events.Updated(m))
	if res.Moved() {
		h.bus.Publish(events.Moved(*res.Previous, m))
	}
	JSONResponse(w, h.log, models.Updated(res.ID))
}

// List returns every machine.
// GET <endpoint_path>
func (h *PCInfoHandler) List(w http.ResponseWriter, r *http.Request) {
	machines, err := inventory.List(r.Context(), h.db)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list machines")
		JSONError(w, "Database error", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, h.log, machines)
}

// Get returns one machine.
// GET <endpoint_path>/{uuid}
func (h *PCInfoHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := inventory.Get(r.Context(), h.db, r.PathValue("uuid"))
	if errors.Is(err, inventory.ErrNotFound) {
		JSONError(w, "Machine not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load machine")
		JSONError(w, "Database error", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, h.log, m)
}

// Health reports whether the database is reachable.
// GET /health
func Health(db *sql.DB, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			JSONError(w, "Database unavailable", http.StatusServiceUnavailable)
			return
		}
		JSONResponse(w, log, map[string]string{
			"status":  "healthy",
			"version": version.Version,
		})
	}
}
