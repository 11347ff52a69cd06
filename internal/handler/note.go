package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jotapp/jot/internal/model"
	"github.com/jotapp/jot/internal/store"
	"github.com/jotapp/jot/internal/websocket"
)

// NoteHandler serves the authoritative note collection. Writes are upserts
// with last-write-wins semantics: a record that is not newer than the stored
// copy leaves the store untouched and the stored copy is echoed back, which
// is what makes a client's re-push of an already-synced record harmless.
type NoteHandler struct {
	notes  *store.NoteStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewNoteHandler(ns *store.NoteStore, hub *websocket.Hub, logger *slog.Logger) *NoteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteHandler{notes: ns, hub: hub, logger: logger}
}

func (h *NoteHandler) broadcast(action, id string) {
	if h.hub != nil {
		h.hub.Broadcast(websocket.Message{Action: action, ID: id})
	}
}

var validTypes = map[string]bool{
	model.TypeNote:     true,
	model.TypeTasklist: true,
}

// List handles GET /api/notes?since=<ms>&deleted=<bool>.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid since"})
			return
		}
		since = parsed
	}
	includeDeleted := r.URL.Query().Get("deleted") == "true"

	notes, err := h.notes.ListSince(since, includeDeleted)
	if err != nil {
		h.logger.Error("list notes", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list notes"})
		return
	}
	if notes == nil {
		notes = []model.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// Get handles GET /api/notes/{id}.
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if model.Reserved(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "note not found"})
		return
	}

	note, err := h.notes.Get(id)
	if err != nil {
		h.logger.Error("get note", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get note"})
		return
	}
	if note == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "note not found"})
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Create handles POST /api/notes. Clients mint ids, so create doubles as the
// sync push upsert.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	note, ok := h.decode(w, r)
	if !ok {
		return
	}

	existing, err := h.notes.Get(note.ID)
	if err != nil {
		h.logger.Error("get note", "id", note.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store note"})
		return
	}

	h.upsert(w, note, existing, http.StatusCreated)
}

// Replace handles PUT /api/notes/{id}. The path id wins over the body id.
func (h *NoteHandler) Replace(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if model.Reserved(id) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reserved id"})
		return
	}

	note, ok := h.decode(w, r)
	if !ok {
		return
	}
	note.ID = id

	existing, err := h.notes.Get(id)
	if err != nil {
		h.logger.Error("get note", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store note"})
		return
	}

	h.upsert(w, note, existing, http.StatusOK)
}

// decode reads and validates a full note record from the request body.
func (h *NoteHandler) decode(w http.ResponseWriter, r *http.Request) (*model.Note, bool) {
	var note model.Note
	if err := json.NewDecoder(r.Body).Decode(&note); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return nil, false
	}

	if note.ID == "" && r.PathValue("id") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return nil, false
	}
	if model.Reserved(note.ID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reserved id"})
		return nil, false
	}
	if note.Type == "" {
		note.Type = model.TypeNote
	}
	if !validTypes[note.Type] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be note or tasklist"})
		return nil, false
	}

	now := model.Now()
	if note.Created == 0 {
		note.Created = now
	}
	if note.Updated == 0 {
		note.Updated = now
	}
	return &note, true
}

// upsert applies the last-write-wins guard and stores the record.
func (h *NoteHandler) upsert(w http.ResponseWriter, note, existing *model.Note, createdStatus int) {
	if existing != nil && note.Updated <= existing.Updated {
		// Stale or repeated push — keep the stored copy.
		writeJSON(w, http.StatusOK, existing)
		return
	}

	if err := h.notes.Put(note); err != nil {
		h.logger.Error("put note", "id", note.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store note"})
		return
	}

	if existing == nil {
		h.broadcast("created", note.ID)
		writeJSON(w, createdStatus, note)
		return
	}
	h.broadcast("updated", note.ID)
	writeJSON(w, http.StatusOK, note)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
