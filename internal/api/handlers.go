package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/mayankSinghx/QuickShow/internal/element"
	"github.com/mayankSinghx/QuickShow/internal/room"
	"github.com/mayankSinghx/QuickShow/internal/store"
)

// API serves the HTTP surface next to the websocket: health, stats,
// room administration and the element audit trail.
type API struct {
	registry *room.Registry
	store    *store.Store
	log      zerolog.Logger
}

func New(registry *room.Registry, st *store.Store, log zerolog.Logger) *API {
	return &API{
		registry: registry,
		store:    st,
		log:      log,
	}
}

// Router wires all HTTP endpoints.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", a.StatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms", a.ListRoomsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms", a.CreateRoomHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/rooms/{id}", a.GetRoomHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms/{id}", a.DeleteRoomHandler).Methods(http.MethodDelete)
	r.HandleFunc("/api/rooms/{id}/elements", a.RoomElementsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/elements/{id}/versions", a.ElementVersionsHandler).Methods(http.MethodGet)
	return r
}

func (a *API) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (a *API) errorResponse(w http.ResponseWriter, status int, message string) {
	a.jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	a.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"active_rooms":    a.registry.RoomCount(),
		"active_sessions": a.registry.SessionCount(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}

	if dbStats, err := a.store.Stats(r.Context()); err == nil {
		stats["total_rooms"] = dbStats["room_count"]
		stats["total_elements"] = dbStats["element_count"]
		stats["total_versions"] = dbStats["version_count"]
	}

	a.jsonResponse(w, http.StatusOK, stats)
}

// Room handlers

type RoomResponse struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ActiveUsers int       `json:"active_users"`
}

type CreateRoomRequest struct {
	ID string `json:"id"`
}

func paging(r *http.Request, defaultLimit int) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (a *API) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r, 20)

	rooms, err := a.store.ListRooms(r.Context(), limit, offset)
	if err != nil {
		a.errorResponse(w, http.StatusInternalServerError, "Failed to list rooms")
		return
	}

	activeRooms := a.registry.ActiveRooms()

	response := make([]RoomResponse, len(rooms))
	for i, rm := range rooms {
		response[i] = RoomResponse{
			ID:          rm.ID,
			CreatedAt:   rm.CreatedAt,
			UpdatedAt:   rm.UpdatedAt,
			ActiveUsers: activeRooms[rm.ID],
		}
	}

	a.jsonResponse(w, http.StatusOK, map[string]any{
		"rooms":  response,
		"limit":  limit,
		"offset": offset,
	})
}

func (a *API) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ID == "" {
		a.errorResponse(w, http.StatusBadRequest, "Room ID is required")
		return
	}

	if err := a.store.CreateRoomIfAbsent(r.Context(), req.ID); err != nil {
		a.errorResponse(w, http.StatusInternalServerError, "Failed to create room")
		return
	}

	rm, err := a.store.GetRoom(r.Context(), req.ID)
	if err != nil || rm == nil {
		a.errorResponse(w, http.StatusInternalServerError, "Failed to get room")
		return
	}

	a.jsonResponse(w, http.StatusCreated, RoomResponse{
		ID:        rm.ID,
		CreatedAt: rm.CreatedAt,
		UpdatedAt: rm.UpdatedAt,
	})
}

func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	rm, err := a.store.GetRoom(r.Context(), roomID)
	if err != nil {
		a.errorResponse(w, http.StatusInternalServerError, "Failed to get room")
		return
	}
	if rm == nil {
		a.errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	activeRooms := a.registry.ActiveRooms()

	a.jsonResponse(w, http.StatusOK, RoomResponse{
		ID:          rm.ID,
		CreatedAt:   rm.CreatedAt,
		UpdatedAt:   rm.UpdatedAt,
		ActiveUsers: activeRooms[roomID],
	})
}

func (a *API) DeleteRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	if err := a.store.DeleteRoom(r.Context(), roomID); err != nil {
		a.errorResponse(w, http.StatusInternalServerError, "Failed to delete room")
		return
	}

	a.jsonResponse(w, http.StatusOK, map[string]string{"message": "Room deleted"})
}

// RoomElementsHandler returns the persisted element snapshot of a room.
func (a *API) RoomElementsHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	rm, err := a.store.GetRoom(r.Context(), roomID)
	if err != nil {
		a.errorResponse(w, http.StatusInternalServerError, "Failed to get room")
		return
	}
	if rm == nil {
		a.errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	elements, err := a.store.RoomElements(r.Context(), roomID)
	if err != nil {
		a.errorResponse(w, http.StatusInternalServerError, "Failed to load elements")
		return
	}
	if elements == nil {
		elements = []element.Element{}
	}

	a.jsonResponse(w, http.StatusOK, map[string]any{
		"room_id":  roomID,
		"elements": elements,
	})
}

// Audit trail handlers

type VersionResponse struct {
	ID        int64           `json:"id"`
	ElementID string          `json:"element_id"`
	Element   element.Element `json:"element"`
}

// ElementVersionsHandler lists the audit records for an element,
// newest first.
func (a *API) ElementVersionsHandler(w http.ResponseWriter, r *http.Request) {
	elementID := mux.Vars(r)["id"]
	limit, offset := paging(r, 50)

	versions, err := a.store.ElementVersions(r.Context(), elementID, limit, offset)
	if err != nil {
		a.errorResponse(w, http.StatusInternalServerError, "Failed to list versions")
		return
	}

	response := make([]VersionResponse, len(versions))
	for i, v := range versions {
		response[i] = VersionResponse{
			ID:        v.ID,
			ElementID: v.ElementID,
			Element:   v.Element,
		}
	}

	total, _ := a.store.ElementVersionCount(r.Context(), elementID)

	a.jsonResponse(w, http.StatusOK, map[string]any{
		"versions": response,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// CORSMiddleware allows the browser client to reach the API from
// another origin.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
