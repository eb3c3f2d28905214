package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/manpreetbhatti/inkwell/internal/archive"
	"github.com/manpreetbhatti/inkwell/internal/db"
	"github.com/manpreetbhatti/inkwell/internal/relay"
	"github.com/manpreetbhatti/inkwell/internal/room"
)

// API serves read-only views of live rooms plus the snapshot archive.
// database may be nil when archiving is disabled.
type API struct {
	hub      *relay.Hub
	database *db.Database
	presence PresenceReader
}

// Reads room occupancy as mirrored outside the process
type PresenceReader interface {
	Rooms(ctx context.Context) (map[string]int, error)
}

func New(hub *relay.Hub, database *db.Database) *API {
	return &API{
		hub:      hub,
		database: database,
	}
}

func (a *API) SetPresence(presence PresenceReader) {
	a.presence = presence
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
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

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"active_rooms":   a.hub.GetRoomCount(),
		"active_clients": a.hub.GetClientCount(),
		"live_strokes":   a.hub.GetStrokeCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		dbStats, err := a.database.GetStats()
		if err == nil {
			stats["archived_rooms"] = dbStats["room_count"]
			stats["snapshots"] = dbStats["snapshot_count"]
			stats["archived_strokes"] = dbStats["archived_strokes"]
		}
	}

	if a.presence != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		rooms, err := a.presence.Rooms(ctx)
		if err != nil {
			log.Printf("Stats: presence unavailable: %v", err)
		} else {
			clients := 0
			for _, n := range rooms {
				clients += n
			}
			stats["mirrored_rooms"] = len(rooms)
			stats["mirrored_clients"] = clients
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Room handlers

type RoomResponse struct {
	ID            string             `json:"id"`
	ActiveUsers   int                `json:"active_users"`
	StrokeCount   int                `json:"stroke_count"`
	Participants  []room.Participant `json:"participants,omitempty"`
	SnapshotCount int                `json:"snapshot_count,omitempty"`
	UpdatedAt     *time.Time         `json:"updated_at,omitempty"`
}

func (a *API) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	activeRooms := a.hub.GetActiveRooms()
	ids := make([]string, 0, len(activeRooms))
	for id := range activeRooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	active := make([]RoomResponse, 0, len(ids))
	for _, id := range ids {
		view, ok := a.hub.GetRoom(id)
		if !ok {
			continue
		}
		active = append(active, RoomResponse{
			ID:          id,
			ActiveUsers: len(view.Participants),
			StrokeCount: view.StrokeCount,
		})
	}

	response := map[string]interface{}{
		"rooms": active,
	}

	if a.database != nil {
		limit, offset := pagination(r, 20)
		rooms, err := a.database.ListRooms(limit, offset)
		if err != nil {
			errorResponse(w, http.StatusInternalServerError, "Failed to list rooms")
			return
		}

		archived := make([]RoomResponse, len(rooms))
		for i, rm := range rooms {
			updatedAt := rm.UpdatedAt
			archived[i] = RoomResponse{
				ID:          rm.ID,
				ActiveUsers: activeRooms[rm.ID],
				UpdatedAt:   &updatedAt,
			}
		}
		response["archived"] = archived
		response["limit"] = limit
		response["offset"] = offset
	}

	jsonResponse(w, http.StatusOK, response)
}

func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := RoomResponse{ID: roomID}
	found := false

	if view, ok := a.hub.GetRoom(roomID); ok {
		found = true
		response.ActiveUsers = len(view.Participants)
		response.StrokeCount = view.StrokeCount
		response.Participants = view.Participants
	}

	if a.database != nil {
		rm, err := a.database.GetRoom(roomID)
		if err != nil {
			errorResponse(w, http.StatusInternalServerError, "Failed to get room")
			return
		}
		if rm != nil {
			found = true
			response.UpdatedAt = &rm.UpdatedAt
			response.SnapshotCount, _ = a.database.GetSnapshotCount(roomID)
		}
	}

	if !found {
		errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	jsonResponse(w, http.StatusOK, response)
}

func (a *API) ListRoomSnapshotsHandler(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if a.database == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Archive disabled")
		return
	}

	limit, offset := pagination(r, 50)
	snapshots, err := a.database.ListSnapshots(roomID, limit, offset)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}
	if snapshots == nil {
		snapshots = []db.Snapshot{}
	}

	total, _ := a.database.GetSnapshotCount(roomID)

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (a *API) RoomsRouter(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/rooms"), "/")

	// /api/rooms or /api/rooms/
	if path == "" {
		a.ListRoomsHandler(w, r)
		return
	}

	// /api/rooms/{id}/snapshots
	if roomID, ok := strings.CutSuffix(path, "/snapshots"); ok && roomID != "" {
		a.ListRoomSnapshotsHandler(w, r, roomID)
		return
	}

	// /api/rooms/{id}
	if strings.Contains(path, "/") {
		errorResponse(w, http.StatusNotFound, "Not found")
		return
	}
	a.GetRoomHandler(w, r, path)
}

// Snapshot handlers

type SnapshotResponse struct {
	db.Snapshot
	Strokes []room.Stroke `json:"strokes"`
}

func (a *API) GetSnapshotHandler(w http.ResponseWriter, r *http.Request, id int64) {
	snapshot, err := a.database.GetSnapshot(id)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get snapshot")
		return
	}
	if snapshot == nil {
		errorResponse(w, http.StatusNotFound, "Snapshot not found")
		return
	}

	strokes, err := archive.Load(snapshot)
	if err != nil {
		log.Printf("Snapshot %d has unreadable data: %v", id, err)
		errorResponse(w, http.StatusInternalServerError, "Failed to decode snapshot")
		return
	}

	jsonResponse(w, http.StatusOK, SnapshotResponse{Snapshot: *snapshot, Strokes: strokes})
}

func (a *API) DeleteSnapshotHandler(w http.ResponseWriter, r *http.Request, id int64) {
	if err := a.database.DeleteSnapshot(id); err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to delete snapshot")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "Snapshot deleted"})
}

func (a *API) SnapshotsRouter(w http.ResponseWriter, r *http.Request) {
	if a.database == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Archive disabled")
		return
	}

	// /api/snapshots/{id}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/snapshots"), "/")
	id, err := strconv.ParseInt(path, 10, 64)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid snapshot ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.GetSnapshotHandler(w, r, id)
	case http.MethodDelete:
		a.DeleteSnapshotHandler(w, r, id)
	default:
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Routes registers every endpoint on mux
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", a.HealthHandler)
	mux.HandleFunc("/api/stats", a.StatsHandler)
	mux.HandleFunc("/api/rooms", a.RoomsRouter)
	mux.HandleFunc("/api/rooms/", a.RoomsRouter)
	mux.HandleFunc("/api/snapshots/", a.SnapshotsRouter)
}

// CORS middleware. An origin list containing "*" allows any origin.
func CORS(allowOrigins []string, next http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(allowOrigins))
	for _, origin := range allowOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
