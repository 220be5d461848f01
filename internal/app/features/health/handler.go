package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/sitecrew/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// DayLister reports the dates currently held in memory.
type DayLister interface {
	Loaded() []string
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client Pinger
	Days   DayLister
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. days may be nil.
func NewHandler(client Pinger, days DayLister, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Days:   days,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status     string `json:"status"`
	Database   string `json:"database"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	LoadedDays *int   `json:"loaded_days,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "loaded_days":2 }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}

	// Check database
	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if h.Days != nil {
		n := len(h.Days.Loaded())
		resp.LoadedDays = &n
	}

	_ = json.NewEncoder(w).Encode(resp)
}
