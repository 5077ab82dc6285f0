package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/zberg/go-smartclim/internal/monitor"
)

// StateSource exposes the latest monitor state.
type StateSource interface {
	Snapshot() monitor.State
}

type readingResponse struct {
	DeviceMAC      string    `json:"device_mac"`
	Temperature    float64   `json:"temperature_c"`
	Humidity       int       `json:"humidity_pct"`
	Battery        int       `json:"battery_pct"`
	HumidityStatus int       `json:"humidity_status"`
	StatusName     string    `json:"humidity_status_name"`
	UpdatedAt      time.Time `json:"updated_at"`
	NextMeasure    time.Time `json:"next_measure"`
	Measurements   int       `json:"measurements"`
	Failures       int       `json:"failures"`
	LastError      string    `json:"last_error,omitempty"`
}

// NewRouter serves the health and latest reading endpoints. Requests are
// access-logged to accessLog in combined log format.
func NewRouter(src StateSource, accessLog io.Writer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	api := &api{src: src, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/health", api.health).Methods(http.MethodGet)
	r.HandleFunc("/reading", api.reading).Methods(http.MethodGet)

	h := handlers.RecoveryHandler(
		handlers.PrintRecoveryStack(false),
		handlers.RecoveryLogger(recoveryLogger{logger}),
	)(r)
	return handlers.CombinedLoggingHandler(accessLog, h)
}

type api struct {
	src    StateSource
	logger *slog.Logger
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) reading(w http.ResponseWriter, _ *http.Request) {
	st := a.src.Snapshot()
	if !st.HasReading {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no reading yet"})
		return
	}

	a.writeJSON(w, http.StatusOK, readingResponse{
		DeviceMAC:      st.DeviceMAC,
		Temperature:    st.Reading.Temperature,
		Humidity:       st.Reading.Humidity,
		Battery:        st.Reading.Battery,
		HumidityStatus: int(st.Status),
		StatusName:     st.Status.String(),
		UpdatedAt:      st.LastUpdate,
		NextMeasure:    st.NextMeasure,
		Measurements:   st.Measurements,
		Failures:       st.Failures,
		LastError:      st.LastError,
	})
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to write response", "status", status, "error", err)
	}
}

// recoveryLogger reports handler panics through slog.
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("http handler panic", "panic", fmt.Sprint(v...))
}
