package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/connection"
	"github.com/smukkama/water-quality-server/internal/export"
	"github.com/smukkama/water-quality-server/internal/monitoring"
	"github.com/smukkama/water-quality-server/internal/protocol"
	"github.com/smukkama/water-quality-server/internal/quality"
)

const maxBodyBytes = 1 << 16

// SubmitResponse is returned for accepted readings
type SubmitResponse struct {
	ID uuid.UUID `json:"id"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// handleError maps service errors onto status codes
func (rm *RouteManager) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, monitoring.ErrInvalidReading):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, monitoring.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, monitoring.ErrSummariesUnavailable):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		rm.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (rm *RouteManager) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rm *RouteManager) submitReadingHandler(w http.ResponseWriter, r *http.Request) {
	var data protocol.ReadingData
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	in, err := monitoring.FromData(&data)
	if err != nil {
		rm.handleError(w, r, err)
		return
	}

	id, err := rm.service.SubmitReading(r.Context(), in)
	if err != nil {
		rm.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{ID: id})
}

func (rm *RouteManager) simulateReadingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := rm.service.SubmitSimulatedReading(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		rm.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{ID: id})
}

func (rm *RouteManager) latestWaterQualityHandler(w http.ResponseWriter, r *http.Request) {
	latest, err := rm.service.LatestReadingWithStatus(r.Context())
	if err != nil {
		rm.handleError(w, r, err)
		return
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "no readings recorded yet")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (rm *RouteManager) getReadingsHandler(w http.ResponseWriter, r *http.Request) {
	hours, err := queryFloat(r, "hours")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := rm.service.RecentReadings(r.Context(), hours)
	if err != nil {
		rm.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (rm *RouteManager) exportReadingsHandler(w http.ResponseWriter, r *http.Request) {
	hours, err := queryFloat(r, "hours")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := rm.service.RecentReadings(r.Context(), hours)
	if err != nil {
		rm.handleError(w, r, err)
		return
	}

	data, err := export.ReadingsWorkbook(readings)
	if err != nil {
		rm.handleError(w, r, err)
		return
	}

	filename := fmt.Sprintf("readings-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (rm *RouteManager) thresholdsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, quality.Thresholds)
}

func (rm *RouteManager) latestDiseaseRiskHandler(w http.ResponseWriter, r *http.Request) {
	prediction, err := rm.service.LatestDiseaseRisk(r.Context())
	if err != nil {
		rm.handleError(w, r, err)
		return
	}
	if prediction == nil {
		writeError(w, http.StatusNotFound, "no risk predictions yet")
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

func (rm *RouteManager) getAlertsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pageSize, err := queryInt(r, "pageSize")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	alerts, err := rm.service.ActiveAlerts(r.Context(), page, pageSize)
	if err != nil {
		rm.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (rm *RouteManager) acknowledgeAlertHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	if err := rm.service.AcknowledgeAlert(r.Context(), id); err != nil {
		rm.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rm *RouteManager) hourlySummariesHandler(w http.ResponseWriter, r *http.Request) {
	hours, err := queryInt(r, "hours")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := rm.service.HourlySummaries(r.Context(), hours)
	if err != nil {
		rm.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (rm *RouteManager) dailySummariesHandler(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := rm.service.DailySummaries(r.Context(), days)
	if err != nil {
		rm.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (rm *RouteManager) stationsHandler(w http.ResponseWriter, r *http.Request) {
	stations := []connection.StationInfo{}
	if rm.stations != nil {
		stations = append(stations, rm.stations.Snapshot()...)
	}
	writeJSON(w, http.StatusOK, stations)
}

// queryInt parses an optional integer query parameter; absent means 0
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}
