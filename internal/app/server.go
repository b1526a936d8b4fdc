package app

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/riskguard/internal/call"
	"github.com/MrWong99/riskguard/internal/notify"
	"github.com/MrWong99/riskguard/internal/store"
)

// registerAPI adds the host-shell endpoints to mux. The API is the surface a
// device shell (or an operator) drives the core through: number analysis,
// the monitoring toggle, notification action callbacks, history queries, and
// the digest trigger.
func (a *App) registerAPI(mux *http.ServeMux) {
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/analyze", a.handleAnalyze)
	mux.HandleFunc("GET /v1/monitoring", a.handleMonitoringGet)
	mux.HandleFunc("PUT /v1/monitoring", a.handleMonitoringPut)
	mux.HandleFunc("POST /v1/actions", a.handleAction)
	mux.HandleFunc("GET /v1/history", a.handleHistory)
	mux.HandleFunc("GET /v1/recording", a.handleRecording)
	mux.HandleFunc("POST /v1/digest/run", a.handleDigestRun)
	mux.HandleFunc("GET /v1/digest/schedule", a.handleDigestScheduleGet)
	mux.HandleFunc("PUT /v1/digest/schedule", a.handleDigestSchedulePut)
}

// handleAnalyze scores a number with the offline heuristic.
func (a *App) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	analysis, err := call.AnalyzeNumber(number)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"number":  call.FormatPhoneNumber(number),
		"score":   analysis.Score,
		"level":   call.RiskLevel(analysis.Score),
		"factors": analysis.Factors,
	})
}

func (a *App) handleMonitoringGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": a.coordinator.Monitoring()})
}

func (a *App) handleMonitoringPut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var err error
	if body.Enabled {
		err = a.coordinator.StartMonitoring(r.Context())
	} else {
		err = a.coordinator.StopMonitoring(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": body.Enabled})
}

// handleAction executes a notification follow-up action (block, report,
// save, view-details, view-report) against a phone number.
func (a *App) handleAction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
		Number string `json:"number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	action := notify.Action(body.Action)
	if !action.IsValid() || body.Number == "" {
		http.Error(w, `{"error":"unknown action or missing number"}`, http.StatusBadRequest)
		return
	}
	if err := a.dispatcher.HandleAction(r.Context(), action, body.Number); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHistory lists call history, optionally filtered by a search query or
// a minimum risk score.
func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	history := a.store.History()
	switch {
	case q.Get("query") != "":
		records, err := history.Search(ctx, q.Get("query"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	case q.Get("min_risk") != "":
		minScore, err := strconv.Atoi(q.Get("min_risk"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		records, err := history.FilterByRisk(ctx, minScore)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	default:
		records, err := history.All(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func (a *App) handleRecording(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"path": a.coordinator.CurrentRecordingPath()})
}

func (a *App) handleDigestScheduleGet(w http.ResponseWriter, _ *http.Request) {
	sched := a.digest.Schedule()
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": sched.Enabled,
		"hour":    sched.Hour,
		"minute":  sched.Minute,
	})
}

func (a *App) handleDigestSchedulePut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
		Hour    int  `json:"hour"`
		Minute  int  `json:"minute"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Hour < 0 || body.Hour > 23 || body.Minute < 0 || body.Minute > 59 {
		http.Error(w, `{"error":"hour must be 0-23 and minute 0-59"}`, http.StatusBadRequest)
		return
	}
	sched := store.DigestSchedule{Enabled: body.Enabled, Hour: body.Hour, Minute: body.Minute}
	if err := a.digest.SetSchedule(r.Context(), sched); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": sched.Enabled,
		"hour":    sched.Hour,
		"minute":  sched.Minute,
	})
}

func (a *App) handleDigestRun(w http.ResponseWriter, r *http.Request) {
	if err := a.digest.RunNow(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encoding failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
