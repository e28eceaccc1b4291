package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"exam-simulator/internal/app"
	"exam-simulator/internal/domain"
)

// NewRouter mounts the websocket endpoint and the JSON API.
func NewRouter(service *app.ExamService, log zerolog.Logger) *mux.Router {
	api := &apiHandler{service: service, log: log.With().Str("component", "api").Logger()}
	ws := NewWSHandler(service, log)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS)

	sub := r.PathPrefix("/api").Subrouter()
	sub.HandleFunc("/sessions/{id}", api.view).Methods(http.MethodGet)
	sub.HandleFunc("/sessions/{id}/result", api.result).Methods(http.MethodGet)
	sub.HandleFunc("/banks/{id}/stats", api.bankStats).Methods(http.MethodGet)
	sub.HandleFunc("/banks/{id}/reload", api.reloadBank).Methods(http.MethodPost)
	sub.HandleFunc("/history", api.history).Methods(http.MethodGet)
	return r
}

type apiHandler struct {
	service *app.ExamService
	log     zerolog.Logger
}

func (h *apiHandler) view(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), mux.Vars(r)["id"])
	h.respond(w, view, err)
}

func (h *apiHandler) result(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Result(r.Context(), mux.Vars(r)["id"])
	h.respond(w, result, err)
}

func (h *apiHandler) bankStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.BankStats(r.Context(), mux.Vars(r)["id"])
	h.respond(w, stats, err)
}

func (h *apiHandler) reloadBank(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.ReloadBank(r.Context(), mux.Vars(r)["id"])
	h.respond(w, stats, err)
}

func (h *apiHandler) history(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.History(r.Context())
	h.respond(w, records, err)
}

func (h *apiHandler) respond(w http.ResponseWriter, body any, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Msg("request failed")
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(errorPayload{Message: err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(err error) int {
	var integrity *domain.DataIntegrityError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrBankNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrResultNotReady), errors.Is(err, domain.ErrExamFinished):
		return http.StatusConflict
	case errors.As(err, &integrity):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
