package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"campaigner/internal/domain"
	"campaigner/internal/scheduler"
	"campaigner/internal/service"

	"github.com/gorilla/mux"
)

type API struct {
	Svc        *service.CampaignService
	Sched      *scheduler.Scheduler
	CronSecret string
}

func (a *API) Register(mux *mux.Router) {
	mux.HandleFunc("/v1/campaigns", a.handleCreateCampaign).Methods(http.MethodPost)
	mux.HandleFunc("/v1/campaigns/{id}", a.handleGetCampaign).Methods(http.MethodGet)
	mux.HandleFunc("/v1/campaigns/{id}/send", a.handleSendCampaign).Methods(http.MethodPost)
	mux.HandleFunc("/v1/campaigns/{id}/pause", a.handlePauseCampaign).Methods(http.MethodPost)
	mux.HandleFunc("/v1/campaigns/{id}/resume", a.handleResumeCampaign).Methods(http.MethodPost)
	mux.HandleFunc("/v1/send", a.handleSend).Methods(http.MethodPost)
	mux.HandleFunc("/v1/send/one", a.handleSendOne).Methods(http.MethodPost)
	mux.HandleFunc("/v1/cron/campaigns", RequireSecret(a.CronSecret, a.handleCron)).Methods(http.MethodPost)
}

func (a *API) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := a.Svc.CreateCampaign(r.Context(), req)
	if err != nil {
		slog.Error("create campaign failed", "err", err, "name", req.Name)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	c, err := a.Svc.GetCampaign(r.Context(), id)
	if errors.Is(err, domain.ErrCampaignNotFound) {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get campaign failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleSendCampaign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}

	summary, err := a.Svc.SendCampaign(r.Context(), id)
	if err != nil {
		a.writeSendError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handlePauseCampaign(w http.ResponseWriter, r *http.Request) {
	a.flipStatus(w, r, a.Svc.PauseCampaign)
}

func (a *API) handleResumeCampaign(w http.ResponseWriter, r *http.Request) {
	a.flipStatus(w, r, a.Svc.ResumeCampaign)
}

func (a *API) flipStatus(w http.ResponseWriter, r *http.Request, flip func(ctx context.Context, id string) error) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	err := flip(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrCampaignNotFound):
		http.Error(w, ErrNotFound, http.StatusNotFound)
	case errors.Is(err, domain.ErrNotSendable):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		slog.Error("campaign status change failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (a *API) handleSend(w http.ResponseWriter, r *http.Request) {
	var req domain.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := a.Svc.SendAdHoc(r.Context(), req)
	if err != nil {
		a.writeSendError(w, err, req.ListID)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleSendOne(w http.ResponseWriter, r *http.Request) {
	var req domain.SendOneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sent, err := a.Svc.SendOne(r.Context(), req)
	if errors.Is(err, service.ErrNotConfigured) {
		http.Error(w, ErrServiceNotConfigd, http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		slog.Error("send one failed", "err", err, "to", req.To)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": sent})
}

func (a *API) handleCron(w http.ResponseWriter, r *http.Request) {
	results, err := a.Sched.RunOnce(r.Context())
	if err != nil {
		slog.Error("cron run failed", "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"processed": len(results),
		"campaigns": results,
	})
}

func (a *API) writeSendError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, domain.ErrCampaignNotFound):
		http.Error(w, ErrNotFound, http.StatusNotFound)
	case errors.Is(err, domain.ErrNotSendable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrEmptyAudience), errors.Is(err, domain.ErrNoAudience):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("send failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
