package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetdex/pkg/fault"
	"assetdex/services/catalog"
)

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssetTypes []string `json:"assetTypes"`
		Days       int      `json:"days"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	// Refresh never panics its caller: failures come back structured.
	result := a.activity.Refresh(r.Context(), req.AssetTypes, req.Days)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, result)
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	summary, err := a.activity.Summary(ctx)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (a *API) handleAssetActivity(w http.ResponseWriter, r *http.Request) {
	assetType, err := catalog.ParseAssetType(chi.URLParam(r, "type"))
	if err != nil {
		respondError(w, http.StatusBadRequest, fault.Validation("type", err.Error()))
		return
	}
	assetID := chi.URLParam(r, "id")

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	data, err := a.activity.AssetActivity(ctx, assetType, assetID)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	if data == nil {
		respondError(w, http.StatusNotFound, fault.Validation("id", "no activity recorded"))
		return
	}
	respondJSON(w, http.StatusOK, data)
}

func (a *API) handleUserActivity(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	data, err := a.activity.UserActivity(ctx, name)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	if data == nil {
		respondError(w, http.StatusNotFound, fault.Validation("name", "no activity recorded"))
		return
	}
	respondJSON(w, http.StatusOK, data)
}

func (a *API) handleAssetActivityCounts(w http.ResponseWriter, r *http.Request) {
	assetType, err := catalog.ParseAssetType(chi.URLParam(r, "type"))
	if err != nil {
		respondError(w, http.StatusBadRequest, fault.Validation("type", err.Error()))
		return
	}

	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.IDs) == 0 {
		respondError(w, http.StatusBadRequest, fault.Validation("ids", "at least one id is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	counts, err := a.activity.AssetActivityCounts(ctx, assetType, req.IDs)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (a *API) handleUserActivityCounts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Names []string `json:"names"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Names) == 0 {
		respondError(w, http.StatusBadRequest, fault.Validation("names", "at least one name is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	counts, err := a.activity.UserActivityCounts(ctx, req.Names)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"counts": counts})
}
