package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"assetdex/pkg/fault"
	"assetdex/services/catalog"
)

func (a *API) handleMasterCache(w http.ResponseWriter, r *http.Request) {
	var filter catalog.MasterFilter
	switch status := strings.TrimSpace(r.URL.Query().Get("status")); status {
	case "":
	case string(catalog.StatusActive):
		filter.Status = catalog.StatusActive
	case string(catalog.StatusArchived):
		filter.Status = catalog.StatusArchived
	default:
		respondError(w, http.StatusBadRequest, fault.Validation("status", "must be active or archived"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	master, err := a.cache.GetMasterCache(ctx, filter)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"assets": master})
}

func (a *API) handleRebuild(w http.ResponseWriter, r *http.Request) {
	result, err := a.cache.Rebuild(r.Context(), a.listerGate)
	if err != nil {
		a.logger.Printf("ERROR master cache rebuild: %v", err)
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (a *API) handleGetJobIndex(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	jobs, err := a.cache.GetJobIndex(ctx)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (a *API) handleUpdateJobIndex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Jobs []catalog.JobRecord `json:"jobs"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	// Memory-only on purpose: job status churns far too fast to pay
	// durable-store latency on every update.
	a.cache.UpdateJobIndex(req.Jobs)
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handlePersistJobIndex(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.cache.PersistJobIndex(ctx); err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	if a.s3 == nil || a.config.ExportBucket == "" {
		respondError(w, http.StatusNotImplemented, errors.New("export downloads are not configured"))
		return
	}

	assetType, err := catalog.ParseAssetType(chi.URLParam(r, "type"))
	if err != nil {
		respondError(w, http.StatusBadRequest, fault.Validation("type", err.Error()))
		return
	}
	assetID := chi.URLParam(r, "id")

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	master, err := a.cache.GetMasterCache(ctx, catalog.MasterFilter{})
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}

	var path string
	for _, entry := range master[assetType] {
		if entry.AssetID == assetID {
			path = entry.ExportFilePath
			break
		}
	}
	if path == "" {
		respondError(w, http.StatusNotFound, errors.New("no export file for asset"))
		return
	}

	url, err := a.s3.PresignGet(ctx, a.config.ExportBucket, path, a.config.ExportURLTTL)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}
