/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (a *API) handleSlotsGenerate(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	if !a.requireSelf(r, providerID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	created, err := a.slotSvc.Generate(r.Context(), providerID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": created})
}

func (a *API) handleSlotsBookable(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	list, err := a.slotSvc.ListBookable(r.Context(), providerID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": list})
}

func (a *API) handleSlotsList(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	if !a.requireSelf(r, providerID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	list, err := a.slotSvc.ListAll(r.Context(), providerID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": list})
}

func (a *API) handleSlotDelete(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	if !a.requireSelf(r, providerID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := a.slotSvc.Delete(r.Context(), providerID, chi.URLParam(r, "slotID")); err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) handleDirectorySearch(w http.ResponseWriter, r *http.Request) {
	designation := strings.TrimSpace(r.URL.Query().Get("designation"))
	providers, err := a.directory.ListByDesignation(r.Context(), designation)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
}

func (a *API) handleDirectoryForCandidate(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	providers, err := a.directory.ForCandidate(r.Context(), claims.UserID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
}
