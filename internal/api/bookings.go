/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/talentgrid/talentgrid/internal/attendance"
	"github.com/talentgrid/talentgrid/internal/models"
)

type bookingCreateRequest struct {
	SlotID string `json:"slot_id"`
}

func (a *API) handleBookingCreate(w http.ResponseWriter, r *http.Request) {
	var req bookingCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SlotID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	claims := mustClaims(r)
	created, err := a.bookings.Book(r.Context(), claims.UserID, req.SlotID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleBookingsList returns the caller's agenda, split into upcoming and past
// bookings. The shape depends on which side of the interview the caller is on.
func (a *API) handleBookingsList(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	switch {
	case claims.HasRole(string(models.RoleProvider)):
		view, err := a.agendas.ForProvider(r.Context(), claims.UserID)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case claims.HasRole(string(models.RoleCandidate)):
		view, err := a.agendas.ForCandidate(r.Context(), claims.UserID)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	default:
		writeError(w, http.StatusForbidden, "insufficient_role")
	}
}

func (a *API) handleBookingGet(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	found, err := a.bookings.Get(r.Context(), chi.URLParam(r, "bookingID"), claims.UserID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

type attendanceRequest struct {
	Participant string `json:"participant"`
	Kind        string `json:"kind"`
}

// handleAttendanceReport receives join/leave events from the conferencing
// callback, which authenticates with a service API key.
func (a *API) handleAttendanceReport(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	bookingID := chi.URLParam(r, "bookingID")
	participant := attendance.Participant(req.Participant)

	var (
		updated *models.Booking
		err     error
	)
	switch req.Kind {
	case "join":
		updated, err = a.tracker.RecordJoin(r.Context(), bookingID, participant)
	case "leave":
		updated, err = a.tracker.RecordLeave(r.Context(), bookingID, participant)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type completeRequest struct {
	Notes string `json:"notes"`
}

func (a *API) handleBookingComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if r.Body != nil {
		// Notes are optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	claims := mustClaims(r)
	updated, err := a.engine.ManualComplete(r.Context(), chi.URLParam(r, "bookingID"), claims.UserID, req.Notes)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleProviderStats(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	if !a.requireSelf(r, providerID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	months := 0
	if raw := r.URL.Query().Get("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 24 {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		months = parsed
	}

	monthly, err := a.stats.ProviderMonthly(r.Context(), providerID, months)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": monthly})
}
