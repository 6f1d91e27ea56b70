/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/agenda"
	"github.com/talentgrid/talentgrid/internal/analytics"
	"github.com/talentgrid/talentgrid/internal/attendance"
	"github.com/talentgrid/talentgrid/internal/auth"
	"github.com/talentgrid/talentgrid/internal/booking"
	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/lifecycle"
	"github.com/talentgrid/talentgrid/internal/models"
	"github.com/talentgrid/talentgrid/internal/profile"
	"github.com/talentgrid/talentgrid/internal/slots"
)

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	jwtSecret []byte
	slotSvc   *slots.Service
	bookings  *booking.Service
	tracker   *attendance.Tracker
	engine    *lifecycle.Engine
	agendas   *agenda.Service
	directory *profile.Directory
	stats     *analytics.Service
	bus       *events.Bus
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, slotSvc *slots.Service, bookings *booking.Service, tracker *attendance.Tracker, engine *lifecycle.Engine, agendas *agenda.Service, directory *profile.Directory, stats *analytics.Service, bus *events.Bus, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		jwtSecret: jwtSecret,
		slotSvc:   slotSvc,
		bookings:  bookings,
		tracker:   tracker,
		engine:    engine,
		agendas:   agendas,
		directory: directory,
		stats:     stats,
		bus:       bus,
		logger:    logger,
	}
}

// Routes mounts API routes on provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Route("/providers", func(r chi.Router) {
				r.Get("/", a.handleDirectorySearch)

				r.Route("/{providerID}", func(r chi.Router) {
					r.Route("/slots", func(r chi.Router) {
						r.Get("/bookable", a.handleSlotsBookable)
						r.With(a.requireRoles(models.RoleProvider)).Get("/", a.handleSlotsList)
						r.With(a.requireRoles(models.RoleProvider)).Post("/generate", a.handleSlotsGenerate)
						r.With(a.requireRoles(models.RoleProvider)).Delete("/{slotID}", a.handleSlotDelete)
					})
					r.With(a.requireRoles(models.RoleProvider)).Get("/stats", a.handleProviderStats)
				})
			})

			pr.With(a.requireRoles(models.RoleCandidate)).Get("/directory", a.handleDirectoryForCandidate)

			pr.Route("/bookings", func(r chi.Router) {
				r.Get("/", a.handleBookingsList)
				r.With(a.requireRoles(models.RoleCandidate)).Post("/", a.handleBookingCreate)

				r.Route("/{bookingID}", func(r chi.Router) {
					r.Get("/", a.handleBookingGet)
					r.Get("/presence", a.handleBookingPresence)
					r.With(a.requireRoles(models.RoleService)).Post("/attendance", a.handleAttendanceReport)
					r.With(a.requireRoles(models.RoleProvider)).Post("/complete", a.handleBookingComplete)
				})
			})
		})
	})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.MiddlewareWithJWT(a.db, a.jwtSecret)
}

func (a *API) requireRoles(allowed ...models.RoleName) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[string(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range claims.Roles {
				if _, exists := allowedSet[role]; exists {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient_role")
		})
	}
}

// requireSelf guards provider-scoped routes: the authenticated provider must
// be the provider addressed by the path. Service callers pass regardless.
func (a *API) requireSelf(r *http.Request, providerID string) bool {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return false
	}
	if claims.HasRole(string(models.RoleService)) {
		return true
	}
	return claims.UserID == providerID
}

// mustClaims is only called behind the auth middleware, which guarantees
// claims are present.
func mustClaims(r *http.Request) *auth.Claims {
	claims, _ := auth.ClaimsFromContext(r.Context())
	return claims
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeDomainError maps the scheduling sentinels onto HTTP statuses.
func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, models.ErrAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked")
	case errors.Is(err, models.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state")
	case errors.Is(err, models.ErrTooLate):
		writeError(w, http.StatusUnprocessableEntity, "booking_window_closed")
	case errors.Is(err, models.ErrProviderInactive):
		writeError(w, http.StatusUnprocessableEntity, "provider_inactive")
	case errors.Is(err, models.ErrInvalidOperation):
		writeError(w, http.StatusBadRequest, "invalid_operation")
	default:
		a.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}
