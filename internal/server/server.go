/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/agenda"
	"github.com/talentgrid/talentgrid/internal/analytics"
	"github.com/talentgrid/talentgrid/internal/api"
	"github.com/talentgrid/talentgrid/internal/attendance"
	"github.com/talentgrid/talentgrid/internal/audit"
	"github.com/talentgrid/talentgrid/internal/booking"
	"github.com/talentgrid/talentgrid/internal/cache"
	"github.com/talentgrid/talentgrid/internal/config"
	"github.com/talentgrid/talentgrid/internal/db"
	"github.com/talentgrid/talentgrid/internal/eventbus"
	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/lifecycle"
	"github.com/talentgrid/talentgrid/internal/meeting"
	"github.com/talentgrid/talentgrid/internal/profile"
	"github.com/talentgrid/talentgrid/internal/slots"
	"github.com/talentgrid/talentgrid/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db       *gorm.DB
	cache    *cache.Cache
	bus      *events.Bus
	engine   *lifecycle.Engine
	slotSvc  *slots.Service
	bookings *booking.Service
	tracker  *attendance.Tracker
	agendas  *agenda.Service
	auditSvc *audit.Service
	bridge   *eventbus.Bridge
	api      *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	// Presence sockets outlive the request timeout; skip them.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 so presence sockets are not cut off; the
		// middleware timeout covers plain routes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		entityCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
			s.cache = cache.Disabled(s.logger)
		} else {
			s.cache = entityCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	} else {
		s.cache = cache.Disabled(s.logger)
	}

	loc := s.cfg.Location()
	policy := lifecycle.Policy{
		BookingLead:         time.Duration(s.cfg.BookingLeadMinutes) * time.Minute,
		MinAttendance:       time.Duration(s.cfg.MinAttendanceMinutes) * time.Minute,
		NoShowGrace:         time.Duration(s.cfg.NoShowGraceMinutes) * time.Minute,
		ManualDuration:      time.Duration(s.cfg.ManualDurationMinutes) * time.Minute,
		ManualCompleteDelay: time.Duration(s.cfg.ManualCompleteDelayMinutes) * time.Minute,
		JoinWindowBefore:    time.Duration(s.cfg.JoinWindowBeforeMinutes) * time.Minute,
	}
	s.engine = lifecycle.NewEngine(database, s.bus, policy, loc, s.logger)

	generation := slots.GenerationPolicy{
		WindowDays:       s.cfg.SlotWindowDays,
		DayStartHour:     s.cfg.SlotDayStartHour,
		DayEndHour:       s.cfg.SlotDayEndHour,
		IncrementMinutes: s.cfg.SlotIncrementMinutes,
	}
	s.slotSvc = slots.NewService(database, s.bus, s.cache, loc, generation, policy.BookingLead, s.logger)

	meetings := meeting.NewGenerator(s.cfg.MeetingBaseURL)
	s.bookings = booking.NewService(database, s.bus, s.engine, meetings, loc, s.logger)
	s.tracker = attendance.NewTracker(database, s.bus, s.engine, loc, s.logger)
	s.agendas = agenda.NewService(database, s.engine, loc, s.logger)
	directory := profile.NewDirectory(database, s.bus, s.cache, s.logger)
	stats := analytics.NewService(database, s.logger)

	s.auditSvc = audit.NewService(database, s.bus, s.logger)

	if s.cfg.NATSURL != "" {
		bridge, err := eventbus.NewBridge(s.cfg.NATSURL, s.bus, s.logger)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		s.bridge = bridge
		s.DeferClose(func() error { return s.bridge.Close() })
	}

	s.api = api.New(database, []byte(s.cfg.JWTSigningKey), s.slotSvc, s.bookings, s.tracker, s.engine, s.agendas, directory, stats, s.bus, s.logger)
	return nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.auditSvc.Start(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.cache.RunInvalidator(ctx, s.bus)
	}()

	if s.bridge != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.bridge.Run(ctx)
		}()
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

// HTTPServer exposes the underlying http.Server for lifecycle control.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
