package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Ravindra2377/KPR/internal/collab"
	"github.com/Ravindra2377/KPR/internal/config"
	"github.com/Ravindra2377/KPR/internal/database"
	"github.com/Ravindra2377/KPR/internal/notifications"
	"github.com/Ravindra2377/KPR/internal/pods"
	"github.com/Ravindra2377/KPR/internal/rooms"
	"github.com/Ravindra2377/KPR/internal/server"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
)

type Services struct {
	Notifications *notifications.Service
	Rooms         *rooms.Service
	Pods          *pods.Service
	Collab        *collab.Service
}

type App struct {
	log            *logrus.Logger
	repo           database.Repository
	hub            *server.Hub
	svc            Services
	metrics        http.Handler
	mux            *http.Server
	signingKey     []byte
	allowedOrigins []string
}

func NewApp(logger *logrus.Logger, hub *server.Hub, repo database.Repository, svc Services, metrics http.Handler, cfg *config.Config) *App {
	s := &App{
		log:            logger,
		repo:           repo,
		hub:            hub,
		svc:            svc,
		metrics:        metrics,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(s.routes())

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: s.errorHandler(h),
	}
	return s
}

func (s *App) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.healthCheck)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/debug/vars", s.metrics)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(s.authMiddleware)

		pr.Get("/ws", s.serveWs)

		pr.Route("/api", func(ar chi.Router) {
			ar.Get("/notifications", s.listNotifications)
			ar.Get("/notifications/unread", s.unreadNotifications)
			ar.Patch("/notifications/read", s.markAllNotificationsRead)
			ar.Patch("/notifications/{id}/read", s.markNotificationRead)

			ar.Post("/rooms/direct", s.openDirectRoom)
			ar.Post("/rooms/{id}/read", s.markRoomRead)
			ar.Get("/rooms/{id}/messages", s.roomMessages)
			ar.Post("/rooms/{id}/messages", s.sendRoomMessage)

			ar.Get("/presence/{userId}", s.presence)

			ar.Route("/pods", func(pr chi.Router) {
				pr.Post("/", s.createPod)
				pr.Get("/owned", s.ownedPods)
				pr.Get("/mine", s.memberPods)
				pr.Get("/{id}", s.getPod)
				pr.Post("/{id}/apply", s.applyToPod)
				pr.Post("/{id}/withdraw", s.withdrawApplication)
				pr.Post("/{id}/applicants/{applicantId}/approve", s.approveApplicant)
				pr.Post("/{id}/applicants/{applicantId}/reject", s.rejectApplicant)
				pr.Post("/{id}/invite", s.inviteToPod)
				pr.Post("/{id}/invites/{inviteId}/accept", s.acceptInvite)
				pr.Post("/{id}/invites/{inviteId}/decline", s.declineInvite)
				pr.Post("/{id}/members/{userId}/remove", s.removeMember)
				pr.Put("/{id}/roles", s.updateRoles)
				pr.Post("/{id}/boost", s.boostPod)
			})

			ar.Route("/collab", func(cr chi.Router) {
				cr.Post("/", s.sendCollabRequest)
				cr.Get("/incoming", s.incomingCollabRequests)
				cr.Get("/outgoing", s.outgoingCollabRequests)
				cr.Post("/{id}/accept", s.acceptCollabRequest)
				cr.Post("/{id}/reject", s.rejectCollabRequest)
				cr.Post("/{id}/cancel", s.cancelCollabRequest)
			})
		})
	})

	return r
}

func (s *App) Handler() http.Handler {
	return s.mux.Handler
}

func (s *App) Start() error {
	s.log.Infof("starting server on %s", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
