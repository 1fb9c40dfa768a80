package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"geoguesser-backend/internal/handlers"
	"geoguesser-backend/internal/middleware"
	"geoguesser-backend/internal/websocket"
)

func New(
	adminAuth *middleware.AdminAuth,
	sessionHandler *handlers.SessionHandler,
	logHandler *handlers.LogHandler,
	mirrorHandler *handlers.MirrorHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *websocket.Hub,
	uploadsDir string,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Guess requests hit the AI provider, so they get their own limiter.
	guessLimiter := middleware.NewRateLimiter(20, time.Minute)
	loginLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Session Routes (public) ────
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Get("/{id}", sessionHandler.Get)
			r.Post("/{id}/image", sessionHandler.SubmitImage)
			r.Post("/{id}/chat", sessionHandler.Chat)
			r.Post("/{id}/feedback", sessionHandler.Feedback)
			r.Post("/{id}/correction", sessionHandler.Correction)
			r.Post("/{id}/reset", sessionHandler.Reset)

			r.Group(func(r chi.Router) {
				r.Use(guessLimiter.Middleware)
				r.Post("/{id}/guess", sessionHandler.RequestGuess)
			})
		})

		// ──── Log Routes ────
		r.Route("/logs", func(r chi.Router) {
			r.Post("/", logHandler.Create)
			r.Patch("/{id}", logHandler.Update)

			// Reading and wiping the full log is admin-only.
			r.Group(func(r chi.Router) {
				r.Use(adminAuth.Middleware)
				r.Get("/", logHandler.List)
				r.Delete("/", logHandler.DeleteAll)
			})
		})

		// ──── Local Mirror Routes ────
		r.Route("/mirror", func(r chi.Router) {
			r.Get("/{user}", mirrorHandler.List)
			r.Get("/{user}/export", mirrorHandler.Export)
			r.Delete("/{user}", mirrorHandler.Clear)
		})

		// ──── Admin Routes ────
		r.Route("/admin", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(loginLimiter.Middleware)
				r.Post("/login", adminHandler.Login)
			})
		})

		// ──── WebSocket (admin live feed) ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	// Stored images and thumbnails
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))

	return r
}
