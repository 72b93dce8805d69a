package server

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/theses-app/internal/auth"
	"github.com/diewo77/theses-app/internal/handlers"
	"github.com/diewo77/theses-app/internal/httpx"
	"github.com/diewo77/theses-app/internal/models"
	"github.com/diewo77/theses-app/internal/policy"
	"github.com/diewo77/theses-app/internal/services"
	"github.com/diewo77/theses-app/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, store storage.FileStore, log *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// The role resolver doubles as the per-request existence check.
	auth.SetRoleResolver(func(_ context.Context, uid uint) (string, bool) {
		var user models.User
		if err := db.Select("role").First(&user, uid).Error; err != nil {
			return "", false
		}
		return user.Role, true
	})

	// --- Health endpoints ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSONError(w, http.StatusServiceUnavailable, "degraded", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth endpoints
	authHandler := handlers.NewAuthHandler(db)
	authHandler.Register(mux)

	g := policy.NewGate()
	notifier := services.NewDBNotifier(db, log)

	sujetSvc := services.NewSujetService(db, g, notifier)
	memoireSvc := services.NewMemoireService(db, g, notifier)
	jurySvc := services.NewJuryService(db, g, notifier)
	sessionSvc := services.NewSessionService(db, g, notifier)
	paiementSvc := services.NewPaiementService(db, g, notifier, services.FirstAdminResolver(db))

	protect := func(h http.HandlerFunc) http.Handler {
		return auth.RequireAuth(h)
	}

	sh := handlers.NewSujetHandler(sujetSvc)
	mux.Handle("/sujets", protect(sh.Collection))
	mux.Handle("/sujets/validate", protect(sh.Validate))

	mh := handlers.NewMemoireHandler(memoireSvc, store)
	mux.Handle("/memoires", protect(mh.Collection))
	mux.Handle("/memoires/status", protect(mh.UpdateStatus))
	mux.Handle("/memoires/update", protect(mh.Update))
	mux.Handle("/memoires/final", protect(mh.UploadFinal))
	mux.Handle("/memoires/final/validate", protect(mh.ValidateFinal))
	mux.Handle("/memoires/documents", protect(mh.Documents))
	mux.Handle("/memoires/documents/comment", protect(mh.DocumentComment))
	mux.Handle("/memoires/historique", protect(mh.Historique))

	jh := handlers.NewJuryHandler(jurySvc)
	mux.Handle("/jurys", protect(jh.Collection))
	mux.Handle("/jurys/update", protect(jh.Update))
	mux.Handle("/jurys/delete", protect(jh.Delete))

	seh := handlers.NewSessionHandler(sessionSvc)
	mux.Handle("/sessions", protect(seh.Collection))
	mux.Handle("/sessions/visa", protect(seh.Visa))
	mux.Handle("/sessions/update", protect(seh.Update))
	mux.Handle("/sessions/delete", protect(seh.Delete))

	ph := handlers.NewPaiementHandler(paiementSvc)
	mux.Handle("/paiements", protect(ph.Collection))
	mux.Handle("/paiements/status", protect(ph.UpdateStatus))
	mux.Handle("/paiements/update", protect(ph.Update))
	mux.Handle("/paiements/stats", protect(ph.Stats))

	nh := handlers.NewNotificationHandler(db)
	mux.Handle("/notifications", protect(nh.List))
	mux.Handle("/notifications/read", protect(nh.MarkRead))

	return auth.Middleware(withRecover(withLogging(mux, log), log))
}

func withLogging(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func withRecover(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic", zap.Any("recover", rec), zap.String("path", r.URL.Path))
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
