package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/gallery/service/docs/swagger"
	"github.com/gallery/service/internal/config"
	appMiddleware "github.com/gallery/service/internal/middleware"
	"github.com/gallery/service/internal/posting"
)

// maxRequestBody fits a full batch of images plus form overhead.
const maxRequestBody = posting.MaxImagesPerRequest*posting.MaxImageSize + 1<<20

func newRouter(cfg *config.Config, log *slog.Logger, svc *posting.Service, objects *objectStore) (http.Handler, error) {
	web, err := posting.NewWebHandler(svc)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestSize(maxRequestBody))
	r.Use(appMiddleware.MethodOverride)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	if objects.staticHandler != nil {
		r.Handle(objects.staticPrefix+"*", objects.staticHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.GuardWrites(cfg.JWTSecret))
		web.Register(r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-HTTP-Method-Override"},
			MaxAge:         300,
		}))
		r.Use(appMiddleware.GuardWrites(cfg.JWTSecret))
		posting.NewAPIHandler(svc).Register(r)
	})

	return r, nil
}
