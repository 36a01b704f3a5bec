package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"cardforge/internal/http/handlers"
	"cardforge/internal/infra"
	"cardforge/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(strings.Split(cfg.CORSOrigins, ",")),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Post("/generate-game", app.GenerateGame)
	r.Get("/game-status/{job_id}", app.GameStatus)
	r.Post("/regenerate/{job_id}", app.Regenerate)

	return r
}
