package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/duxbank/internal/infra/tracing"
)

// NewRouter constructs a chi router with all API endpoints registered.
func NewRouter(d Deps) http.Handler {
	h := NewHandler(d)
	limit := newUserLimiter(d.Limits)

	r := chi.NewRouter()
	r.Use(tracing.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/users/{userId}", func(r chi.Router) {
		r.Get("/", h.GetAccountHandler)
		r.Get("/balance", h.GetBalanceHandler)
		r.Get("/collection", h.GetCollectionHandler)

		if d.History != nil {
			r.Get("/history", h.HistoryHandler)
		}

		r.Group(func(r chi.Router) {
			r.Use(limit.Middleware)

			r.Post("/", h.JoinHandler)
			r.Post("/deposit", h.DepositHandler)
			r.Post("/withdraw", h.WithdrawHandler)
			r.Post("/pull", h.PullHandler)
			r.Post("/bet", h.BetHandler)
		})
	})

	r.Get("/pool", h.PoolHandler)
	r.Get("/events", h.EventsHandler)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/daily-reset", h.DailyResetHandler)
		r.Post("/regen", h.RegenHandler)
		r.Post("/save", h.SaveHandler)
	})

	return r
}
