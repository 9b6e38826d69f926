/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for a browser front desk

ROUTE GROUPS:
  /api/resources/*      Catalog: books, magazines, movies, copies
  /api/patrons/*        Members and casual users, holdings
  /api/loans/*          Open, list, renew
  /api/consultations/*  Open, list
  /api/returns          Close a loan or consultation
  /api/status           Unit counts for the whole catalog
  /api/identity/{id}    National ID check
  /api/history          Stored snapshot revisions (sqlite only)
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/libraryd: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. An empty
// corsOrigins allows the local development front ends.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/resources", func(r chi.Router) {
			r.Get("/", h.ListResources)
			r.Get("/search", h.SearchResources)
			r.Post("/books", h.CreateBook)
			r.Post("/magazines", h.CreateMagazine)
			r.Post("/movies", h.CreateMovie)
			r.Get("/{id}", h.GetResource)
			r.Delete("/{id}", h.DeleteResource)
			r.Post("/{id}/copies", h.AddCopies)
			r.Put("/{id}/copies", h.SetMovieCopies)
			r.Delete("/{id}/copies/{copy}", h.RemoveCopy)
		})

		r.Route("/patrons", func(r chi.Router) {
			r.Get("/", h.ListPatrons)
			r.Post("/members", h.RegisterMember)
			r.Post("/casual", h.RegisterCasualUser)
			r.Get("/{nid}", h.GetPatron)
			r.Delete("/{nid}", h.DeletePatron)
			r.Get("/{nid}/holdings", h.GetHoldings)
			r.Post("/{nid}/return-all", h.ReturnAll)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Get("/", h.ListLoans)
			r.Post("/", h.OpenLoan)
			r.Post("/{id}/renew", h.RenewLoan)
		})

		r.Route("/consultations", func(r chi.Router) {
			r.Get("/", h.ListConsultations)
			r.Post("/", h.OpenConsultation)
		})

		r.Post("/returns", h.Return)
		r.Get("/status", h.GetStatus)
		r.Get("/identity/{id}", h.CheckIdentity)
		r.Get("/history", h.ListHistory)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetLibrary)
		})
	})

	return r
}
