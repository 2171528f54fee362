/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the HR frontend

ROUTE GROUPS:
  /api/orgs/{org}/*     Organization-scoped configuration, requests, balances
  /api/scenarios/*      Demo organizations
  /api/admin/*          Admin operations

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are used when the configuration names none.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SessionHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/orgs/{org}", func(r chi.Router) {
			r.Get("/", h.GetOrganization)
			r.Put("/", h.SaveOrganization)

			r.Route("/variants", func(r chi.Router) {
				r.Get("/", h.ListVariants)
				r.Post("/", h.CreateVariant)
				r.Get("/{id}", h.GetVariant)
			})

			r.Route("/workflows", func(r chi.Router) {
				r.Get("/", h.ListWorkflows)
				r.Post("/", h.CreateWorkflow)
				r.Get("/{id}", h.GetWorkflow)
			})

			r.Route("/employees", func(r chi.Router) {
				r.Get("/", h.ListEmployees)
				r.Post("/", h.CreateEmployee)
				r.Post("/{user}/pending-sync", h.SyncPendingDeductions)
			})

			r.Route("/requests", func(r chi.Router) {
				r.Get("/", h.ListRequests)
				r.Post("/", h.SubmitRequest)
				r.Get("/{id}", h.GetRequest)
				r.Post("/{id}/approve", h.ApproveRequest)
				r.Post("/{id}/reject", h.RejectRequest)
				r.Post("/{id}/withdraw", h.WithdrawRequest)
				r.Post("/{id}/withdrawal/approve", h.ApproveWithdrawal)
				r.Post("/{id}/withdrawal/reject", h.RejectWithdrawal)
			})

			r.Get("/balances", h.ListBalances)
			r.Get("/balances/summary", h.LedgerSummaries)
			r.Get("/transactions", h.ListTransactions)
			r.Post("/deductions", h.Deduct)
			r.Post("/adjustments", h.CreateAdjustment)
			r.Post("/imports", h.ImportOpeningBalance)
			r.Post("/expiries", h.ExpireBalance)

			r.Post("/reconcile", h.Reconcile)
			r.Get("/consistency", h.CheckConsistency)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/time-based-approvals", h.RunTimeBasedApprovals)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
