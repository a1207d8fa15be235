package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zerotrust-lab/pep-go/internal/handlers"
	"github.com/zerotrust-lab/pep-go/internal/httpx"
	"github.com/zerotrust-lab/pep-go/internal/identity"
	"github.com/zerotrust-lab/pep-go/internal/ids"
	mw2 "github.com/zerotrust-lab/pep-go/internal/mw"
	"github.com/zerotrust-lab/pep-go/internal/netzone"
	"github.com/zerotrust-lab/pep-go/internal/pdp"
	"github.com/zerotrust-lab/pep-go/internal/store"
)

type Options struct {
	EnableCORS bool
	// Protected store coordinates reported in traffic descriptors.
	StoreIP   string
	StorePort int
}

type Deps struct {
	Verifier *identity.Verifier
	IDS      *ids.Client
	PDP      *pdp.Client
	DB       store.Querier
	Zones    *netzone.Classifier
}

// BuildRouter assembles the enforcement pipeline. The Use chain is the
// ordered stage list: trace, logging, identity, then (under /api)
// intrusion inspection; each stage either passes an enriched context
// to the next or writes the terminal response itself. Policy consult
// and data access happen inside the resource handlers, so a request
// rejected at any stage never reaches a later one.
func BuildRouter(d Deps, opts Options, mws ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	// baseline
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if opts.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	for _, m := range mws {
		r.Use(m)
	}

	r.Use(mw2.Trace())
	r.Use(mw2.Logger(mw2.LogOpts{
		SkipPaths: []string{"/health", "/version"},
	}))
	r.Use(mw2.Identity(d.Verifier))

	r.Get("/health", healthCheckHandler)
	r.Get("/version", handlers.Version)

	res := handlers.NewResourceHandler(d.PDP, d.DB, d.Zones)
	ts := handlers.NewTrustScoreHandler(d.PDP)

	r.Route("/api", func(api chi.Router) {
		api.Use(mw2.Inspect(d.IDS, opts.StoreIP, opts.StorePort))

		api.Get("/trust-score", ts.ServeHTTP)

		api.Route("/db", func(db chi.Router) {
			for _, rs := range store.Resources {
				db.Get("/"+rs.Type, res.List(rs))
			}
			db.Get("/stats", res.Stats())
		})
	})

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   "PEP",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
