// Package api exposes the voting registry over HTTP: session lifecycle,
// vote commitments and reveals, eligibility rosters and proof generation,
// delegation proof checks, and the admin surface (pause switch, roles,
// eligibility root).
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/constitutional-platform/voting-registry/registry"
	stg "github.com/constitutional-platform/voting-registry/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.vocdoni.io/dvote/log"
)

// APIConfig type represents the configuration for the API HTTP server.
// It includes the host, port and the registry and storage instances.
type APIConfig struct {
	Host     string
	Port     int
	Registry *registry.Registry
	Storage  *stg.Storage
}

// API type represents the API HTTP server.
type API struct {
	router   *chi.Mux
	registry *registry.Registry
	storage  *stg.Storage
}

// New creates a new API instance with the given configuration and starts the
// HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Registry == nil {
		return nil, fmt.Errorf("missing registry instance")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	a := &API{
		registry: conf.Registry,
		storage:  conf.Storage,
	}

	a.initRouter()
	go func() {
		log.Infow("Starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})

	log.Infow("register handler", "endpoint", SessionsEndpoint, "method", "POST")
	a.router.Post(SessionsEndpoint, a.createSession)
	log.Infow("register handler", "endpoint", SessionsEndpoint, "method", "GET")
	a.router.Get(SessionsEndpoint, a.listSessions)
	log.Infow("register handler", "endpoint", SessionEndpoint, "method", "GET")
	a.router.Get(SessionEndpoint, a.session)
	log.Infow("register handler", "endpoint", SessionTallyEndpoint, "method", "GET")
	a.router.Get(SessionTallyEndpoint, a.sessionTally)
	log.Infow("register handler", "endpoint", CommitmentsEndpoint, "method", "POST")
	a.router.Post(CommitmentsEndpoint, a.commitVote)
	log.Infow("register handler", "endpoint", RevealsEndpoint, "method", "POST")
	a.router.Post(RevealsEndpoint, a.revealVote)
	log.Infow("register handler", "endpoint", FinalizeEndpoint, "method", "POST")
	a.router.Post(FinalizeEndpoint, a.finalizeSession)

	log.Infow("register handler", "endpoint", RostersEndpoint, "method", "POST")
	a.router.Post(RostersEndpoint, a.newRoster)
	log.Infow("register handler", "endpoint", RosterParticipantsEnpoint, "method", "POST")
	a.router.Post(RosterParticipantsEnpoint, a.addRosterParticipants)
	log.Infow("register handler", "endpoint", RosterRootEndpoint, "method", "GET")
	a.router.Get(RosterRootEndpoint, a.rosterRoot)
	log.Infow("register handler", "endpoint", RosterSizeEndpoint, "method", "GET")
	a.router.Get(RosterSizeEndpoint, a.rosterSize)
	log.Infow("register handler", "endpoint", RosterEndpoint, "method", "DELETE")
	a.router.Delete(RosterEndpoint, a.deleteRoster)
	log.Infow("register handler", "endpoint", RosterProofEndpoint, "method", "GET")
	a.router.Get(RosterProofEndpoint, a.rosterProof)

	log.Infow("register handler", "endpoint", EligibilityRootEndpoint, "method", "GET")
	a.router.Get(EligibilityRootEndpoint, a.eligibilityRoot)
	log.Infow("register handler", "endpoint", EligibilityRootEndpoint, "method", "POST")
	a.router.Post(EligibilityRootEndpoint, a.setEligibilityRoot)

	log.Infow("register handler", "endpoint", VerifyDelegationEndpoint, "method", "POST")
	a.router.Post(VerifyDelegationEndpoint, a.verifyDelegation)
	log.Infow("register handler", "endpoint", VerifyBatchEndpoint, "method", "POST")
	a.router.Post(VerifyBatchEndpoint, a.verifyBatch)

	log.Infow("register handler", "endpoint", PauseEndpoint, "method", "POST")
	a.router.Post(PauseEndpoint, a.pause)
	log.Infow("register handler", "endpoint", UnpauseEndpoint, "method", "POST")
	a.router.Post(UnpauseEndpoint, a.unpause)
	log.Infow("register handler", "endpoint", PausedEndpoint, "method", "GET")
	a.router.Get(PausedEndpoint, a.paused)
	log.Infow("register handler", "endpoint", RolesEndpoint, "method", "POST")
	a.router.Post(RolesEndpoint, a.setRole)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}
