package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/datastore"
	"golang.org/x/time/rate"
)

const apiServer = "API-SERVER"

// APIServer represents the REST server which lets operators
// inspect and change the entry table without speaking the
// NetworkTables protocol
type APIServer struct {
	// APIPort is the port on which the API server listens.
	// Zero picks a free port, see Addr
	APIPort uint32

	// APITimeout bounds the handling of a request, in
	// milliseconds. Procedure calls are cancelled after it
	APITimeout int64

	// RateLimit is the number of requests per second accepted
	// with bursts of RateBurst. Zero disables rate limiting
	RateLimit float64
	RateBurst int

	// JWTSecret is the HS256 key bearer tokens must be signed
	// with. Empty disables authentication
	JWTSecret string

	// Server represents the HTTP server
	*http.Server

	// DataStore provides access to the entry table
	datastore.DataStore

	limiter  *rate.Limiter
	addrLock sync.Mutex
	addr     net.Addr
}

// NewAPIServer creates a new instance of APIServer and returns it.
// Note that it does not start listening on specified port yet.
func NewAPIServer(
	apiPort uint32,
	apiTimeout int64,
	rateLimit float64,
	rateBurst int,
	jwtSecret string,
	dataStore datastore.DataStore,
) *APIServer {
	s := &APIServer{
		APIPort:    apiPort,
		APITimeout: apiTimeout,
		RateLimit:  rateLimit,
		RateBurst:  rateBurst,
		JWTSecret:  jwtSecret,
		DataStore:  dataStore,
	}
	if rateLimit > 0 {
		burst := rateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rateLimit), burst)
	}
	return s
}

// Start starts the API server listening at the given port. If the
// port cannot be bound the error is returned.
func (s *APIServer) Start() error {
	listener, listenErr := net.Listen("tcp", fmt.Sprintf(":%d", s.APIPort))
	if listenErr != nil {
		return listenErr
	}
	s.addrLock.Lock()
	s.addr = listener.Addr()
	s.addrLock.Unlock()

	s.Server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.apiTimeout(),
		WriteTimeout: 2 * s.apiTimeout(),
	}
	go func() {
		logrus.WithFields(logrus.Fields{
			logfield.Component: apiServer,
			logfield.Event:     "START-REST-SERVER",
		}).Debugf("starting REST server at %s", listener.Addr())

		if err := s.Server.Serve(listener); err != http.ErrServerClosed {
			logrus.WithFields(logrus.Fields{
				logfield.ErrorReason: err.Error(),
				logfield.Component:   apiServer,
				logfield.Event:       "SERVE",
			}).Errorf("error while serving/shutting down REST server")
		}
	}()
	return nil
}

// Addr returns the address the server listens on once started
func (s *APIServer) Addr() net.Addr {
	s.addrLock.Lock()
	defer s.addrLock.Unlock()
	return s.addr
}

// Destroy kills the HTTP server within the given timeout. If it doesn't
// happen then it returns the error complaining the same.
func (s *APIServer) Destroy() error {
	if s.Server == nil {
		return nil
	}
	shutdownCtx, shutdownCancelFunc := context.WithTimeout(context.Background(), 1*time.Second)
	defer shutdownCancelFunc()
	logrus.WithFields(logrus.Fields{
		logfield.Component: apiServer,
		logfield.Event:     "DESTROY",
	}).Debugf("shutting down REST server")
	if shutdownErr := s.Server.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}
	return nil
}

// Handler returns the routes of the API wrapped in the
// rate-limiting and authentication middleware
func (s *APIServer) Handler() http.Handler {
	return s.setupRESTRoutes()
}

// setupRESTRoutes sets up the routes for the REST server. The
// health check stays reachable without a token or rate limit.
func (s *APIServer) setupRESTRoutes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/health", s.health).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.rateLimit, s.authenticate)
	api.HandleFunc("/entries", s.listEntries).Methods("GET")
	api.HandleFunc("/entries", s.createEntry).Methods("POST")
	api.HandleFunc("/entries", s.clearEntries).Methods("DELETE")
	api.HandleFunc("/entries/{id:[0-9]+}", s.getEntry).Methods("GET")
	api.HandleFunc("/entries/{id:[0-9]+}", s.deleteEntry).Methods("DELETE")
	api.HandleFunc("/entries/{id:[0-9]+}/value", s.updateValue).Methods("PUT")
	api.HandleFunc("/entries/{id:[0-9]+}/flags", s.updateFlags).Methods("PUT")
	api.HandleFunc("/procedures/{id:[0-9]+}", s.callProcedure).Methods("POST")
	api.HandleFunc("/clients", s.listClients).Methods("GET")
	return r
}

func (s *APIServer) apiTimeout() time.Duration {
	if s.APITimeout <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s.APITimeout) * time.Millisecond
}
