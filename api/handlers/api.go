package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/landviz/collab-api/api"
	"github.com/landviz/collab-api/config"
	"github.com/landviz/collab-api/databases"
	"github.com/landviz/collab-api/models"
	"github.com/landviz/collab-api/relay"
)

// App stores the router, relay hub and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Hub      *relay.Hub
	Config   config.Config
	dbHelper databases.DatabaseHelper
}

// SpectateConfigDB exposes the spectate config store for the scheduler
func (a *App) SpectateConfigDB() databases.SpectateConfigDatabase {
	return databases.NewSpectateConfigDatabase(a.dbHelper)
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.NewMiddlewareAuth()
	m.SetupGoGuardian()

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)

	sc := SpectateConfig{DB: databases.NewSpectateConfigDatabase(a.dbHelper)}
	ticket := Ticket{JWTSecret: []byte(a.Config.JWTSecret)}
	metrics := MetricsHandler{Hub: a.Hub}
	ws := relay.Handler{Hub: a.Hub, JWTSecret: []byte(a.Config.JWTSecret)}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// websocket relay: authenticated by the join ticket in the query string,
	// never by the REST bearer token
	r.HandleFunc("/ws", ws.ServeWS)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/tickets", api.Middleware(http.HandlerFunc(ticket.CreateTicketHandler))).Methods("POST")

	apiCreate.Handle("/spectate-configs", api.Middleware(http.HandlerFunc(sc.SpectateConfigsByOwnerHandler))).Methods("GET")
	apiCreate.Handle("/spectate-configs", api.Middleware(http.HandlerFunc(sc.CreateSpectateConfigHandler))).Methods("POST")
	apiCreate.Handle("/spectate-configs/{spectate_config_id}", api.Middleware(http.HandlerFunc(sc.SpectateConfigByIDHandler))).Methods("GET")
	apiCreate.Handle("/spectate-configs/{spectate_config_id}", api.Middleware(http.HandlerFunc(sc.UpdateSpectateConfigHandler))).Methods("PUT")
	apiCreate.Handle("/spectate-configs/{spectate_config_id}", api.Middleware(http.HandlerFunc(sc.DeleteSpectateConfigHandler))).Methods("DELETE")

	apiCreate.Handle("/metrics", api.Middleware(http.HandlerFunc(metrics.GetRouteMetrics))).Methods("GET")
	apiCreate.Handle("/metrics/summary", api.Middleware(http.HandlerFunc(metrics.GetMetricsSummary))).Methods("GET")
	apiCreate.Handle("/metrics/traces", api.Middleware(http.HandlerFunc(metrics.GetTraces))).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database, start the relay
// hub and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("collab-api has connected to the database")

	api.InitMetrics(1000)

	a.Hub = relay.NewHub()
	go a.Hub.Run()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
