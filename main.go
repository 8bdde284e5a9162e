package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/landviz/collab-api/api/handlers"
	"github.com/landviz/collab-api/api/scheduler"

	"go.uber.org/zap"

	"github.com/landviz/collab-api/config"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil { //initialize database, relay hub and router
		log.Fatal(err)
	}

	s := scheduler.NewScheduler(a.Hub, a.SpectateConfigDB())
	s.Start()
	defer s.Stop()

	port := os.Getenv("PORT")
	baseURL := os.Getenv("BASE_URL")
	zap.S().Infow("collab-api is up and running",
		"port", port,
		"url", baseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", port), a.Router))
}
