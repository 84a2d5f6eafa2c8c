// Command dc-dashboard serves the live run-status dashboard: a
// WebSocket broadcaster and JSON snapshot endpoint that the classify,
// acquire, and screen commands push run events into over HTTP.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/dataset-commons/dc-pipeline/internal/dashboard"
	"github.com/dataset-commons/dc-pipeline/internal/logging"
)

func main() {
	addr := flag.String("addr", ":8088", "address to listen on")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	level, _ := logging.ParseLevel(*logLevel)
	logger := logging.New(level, logging.TextFormat, os.Stderr).WithComponent("dc-dashboard")

	srv := dashboard.NewServer(logger)
	router := mux.NewRouter()
	srv.Mount(router)
	router.PathPrefix("/").Handler(http.FileServer(http.Dir("web/dashboard")))

	logger.Info("dashboard listening", map[string]interface{}{"addr": *addr})
	if err := http.ListenAndServe(*addr, router); err != nil {
		fmt.Fprintln(os.Stderr, "dc-dashboard:", err)
		os.Exit(1)
	}
}
