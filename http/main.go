package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"dev.hon.one/netcrawl/common"
	"dev.hon.one/netcrawl/crawler"
	"dev.hon.one/netcrawl/util"
)

// ProgressFunc - Source of the crawl progress shown on the status page.
type ProgressFunc func() crawler.Progress

// NewRegistry - Metrics registry with Go runtime and exporter info metrics.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	util.NewExporterMetric(registry, common.PrometheusNamespace, common.AppVersion)
	return registry
}

// NewHandler - Routes for the info page, crawl status and metrics.
func NewHandler(registry *prometheus.Registry, progress ProgressFunc) http.Handler {
	var mainServeMux http.ServeMux
	mainServeMux.HandleFunc("/", handleOtherRequest)
	mainServeMux.HandleFunc("/status", func(response http.ResponseWriter, request *http.Request) {
		handleStatusRequest(response, request, progress)
	})
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	mainServeMux.HandleFunc("/metrics", func(response http.ResponseWriter, request *http.Request) {
		log.WithFields(log.Fields{
			"endpoint": "metrics",
			"client":   request.RemoteAddr,
			"url":      request.URL,
		}).Trace("Request")
		metricsHandler.ServeHTTP(response, request)
	})
	return &mainServeMux
}

// StartServer - Start HTTP server in the background.
func StartServer(waitGroup *sync.WaitGroup, shutdown *util.ShutdownChannelDistributor, endpoint string, handler http.Handler) {
	shutdownChannel := make(chan bool, 1)
	if !shutdown.AddListener(shutdownChannel) {
		return
	}
	waitGroup.Add(1)

	server := &http.Server{
		Addr:              endpoint,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run
	stopped := make(chan struct{})
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server failed")
		}
		close(stopped)
		log.Info("HTTP server stopped")
		waitGroup.Done()
	}()

	// Shutdown
	go func() {
		select {
		case <-shutdownChannel:
			shutdownContext, shutdownContextCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownContextCancel()
			server.Shutdown(shutdownContext)
		case <-stopped:
		}
	}()

	log.Infof("HTTP server started: %v", endpoint)
}

func handleOtherRequest(response http.ResponseWriter, request *http.Request) {
	if request.URL.Path == "/" {
		fmt.Fprintf(response, "%s version %s by %s.\n", common.AppName, common.AppVersion, common.AppAuthor)
		fmt.Fprintf(response, "\nPaths:\n")
		fmt.Fprintf(response, "- Crawl status: /status\n")
		fmt.Fprintf(response, "- Metrics: /metrics\n")
	} else {
		message := "404 - Page not found.\n"
		http.Error(response, message, http.StatusNotFound)
	}
}

func handleStatusRequest(response http.ResponseWriter, request *http.Request, progress ProgressFunc) {
	status := crawler.Progress{}
	if progress != nil {
		status = progress()
	}
	response.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(response).Encode(map[string]interface{}{
		"run_id":   status.RunID,
		"running":  status.Running,
		"round":    status.Round,
		"visited":  status.Visited,
		"failed":   status.Failed,
		"excluded": status.Excluded,
		"frontier": status.Frontier,
	}); err != nil {
		log.WithError(err).Error("Failed to write status response")
	}
}
