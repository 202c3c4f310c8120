/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server serves both the JSON snapshot endpoint ("/") and the Prometheus
// scrape endpoint ("/metrics") for one Stats instance, grounded on
// ptp4u/stats/json.go's Start(monitoringport).
type Server struct {
	stats *Stats
	srv   *http.Server
}

// NewServer builds a Server bound to port.
func NewServer(s *Stats, port int) *Server {
	mux := http.NewServeMux()
	server := &Server{stats: s, srv: &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}}
	mux.HandleFunc("/", server.handleJSON)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return server
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	b, err := json.Marshal(s.stats.Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(b); err != nil {
		log.WithError(err).Warn("stats: failed to write json response")
	}
}

// ListenAndServe blocks serving until the process exits or Shutdown is
// called.
func (s *Server) ListenAndServe() error {
	log.Infof("stats: serving json and prometheus metrics on %s", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
