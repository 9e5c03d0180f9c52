package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/codeindex/codeindex/dispatcher"
	"github.com/codeindex/codeindex/pkg/jsonerr"
)

// healthzHandler reports daemon liveness by delegating to the dispatcher's
// Status method, so an HTTP probe and an operator running repoidxtool
// status see the same component-level health.
func healthzHandler(d *dispatcher.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report, err := d.Status(ctx)
		if err != nil {
			jsonerr.Error(w, &jsonerr.Response{Code: "unavailable", Message: err.Error()}, http.StatusServiceUnavailable)
			return
		}
		if !report.StorageOK {
			jsonerr.Error(w, &jsonerr.Response{Code: "degraded", Message: "storage engine unhealthy", Additional: report}, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}
