package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

// HealthChecker reports the health of a single dependency.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// DatabaseHealthChecker pings the run store.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Name() string { return "database" }

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Time   string            `json:"time"`
}

// HealthHandler runs every checker and reports aggregate status.
func HealthHandler(checkers ...HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{
			Status: "ok",
			Checks: make(map[string]string),
			Time:   time.Now().UTC().Format(time.RFC3339),
		}

		code := http.StatusOK
		for _, c := range checkers {
			if err := c.Check(r.Context()); err != nil {
				status.Checks[c.Name()] = err.Error()
				status.Status = "degraded"
				code = http.StatusServiceUnavailable
			} else {
				status.Checks[c.Name()] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}

// LivenessHandler always reports ok while the process is up.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}
