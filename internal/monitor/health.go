package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Pinger is anything whose readiness can be probed, the sink in practice.
type Pinger interface {
	Ping(ctx context.Context) error
	Name() string
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the feed is read-only
	},
}

// ServerOptions wires the monitor endpoints.
type ServerOptions struct {
	Addr      string
	Sink      Pinger
	Hub       *Hub
	Gatherer  prometheus.Gatherer
	JWTSecret string
	Logger    *zap.SugaredLogger
}

// NewMux builds the monitor routes: /health, /ready, /metrics and /ws.
func NewMux(opts ServerOptions) *http.ServeMux {
	mux := http.NewServeMux()

	// --- Liveness ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:  "alive",
			Message: "producer is running",
		})
	})

	// --- Readiness ---
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		details := map[string]string{}
		statusCode := http.StatusOK
		statusMsg := "ready"
		if opts.Sink != nil {
			if err := opts.Sink.Ping(ctx); err != nil {
				details[opts.Sink.Name()] = "unhealthy"
				statusCode = http.StatusServiceUnavailable
				statusMsg = fmt.Sprintf("sink unhealthy: %v", err)
			} else {
				details[opts.Sink.Name()] = "healthy"
			}
		}
		writeJSON(w, statusCode, HealthResponse{Status: statusMsg, Details: details})
	})

	if opts.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// --- WebSocket cycle feed ---
	if opts.Hub != nil {
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			ServeWS(opts.Hub, opts.JWTSecret, w, r)
		})
	}

	return mux
}

// ServeWS upgrades the request and streams cycle reports to it. When secret
// is set the caller must present an HS256 token signed with it.
func ServeWS(hub *Hub, secret string, w http.ResponseWriter, r *http.Request) {
	subject := "anonymous"
	if secret != "" {
		token := tokenFromRequest(r)
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		claims, err := VerifyToken(token, []byte(secret))
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		if sub := claimString(claims, "sub"); sub != "" {
			subject = sub
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, hub, subject)
	hub.Register(client)
	hub.logger.Infow("cycle feed subscriber connected", "subject", subject, "remote", conn.RemoteAddr().String())

	go client.WritePump()
	client.ReadPump()
}

// StartHealthCheck serves the monitor endpoints in the background.
// The returned server is shut down by the caller.
func StartHealthCheck(opts ServerOptions) *http.Server {
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           NewMux(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	opts.Logger.Infof("starting monitor server on %s", opts.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			opts.Logger.Errorw("monitor server stopped", "error", err)
		}
	}()
	return srv
}

func writeJSON(w http.ResponseWriter, status int, body HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	jsonFast.NewEncoder(w).Encode(body)
}
