package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

// DispatcherService is the health service name reporting the dispatch loop.
const DispatcherService = "reminders.dispatcher"

type Runner interface {
	Running() bool
}

// Health publishes the standard gRPC health service. The overall status
// follows the store; DispatcherService follows the dispatch loop.
type Health struct {
	log        *slog.Logger
	srv        *health.Server
	store      core.Pinger
	dispatcher Runner
	timeout    time.Duration
}

func NewHealth(log *slog.Logger, store core.Pinger, dispatcher Runner, timeout time.Duration) *Health {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	h := &Health{
		log:        log.With("component", "health"),
		srv:        health.NewServer(),
		store:      store,
		dispatcher: dispatcher,
		timeout:    timeout,
	}
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.srv.SetServingStatus(DispatcherService, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Update probes the store and the dispatcher once.
func (h *Health) Update(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	overall := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("store ping failed", "error", err)
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus("", overall)

	dispatch := healthpb.HealthCheckResponse_NOT_SERVING
	if h.dispatcher != nil && h.dispatcher.Running() {
		dispatch = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus(DispatcherService, dispatch)
}

// Run refreshes the statuses every interval until ctx is done, then marks
// everything NOT_SERVING.
func (h *Health) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		h.Update(ctx)
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return nil
		case <-ticker.C:
		}
	}
}
