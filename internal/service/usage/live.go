package usage

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ourresearch/openalex-api-analytics/internal/domain"
	"github.com/ourresearch/openalex-api-analytics/internal/metrics"
	"github.com/ourresearch/openalex-api-analytics/internal/ws"
)

// Topic is the hub topic live dashboard clients subscribe to.
const Topic = "usage"

const defaultRefreshInterval = 30 * time.Second

// Broadcaster periodically pushes overview snapshots to subscribed
// dashboard clients. It blocks until the context is cancelled.
type Broadcaster struct {
	service  *Service
	hub      *ws.Hub
	interval time.Duration
	logger   *slog.Logger
}

// NewBroadcaster constructs a Broadcaster with sane defaults.
func NewBroadcaster(service *Service, hub *ws.Hub, interval time.Duration, logger *slog.Logger) *Broadcaster {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if hub == nil {
		hub = ws.NewHub()
	}
	if logger != nil {
		logger = logger.With("component", "usage_live")
	}
	return &Broadcaster{service: service, hub: hub, interval: interval, logger: logger}
}

// Hub exposes the hub for websocket consumers.
func (b *Broadcaster) Hub() *ws.Hub {
	return b.hub
}

// Run starts the refresh loop.
func (b *Broadcaster) Run(ctx context.Context) {
	if b.logger != nil {
		b.logger.Info("live usage broadcaster started", "interval", b.interval)
	}
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if b.logger != nil {
				b.logger.Info("live usage broadcaster stopped")
			}
			return
		case <-ticker.C:
			b.push(ctx)
		}
	}
}

func (b *Broadcaster) push(ctx context.Context) {
	if !b.hub.HasSubscribers(Topic) {
		return
	}
	refreshCtx, cancel := context.WithTimeout(ctx, b.interval)
	defer cancel()

	overview, err := b.service.Overview(refreshCtx, domain.PeriodHour, metrics.DefaultLimit)
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("live snapshot refresh failed", "error", err)
		}
		return
	}
	payload, err := json.Marshal(Envelope(domain.PeriodHour, OverviewPayload(*overview), time.Now()))
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("live snapshot encode failed", "error", err)
		}
		return
	}
	b.hub.Broadcast(Topic, payload)
}
