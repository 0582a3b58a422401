package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/technosupport/ts-alert-engine/internal/alerts"
	"github.com/technosupport/ts-alert-engine/internal/data"
)

// Config mirrors the events.intake yaml block.
type Config struct {
	Enabled     bool   `yaml:"enabled"`
	Subject     string `yaml:"nats_subject"`
	Queue       string `yaml:"queue_group"`
	MaxInflight int    `yaml:"max_inflight"`
}

// eventMessage is what the enrichment pipeline publishes when an event
// has been analyzed and is ready for rule evaluation.
type eventMessage struct {
	EventID uuid.UUID `json:"event_id"`
}

// Consumer feeds enriched events from NATS into the rule engine. It is a
// queue subscriber so multiple engine instances share the stream; the
// transactional cooldown locks keep concurrent evaluations of the same
// camera safe.
type Consumer struct {
	nc     *nats.Conn
	engine *alerts.Engine
	events data.EventRepository
	cfg    Config

	sub *nats.Subscription
	sem chan struct{}
}

func NewConsumer(nc *nats.Conn, engine *alerts.Engine, events data.EventRepository, cfg Config) *Consumer {
	if cfg.Subject == "" {
		cfg.Subject = "vms.events.enriched"
	}
	if cfg.Queue == "" {
		cfg.Queue = "alert-engine"
	}
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 8
	}
	return &Consumer{
		nc:     nc,
		engine: engine,
		events: events,
		cfg:    cfg,
		sem:    make(chan struct{}, cfg.MaxInflight),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.nc.QueueSubscribe(c.cfg.Subject, c.cfg.Queue, func(msg *nats.Msg) {
		var m eventMessage
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			log.Printf("Intake: bad event message on %s: %v", c.cfg.Subject, err)
			return
		}
		if m.EventID == uuid.Nil {
			log.Printf("Intake: event message missing event_id")
			return
		}

		select {
		case c.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		go func() {
			defer func() { <-c.sem }()
			c.process(ctx, m.EventID)
		}()
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.cfg.Subject, err)
	}
	c.sub = sub
	log.Printf("Intake: consuming %s (queue %s, inflight %d)", c.cfg.Subject, c.cfg.Queue, c.cfg.MaxInflight)
	return nil
}

func (c *Consumer) Stop() {
	if c.sub != nil {
		_ = c.sub.Drain()
	}
}

func (c *Consumer) process(ctx context.Context, eventID uuid.UUID) {
	event, err := c.events.GetByID(ctx, eventID)
	if err != nil {
		if err == data.ErrRecordNotFound {
			log.Printf("Intake: event %s not found, dropping", eventID)
			return
		}
		log.Printf("Intake: load event %s failed: %v", eventID, err)
		return
	}

	res, created, err := c.engine.EvaluateAndCreateAlerts(ctx, event, nil)
	if err != nil {
		// Infrastructure failure: the whole evaluation is retryable by
		// republishing; nothing partial was committed.
		log.Printf("Intake: evaluate event %s failed: %v", eventID, err)
		return
	}

	if res.TrustedEntitySkipped {
		log.Printf("Intake: event %s suppressed (trusted entity)", eventID)
		return
	}
	if len(created) > 0 {
		log.Printf("Intake: event %s fired %d alert(s), highest severity %s",
			eventID, len(created), *res.HighestSeverity)
	}
}
