package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/technosupport/ts-alert-engine/internal/alerts"
	"github.com/technosupport/ts-alert-engine/internal/data"
	"github.com/technosupport/ts-alert-engine/internal/dispatch"
	"github.com/technosupport/ts-alert-engine/internal/intake"
	"github.com/technosupport/ts-alert-engine/internal/metrics"
)

const serviceName = "TS-Alert-Engine"

type serverConfig struct {
	Intake   intake.Config `yaml:"intake"`
	Dispatch struct {
		RoutesPath string `yaml:"routes_path"`
		MaxRetries int    `yaml:"publish_retry_max"`
	} `yaml:"dispatch"`
	OpsAddr string `yaml:"ops_addr"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Config
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPass := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	redisAddr := os.Getenv("REDIS_ADDR")
	natsURL := os.Getenv("NATS_URL")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}

	var cfg serverConfig
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/default.yaml"
	}
	if raw, err := os.ReadFile(cfgPath); err == nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Fatalf("Config parse error (%s): %v", cfgPath, err)
		}
	} else {
		log.Printf("Config: %s not readable (%v), using defaults", cfgPath, err)
	}
	if cfg.OpsAddr == "" {
		cfg.OpsAddr = ":9205"
	}
	if cfg.Dispatch.MaxRetries <= 0 {
		cfg.Dispatch.MaxRetries = 3
	}

	// 2. DB Init
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPass, dbHost, dbPort, dbName)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping error: %v", err)
	}

	// 3. NATS
	nc, err := nats.Connect(natsURL, nats.Name(serviceName))
	if err != nil {
		log.Fatalf("NATS connect error: %v", err)
	}
	defer nc.Close()

	// 4. Dispatch routes (hot-reloaded)
	routes := dispatch.NewRouteTable(cfg.Dispatch.RoutesPath)
	routes.StartWatcher(ctx)
	notifier := dispatch.NewNATSNotifier(nc, routes, cfg.Dispatch.MaxRetries)

	// 5. Engine
	engine := alerts.NewEngine(
		data.RuleModel{DB: db},
		data.EventModel{DB: db},
		data.EntityModel{DB: db},
		data.AlertModel{DB: db},
		notifier,
	)

	collector := metrics.NewCollector()
	engine.Metrics = collector

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("Redis unavailable (%v), cooldown fast path disabled", err)
		} else {
			engine.Cooldowns = alerts.NewCooldownCache(rdb)
			defer rdb.Close()
		}
	}

	// 6. Intake consumer
	consumer := intake.NewConsumer(nc, engine, data.EventModel{DB: db}, cfg.Intake)
	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("Intake start error: %v", err)
	}
	defer consumer.Stop()

	// 7. Ops router
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", collector.Handler())

	srv := &http.Server{Addr: cfg.OpsAddr, Handler: r}
	go func() {
		log.Printf("%s ops listening on %s", serviceName, cfg.OpsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ops server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("%s shutting down", serviceName)
	_ = srv.Shutdown(context.Background())
}
