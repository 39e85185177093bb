// Command server wires config, storage, the registry, and both transport
// adapters into one process, grounded on the reference game-server's
// main(): build the gin engine, register routes, start the HTTP listener,
// and wait on SIGINT/SIGTERM for a graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/lib/pq"

	"holdem-core/internal/config"
	"holdem-core/internal/events"
	"holdem-core/internal/registry"
	"holdem-core/internal/storage/analytics"
	"holdem-core/internal/storage/postgres"
	transporthttp "holdem-core/internal/transport/http"
	"holdem-core/internal/transport/ws"
	"holdem-core/internal/wallet"
	"holdem-core/pkg/rng"
)

func main() {
	cfg := config.Load()

	audit := rng.NewAuditLogger()
	rngSys, err := rng.NewSystem(audit)
	if err != nil {
		log.Fatalf("CRITICAL: failed to initialize RNG: %v", err)
	}

	walletBridge, db, closeWallet := buildWalletBridge(cfg)
	defer closeWallet()

	publisher := buildPublisher(cfg)
	defer publisher.Close()

	reg := registry.New(registry.Deps{
		Wallet:    walletBridge,
		Publisher: publisher,
		RNG:       rngSys,
		Audit:     audit,
	})

	router := gin.Default()
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	transporthttp.NewServer(reg).Register(router)
	ws.NewServer(reg).Register(router)

	if db != nil {
		userStore := postgres.NewUserStorage(db)
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.DBConnectTimeoutSecs)*time.Second)
		if err := userStore.CreateSchema(ctx); err != nil {
			log.Fatalf("CRITICAL: failed to migrate user schema: %v", err)
		}
		cancel()
		transporthttp.NewAuthServer(userStore, cfg.PasswordPepper).Register(router)
	} else {
		log.Println("WARN DATABASE_URL unset; /api/auth/register and /api/auth/login are not registered")
	}

	srv := &http.Server{Addr: cfg.ServerBind, Handler: router}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("INFO shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, info := range reg.ListTables() {
			if err := reg.CloseTable(ctx, info.ID); err != nil {
				log.Printf("WARN close table %s: %v", info.ID, err)
			}
		}
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("WARN shutdown: %v", err)
		}
		os.Exit(0)
	}()

	log.Printf("INFO server starting on %s", cfg.ServerBind)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("CRITICAL: server failed: %v", err)
	}
}

func buildWalletBridge(cfg config.Config) (wallet.Bridge, *sql.DB, func()) {
	if cfg.DatabaseURL == "" {
		log.Println("WARN DATABASE_URL unset; using in-memory wallet bridge (not for production)")
		return wallet.NewInMemory(), nil, func() {}
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("CRITICAL: failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxConnections)
	db.SetMaxIdleConns(cfg.DBMinConnections)

	store := postgres.NewWalletStorage(db)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.DBConnectTimeoutSecs)*time.Second)
	defer cancel()
	if err := store.CreateWalletTables(ctx); err != nil {
		log.Fatalf("CRITICAL: failed to migrate wallet schema: %v", err)
	}
	return store, db, func() { db.Close() }
}

// buildPublisher composes the Kafka event stream and the ClickHouse
// hand-history sink into one Fanout publisher; either half is replaced
// with a no-op when its broker/DSN env var is unset.
func buildPublisher(cfg config.Config) events.Publisher {
	var fanout events.Fanout

	if len(cfg.KafkaBrokers) == 0 {
		log.Println("INFO KAFKA_BROKERS unset; events will not be published to Kafka")
	} else {
		kafka, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:    cfg.KafkaBrokers,
			Topic:      cfg.KafkaEventsTopic,
			MaxRetries: 5,
		})
		if err != nil {
			log.Fatalf("CRITICAL: failed to start kafka publisher: %v", err)
		}
		fanout = append(fanout, kafka)
	}

	if cfg.ClickHouseDSN == "" {
		log.Println("INFO CLICKHOUSE_DSN unset; hand-history analytics disabled")
	} else {
		sink, err := analytics.NewSink(context.Background(), analytics.Config{Host: cfg.ClickHouseDSN, Database: "poker"})
		if err != nil {
			log.Printf("WARN: clickhouse analytics sink unavailable: %v", err)
		} else {
			if err := sink.CreateTables(context.Background()); err != nil {
				log.Printf("WARN: clickhouse schema migration failed: %v", err)
			}
			fanout = append(fanout, sink)
		}
	}

	if len(fanout) == 0 {
		return events.NoopPublisher{}
	}
	return fanout
}
