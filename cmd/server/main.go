package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/settlement-engine/internal/api"
	"github.com/atmx/settlement-engine/internal/book"
	"github.com/atmx/settlement-engine/internal/config"
	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/instrument"
	"github.com/atmx/settlement-engine/internal/ledger"
	"github.com/atmx/settlement-engine/internal/metrics"
	"github.com/atmx/settlement-engine/internal/oracle"
	"github.com/atmx/settlement-engine/internal/store"
)

func main() {
	cfg, err := config.Load(os.Getenv("SETTLE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("settlement-engine failed", "err", err)
		os.Exit(1)
	}
	fmt.Println("settlement-engine stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// --- Redis ---
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
	}

	// --- Initialize store ---
	var st store.Store
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if cfg.Database.RunMigrations {
			if err := pg.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if rdb != nil {
			st = store.NewCachedStore(st, rdb, cfg.Redis.CacheTTL.Duration)
			slog.Info("Redis cache enabled", "ttl", cfg.Redis.CacheTTL.String())
		}
	} else {
		slog.Warn("database url not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// --- Oracle ---
	prices, err := cfg.StaticPrices()
	if err != nil {
		return err
	}
	var feed oracle.Oracle
	switch cfg.Oracle.Source {
	case "redis":
		ro := oracle.NewRedis(rdb)
		for pair, price := range prices {
			base, quote, _ := strings.Cut(pair, "/")
			if err := ro.Publish(ctx, base, quote, price, time.Now().UTC()); err != nil {
				return fmt.Errorf("seed price %s: %w", pair, err)
			}
		}
		feed = ro
	default:
		so, err := oracle.NewStatic(prices)
		if err != nil {
			return err
		}
		feed = so
	}
	slog.Info("oracle ready", "source", cfg.Oracle.Source, "seeded_pairs", len(prices))

	// --- Token ledger ---
	led := ledger.NewMemory()
	for _, seed := range cfg.Ledger.Seed {
		asset, _ := cfg.Asset(seed.Asset)
		amount, err := fixed.Parse(seed.Amount)
		if err != nil {
			return fmt.Errorf("seed %s: %w", seed.Owner, err)
		}
		if err := led.Mint(asset.Address, common.HexToAddress(seed.Owner), amount); err != nil {
			return fmt.Errorf("seed %s: %w", seed.Owner, err)
		}
	}

	// --- WebSocket hub ---
	hub := api.NewWSHub(logger)

	// --- Books ---
	books := book.NewRegistry()
	for _, ticker := range cfg.Books {
		inst, err := instrument.ParseTicker(ticker)
		if err != nil {
			return err
		}
		underlying, _ := cfg.Asset(inst.Underlying)
		strike, _ := cfg.Asset(inst.Strike)
		b, err := book.New(book.Config{
			Instrument:      inst,
			Underlying:      underlying,
			StrikeAsset:     strike,
			TieBreak:        cfg.TieBreak(),
			CapToCollateral: cfg.Settlement.CapToCollateral,
		}, led, feed, st, hub, logger)
		if err != nil {
			return err
		}
		if err := books.Add(b); err != nil {
			return err
		}
		slog.Info("book opened", "ticker", ticker, "address", b.Address().Hex())
	}

	svc := api.NewService(books, st, led, cfg.AssetList(), cfg.Ledger.Faucet, logger)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      newRouter(cfg, svc, hub),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("settlement-engine listening", "port", cfg.Server.Port, "books", len(cfg.Books))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Graceful shutdown.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		slog.Info("shutting down settlement-engine...")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(cfg *config.Config, svc *api.Service, hub *api.WSHub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	origins := strings.Join(cfg.Server.CORSOrigins, ", ")
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+api.CallerHeader)
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"settlement-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket stream of committed agreement events. Outside the
		// request timeout so upgraded connections are not cut.
		r.Get("/ws", hub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.Server.RequestTimeout.Duration))
			svc.Mount(r)
		})
	})
	return r
}
