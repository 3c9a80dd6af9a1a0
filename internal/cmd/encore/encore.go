// Package encore parses encore command flags and composes the companion
// services behind the HTTP surface.
package encore

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/encore/internal/platform/cmd"
	"github.com/louisbranch/encore/internal/platform/random"
	"github.com/louisbranch/encore/internal/services/companion/app"
	"github.com/louisbranch/encore/internal/services/companion/concert"
	"github.com/louisbranch/encore/internal/services/companion/interaction"
	"github.com/louisbranch/encore/internal/services/companion/issuer"
	"github.com/louisbranch/encore/internal/services/companion/mcptools"
	"github.com/louisbranch/encore/internal/services/companion/responder"
	"github.com/louisbranch/encore/internal/services/companion/session"
	"github.com/louisbranch/encore/internal/services/companion/storage"
	badgerstore "github.com/louisbranch/encore/internal/services/companion/storage/badger"
	sqlitestore "github.com/louisbranch/encore/internal/services/companion/storage/sqlite"
	"github.com/louisbranch/encore/internal/services/companion/wallet"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverMemory = "memory"
)

var errUnknownDriver = errors.New("unknown storage driver")

// Config holds encore command configuration.
type Config struct {
	HTTPAddr        string        `env:"ENCORE_HTTP_ADDR"                   envDefault:":8095"`
	HealthPort      int           `env:"ENCORE_HEALTH_PORT"                 envDefault:"0"`
	StorageDriver   string        `env:"ENCORE_STORAGE_DRIVER"              envDefault:"sqlite"`
	DBPath          string        `env:"ENCORE_DB_PATH"                     envDefault:"data/encore.db"`
	BadgerDir       string        `env:"ENCORE_BADGER_DIR"                  envDefault:"data/encore-badger"`
	TokenSecret     string        `env:"ENCORE_TOKEN_SECRET"`
	TokenTTL        time.Duration `env:"ENCORE_TOKEN_TTL"                   envDefault:"24h"`
	CatalogLatency  time.Duration `env:"ENCORE_CATALOG_LATENCY"             envDefault:"500ms"`
	CatalogLookup   time.Duration `env:"ENCORE_CATALOG_LOOKUP_LATENCY"      envDefault:"300ms"`
	RandomSeed      int64         `env:"ENCORE_RANDOM_SEED"                 envDefault:"0"`
	CompanionScript string        `env:"ENCORE_COMPANION_SCRIPT"`
	PaymasterURL    string        `env:"ENCORE_PAYMASTER_URL"`
	PaymasterPoll   time.Duration `env:"ENCORE_PAYMASTER_POLL_INTERVAL"     envDefault:"500ms"`
	BundlerURL      string        `env:"ENCORE_BUNDLER_URL"`
	MCPEnabled      bool          `env:"ENCORE_MCP_ENABLED"                 envDefault:"true"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "gRPC health port (0 disables)")
	fs.StringVar(&cfg.StorageDriver, "storage", cfg.StorageDriver, "storage driver: sqlite, badger or memory")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.BadgerDir, "badger-dir", cfg.BadgerDir, "Badger data directory")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "session token lifetime")
	fs.DurationVar(&cfg.CatalogLatency, "catalog-latency", cfg.CatalogLatency, "simulated catalog list latency")
	fs.DurationVar(&cfg.CatalogLookup, "catalog-lookup-latency", cfg.CatalogLookup, "simulated catalog lookup latency")
	fs.Int64Var(&cfg.RandomSeed, "seed", cfg.RandomSeed, "companion random seed (0 picks one)")
	fs.StringVar(&cfg.CompanionScript, "companion-script", cfg.CompanionScript, "Lua companion script")
	fs.StringVar(&cfg.PaymasterURL, "paymaster-url", cfg.PaymasterURL, "paymaster base URL (empty uses the local sponsor)")
	fs.StringVar(&cfg.BundlerURL, "bundler-url", cfg.BundlerURL, "bundler URL forwarded to the paymaster")
	fs.BoolVar(&cfg.MCPEnabled, "mcp", cfg.MCPEnabled, "serve the MCP endpoint at /mcp")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	return cfg, nil
}

// Run builds the companion services and serves them until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEncore, func(ctx context.Context) error {
		if err := serve(ctx, cfg, log.Default()); err != nil {
			return fmt.Errorf("serve encore: %w", err)
		}
		return nil
	})
}

func serve(ctx context.Context, cfg Config, logger *log.Logger) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Printf("close store: driver=%s err=%v", cfg.StorageDriver, err)
		}
	}()

	deps, err := buildDeps(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	serverConfig := app.Config{HTTPAddr: cfg.HTTPAddr}
	if cfg.HealthPort > 0 {
		serverConfig.HealthAddr = fmt.Sprintf(":%d", cfg.HealthPort)
	}
	server, err := app.NewServer(serverConfig, deps)
	if err != nil {
		return err
	}
	defer server.Close()
	return server.ListenAndServe(ctx)
}

func openStore(cfg Config) (storage.KeyValueStore, error) {
	switch cfg.StorageDriver {
	case "", DriverSQLite:
		if err := ensureDir(filepath.Dir(cfg.DBPath)); err != nil {
			return nil, err
		}
		store, err := sqlitestore.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case DriverBadger:
		if err := ensureDir(cfg.BadgerDir); err != nil {
			return nil, err
		}
		store, err := badgerstore.Open(cfg.BadgerDir)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return store, nil
	case DriverMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w %q", errUnknownDriver, cfg.StorageDriver)
	}
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

func buildDeps(ctx context.Context, cfg Config, store storage.KeyValueStore, logger *log.Logger) (app.Deps, error) {
	seed, source, err := random.ResolveSeed(cfg.RandomSeed, nil)
	if err != nil {
		return app.Deps{}, fmt.Errorf("resolve seed: %w", err)
	}
	logger.Printf("companion seed=%d source=%s", seed, source)

	catalog := concert.NewCatalog(concert.Config{
		ListLatency:   cfg.CatalogLatency,
		LookupLatency: cfg.CatalogLookup,
	})

	backend, err := newBackend(cfg.CompanionScript)
	if err != nil {
		return app.Deps{}, err
	}
	companion, err := responder.New(responder.Config{
		Picker:  random.NewPicker(seed),
		Backend: backend,
		Logger:  logger,
	})
	if err != nil {
		return app.Deps{}, fmt.Errorf("build responder: %w", err)
	}

	sponsor, err := newSponsor(cfg)
	if err != nil {
		return app.Deps{}, err
	}

	sessions, err := session.NewController(session.Config{
		Store:   store,
		Wallets: wallet.MockProvider{},
		Logger:  logger,
	})
	if err != nil {
		return app.Deps{}, fmt.Errorf("build session controller: %w", err)
	}
	restored, err := sessions.Restore(ctx)
	if err != nil {
		logger.Printf("session restore failed: err=%v", err)
	} else if restored {
		identity, _ := sessions.Identity()
		logger.Printf("session restored: address=%s", identity.Address)
	}

	secret := strings.TrimSpace(cfg.TokenSecret)
	if secret == "" {
		secret, err = session.LoadOrCreateSecret(ctx, store)
		if err != nil {
			return app.Deps{}, err
		}
	}
	tokens, err := session.NewTokens(secret, cfg.TokenTTL, nil)
	if err != nil {
		return app.Deps{}, fmt.Errorf("build session tokens: %w", err)
	}

	svc, err := interaction.NewService(interaction.Config{
		Catalog:   catalog,
		Responder: companion,
		Issuer:    issuer.New(sponsor, issuer.WithLogger(logger)),
		Sessions:  sessions,
	})
	if err != nil {
		return app.Deps{}, fmt.Errorf("build interaction service: %w", err)
	}

	var mcpHandler http.Handler
	if cfg.MCPEnabled {
		mcpHandler = mcptools.Handler(mcptools.NewServer(catalog, companion))
	}

	return app.Deps{
		Catalog:     catalog,
		Interaction: svc,
		Sessions:    sessions,
		Tokens:      tokens,
		MCP:         mcpHandler,
		Logger:      logger,
	}, nil
}

func newBackend(scriptPath string) (responder.Backend, error) {
	scriptPath = strings.TrimSpace(scriptPath)
	if scriptPath == "" {
		return nil, nil
	}
	backend, err := responder.LoadScript(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("load companion script: %w", err)
	}
	return backend, nil
}

func newSponsor(cfg Config) (issuer.Sponsor, error) {
	if strings.TrimSpace(cfg.PaymasterURL) == "" {
		return issuer.RandomSponsor{}, nil
	}
	sponsor, err := issuer.NewPaymasterSponsor(issuer.PaymasterConfig{
		BaseURL:      cfg.PaymasterURL,
		BundlerURL:   cfg.BundlerURL,
		PollInterval: cfg.PaymasterPoll,
	})
	if err != nil {
		return nil, fmt.Errorf("build paymaster sponsor: %w", err)
	}
	return sponsor, nil
}
