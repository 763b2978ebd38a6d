package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/madbus/madbus"
	"github.com/madbus/madbus/cache"
	"github.com/madbus/madbus/catalog"
	"github.com/madbus/madbus/config"
	"github.com/madbus/madbus/directory"
	"github.com/madbus/madbus/emt"
	"github.com/madbus/madbus/logging"
	"github.com/madbus/madbus/parse"
)

var rootCmd = &cobra.Command{
	Use:               "madbus",
	Short:             "Madrid bus arrivals bot",
	Long:              "Telegram inline bot with live EMT Madrid bus arrival estimations",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	configPath string
	cfg        *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopsCmd)
	rootCmd.AddCommand(arrivalsCmd)
	rootCmd.AddCommand(catalogCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	return logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
}

// Opens the configured catalog backend.
func openCatalog() (catalog.Storage, io.Closer, error) {
	switch cfg.Catalog.Backend {
	case "sqlite":
		sqliteCfg := catalog.SQLiteConfig{}
		if cfg.Catalog.Directory != "" {
			sqliteCfg.OnDisk = true
			sqliteCfg.Directory = cfg.Catalog.Directory
		}
		s, err := catalog.NewSQLiteStorage(sqliteCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite catalog: %w", err)
		}
		return s, s, nil
	case "postgres":
		s, err := catalog.NewPSQLStorage(cfg.Catalog.DSN, false)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres catalog: %w", err)
		}
		return s, s, nil
	default:
		return catalog.NewMemoryStorage(), nopCloser{}, nil
	}
}

// Whether the configured catalog is lost on exit, and so must be
// loaded on every start.
func volatileCatalog() bool {
	return cfg.Catalog.Backend == "memory" ||
		(cfg.Catalog.Backend == "sqlite" && cfg.Catalog.Directory == "")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Parses the configured catalog files into s.
func loadCatalog(s catalog.Storage) (*parse.Summary, error) {
	writer, err := s.GetWriter()
	if err != nil {
		return nil, fmt.Errorf("getting catalog writer: %w", err)
	}

	summary, err := parse.ParseCatalogFiles(writer, cfg.Catalog.Archive, cfg.Catalog.LinesFile, cfg.Catalog.StopsFile)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return summary, nil
}

type app struct {
	client    *emt.Client
	directory *directory.Directory
	service   *madbus.Service
	closers   []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

// Wires up a Service according to cfg. The catalog is parsed from
// file unless it persists in a database and reload is false.
func newApp(ctx context.Context, reload bool) (*app, error) {
	log := logging.GetLogger(logging.CLIModule)

	if err := cfg.RequireCredentials(false); err != nil {
		return nil, err
	}

	a := &app{}

	storage, closer, err := openCatalog()
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closer)

	if reload || volatileCatalog() {
		summary, err := loadCatalog(storage)
		if err != nil {
			a.Close()
			return nil, err
		}
		log.WithField("lines", summary.Lines).
			WithField("stops", summary.Stops).
			WithField("dangling", summary.DanglingStops).
			Info("catalog loaded")
	}

	reader, err := storage.GetReader()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("getting catalog reader: %w", err)
	}

	a.client = emt.NewClient(cfg.EMT.BaseURL, cfg.EMT.ClientID, cfg.EMT.PassKey)
	a.client.Timeout = cfg.EMT.Timeout

	a.directory = directory.New()
	a.service = madbus.NewService(a.client, reader, a.directory)
	a.service.MaxResults = cfg.Query.MaxResults
	a.service.MaxColumnWidth = cfg.Query.MaxColumnWidth
	a.service.SearchRadius = cfg.Query.SearchRadius
	a.service.Thumbnail = cfg.Query.Thumbnail
	a.service.ArrivalsTTL = cfg.Arrivals.TTL

	switch cfg.Arrivals.Cache {
	case "memory":
		a.service.Arrivals = cache.NewMemory()
	case "redis":
		r, err := cache.DialRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Arrivals.RedisAddr,
			Password: cfg.Arrivals.RedisPassword,
			DB:       cfg.Arrivals.RedisDB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, r)
		a.service.Arrivals = r
	}

	return a, nil
}

// A warmer for the app's directory, configured from cfg.
func (a *app) warmer() *directory.Warmer {
	w := directory.NewWarmer(a.directory, a.client, a.service.Normalizer())
	w.BatchSize = cfg.Warmup.BatchSize
	w.Stagger = cfg.Warmup.Stagger
	w.MaxID = cfg.Warmup.MaxID
	w.Retry = cfg.Warmup.RetryPolicy()
	return w
}
