// file: cmd/serve.go
// version: 1.0.0
// guid: 2e8b5c71-9a4d-4f36-b0e2-6d1c7a9f3b58

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jdfalk/mediashare/internal/archive"
	"github.com/jdfalk/mediashare/internal/catalog"
	"github.com/jdfalk/mediashare/internal/config"
	"github.com/jdfalk/mediashare/internal/housekeeping"
	"github.com/jdfalk/mediashare/internal/logging"
	"github.com/jdfalk/mediashare/internal/metadata"
	"github.com/jdfalk/mediashare/internal/operations"
	"github.com/jdfalk/mediashare/internal/realtime"
	"github.com/jdfalk/mediashare/internal/server"
	servermiddleware "github.com/jdfalk/mediashare/internal/server/middleware"
	"github.com/jdfalk/mediashare/internal/visitors"
	"github.com/jdfalk/mediashare/internal/watcher"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Serve a library folder to the local network. Without --dir the last
folder served is reused.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		monitor, _ := cmd.Flags().GetBool("monitor")
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, config.AppConfig, monitor)
	},
}

func init() {
	serveCmd.Flags().String("dir", "", "library folder to share")
	serveCmd.Flags().String("pin", "", "PIN required to browse (empty disables the gate)")
	serveCmd.Flags().String("port", config.DefaultPort, "port to listen on")
	serveCmd.Flags().String("host", config.DefaultHost, "address to bind")
	serveCmd.Flags().Bool("monitor", false, "print connected clients every 2 seconds")

	_ = viper.BindPFlag("library_dir", serveCmd.Flags().Lookup("dir"))
	_ = viper.BindPFlag("pin", serveCmd.Flags().Lookup("pin"))
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("host", serveCmd.Flags().Lookup("host"))
}

func runServe(ctx context.Context, cfg config.Config, monitor bool) error {
	log := logging.With("serve")

	lock, err := config.AcquireInstanceLock(cfg.SettingsFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn().Err(err).Msg("failed to release instance lock")
		}
	}()

	dir, err := config.ResolveLibraryDir(cfg.LibraryDir, cfg.SettingsFile)
	if err != nil {
		log.Warn().Err(err).Str("settings", cfg.SettingsFile).Msg("ignoring unreadable settings file")
	}
	lib, err := catalog.New(dir)
	if err != nil {
		if errors.Is(err, catalog.ErrNoLibrary) {
			return fmt.Errorf("%w: pass --dir to choose one", err)
		}
		return err
	}
	if err := config.SaveSettings(cfg.SettingsFile, config.Settings{LastFolder: lib.Root()}); err != nil {
		log.Warn().Err(err).Msg("failed to remember library folder")
	}

	queue := operations.NewOperationQueue(cfg.ArchiveWorkers, cfg.ArchiveQueueSize)
	defer func() {
		if err := queue.Shutdown(30 * time.Second); err != nil {
			log.Warn().Err(err).Msg("operation queue shutdown error")
		}
	}()
	archives := archive.NewEngine(queue, archive.Config{TempDir: cfg.ArchiveTempDir, ChunkBytes: cfg.ArchiveChunkBytes})

	metaCache := metadata.NewCache(metadata.Config{
		Root: lib.Root(),
		Source: metadata.NewTMDBClient(metadata.TMDBConfig{
			APIKey:       cfg.TMDBAPIKey,
			BaseURL:      cfg.TMDBBaseURL,
			ImageBaseURL: cfg.TMDBImageBaseURL,
			Timeout:      cfg.MetadataTimeout,
			RatePerSec:   cfg.MetadataRatePerSec,
		}),
		Images:      metadata.NewImageFetcher(cfg.MetadataTimeout),
		FallbackTTL: cfg.MetadataFallbackTTL,
	})
	if cfg.TMDBAPIKey == "" {
		log.Warn().Msg("no TMDB API key configured; titles come from file names only")
	}

	favorites := catalog.NewIndex(lib, catalog.DefaultIndexTTL)
	registry := visitors.NewRegistry()
	hub := realtime.NewHub()

	pin, err := servermiddleware.NewPINChecker(cfg.PIN)
	if err != nil {
		return err
	}
	sessions, err := servermiddleware.NewSessionManager(cfg.SessionSecret, servermiddleware.DefaultSessionTTL)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.Deps{
		Library:            lib,
		Favorites:          favorites,
		Metadata:           metaCache,
		Archives:           archives,
		Queue:              queue,
		Visitors:           registry,
		Hub:                hub,
		PIN:                pin,
		Sessions:           sessions,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		return err
	}

	w := watcher.New(libraryChanged(lib.Root(), favorites, metaCache), watcher.DefaultDebounce)
	if err := w.Start(lib.Root()); err != nil {
		log.Warn().Err(err).Msg("library watcher unavailable; changes show up after cache expiry")
	} else {
		defer w.Stop()
	}

	sched, err := housekeeping.New(housekeeping.Config{
		ArchiveResultTTL: cfg.ArchiveResultTTL,
		VisitorIdleTTL:   cfg.VisitorIdleTTL,
	}, archives, registry, metaCache)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
	}()

	if monitor {
		go runMonitor(ctx, os.Stdout, registry, archives, monitorInterval)
	}

	log.Info().
		Str("library", lib.Root()).
		Bool("pin", pin.Enabled()).
		Str("url", fmt.Sprintf("http://%s:%s", displayHost(cfg.Host), cfg.Port)).
		Msg("mediashare ready")

	srvCfg := server.GetDefaultServerConfig()
	srvCfg.Host = cfg.Host
	srvCfg.Port = cfg.Port
	return srv.Start(ctx, srvCfg)
}

// libraryChanged drops every cached view of the directories that changed.
func libraryChanged(root string, favorites *catalog.Index, meta *metadata.Cache) watcher.Callback {
	return func(dirs []string) {
		favorites.Invalidate()
		forgotten := 0
		for _, d := range dirs {
			forgotten += meta.ForgetDir(filepath.Join(root, filepath.FromSlash(d)))
		}
		logging.Debug().Strs("dirs", dirs).Int("forgotten", forgotten).Msg("library changed")
	}
}

func displayHost(host string) string {
	if host == "" || host == "0.0.0.0" || host == "::" {
		return "localhost"
	}
	return host
}
