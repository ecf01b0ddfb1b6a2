package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/lewtec/dupclassifier/classifier"
	"github.com/lewtec/dupclassifier/internal/logger"
	"github.com/lewtec/dupclassifier/internal/notify"
	"github.com/lewtec/dupclassifier/internal/repository"
	"github.com/lewtec/dupclassifier/internal/storage"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve config.yaml",
	Short: "Serve the classifier over HTTP",
	Long: `Serve the classifier over HTTP, replaying the frames of camera.dir as the camera.

When watch.interval is set the camera is also polled on that interval. Changes
are uploaded when upload is configured, recorded when storage.database is set
and published when notify.url is set, in that order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := classifier.LoadConfig(args[0])
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := applyLogConfig(cmd, cfg); err != nil {
			return err
		}

		if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
			cfg.Camera.Dir = dir
		}
		if cfg.Camera.Dir == "" {
			return fmt.Errorf("%w: camera.dir or --dir is required to serve", classifier.ErrConfiguration)
		}
		if stat, err := os.Stat(cfg.Camera.Dir); err != nil || !stat.IsDir() {
			return fmt.Errorf("camera directory '%s' is not a directory", cfg.Camera.Dir)
		}
		camera := classifier.NewDirCamera(cfg.CameraName, osfs.New(cfg.Camera.Dir), ".")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sinks, cleanup, err := buildSinks(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		name, _ := cmd.Flags().GetString("name")
		svc := classifier.NewService(name, log)
		if err := svc.Reconfigure(cfg, map[string]classifier.Camera{cfg.CameraName: camera}, sinks...); err != nil {
			return fmt.Errorf("failed to configure service: %w", err)
		}

		if cfg.Watch.Interval > 0 {
			watcher := classifier.NewWatcher(svc, cfg.Watch.Interval, log)
			if err := watcher.Start(); err != nil {
				return err
			}
			defer watcher.Stop()
		}

		addr, _ := cmd.Flags().GetString("addr")
		server := &http.Server{
			Addr:              addr,
			Handler:           classifier.GetHTTPHandler(svc, log),
			ReadHeaderTimeout: 10 * time.Second,
		}

		log.Info("starting server",
			"addr", addr,
			"camera", cfg.CameraName,
			"dir", cfg.Camera.Dir,
			"threshold", cfg.ThresholdOrDefault(),
			"sinks", len(sinks),
		)

		serverErr := make(chan error, 1)
		go func() {
			serverErr <- server.ListenAndServe()
		}()

		select {
		case err := <-serverErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

// applyLogConfig rebuilds the logger from the log section unless the log
// flags were given explicitly.
func applyLogConfig(cmd *cobra.Command, cfg *classifier.Config) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") || flags.Changed("log-format") || flags.Changed("log-file") {
		return nil
	}
	l, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   true,
	}, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	log = l
	return nil
}

// buildSinks wires the configured sinks. The uploader goes first so the
// recorded and published events carry the object key.
func buildSinks(ctx context.Context, cfg *classifier.Config) ([]classifier.Sink, func(), error) {
	var (
		sinks   []classifier.Sink
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Upload.Endpoint != "" {
		uploader, err := storage.New(ctx, storage.Config{
			Endpoint:  cfg.Upload.Endpoint,
			AccessKey: cfg.Upload.AccessKey,
			SecretKey: cfg.Upload.SecretKey,
			Bucket:    cfg.Upload.Bucket,
			Region:    cfg.Upload.Region,
			Prefix:    cfg.Upload.Prefix,
			UseSSL:    cfg.Upload.UseSSL,
		}, log)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to set up uploads: %w", err)
		}
		sinks = append(sinks, uploader)
	}

	if cfg.Storage.Database != "" {
		db, err := repository.OpenDatabase(cfg.Storage.Database, log)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("failed to open database: %w", err)
		}
		closers = append(closers, func() { db.Close() })
		sinks = append(sinks, repository.NewChangeRecorder(repository.NewChangeRepository(db)))
	}

	if cfg.Notify.URL != "" {
		notifier, err := notify.Connect(cfg.Notify.URL, cfg.Notify.Subject, log)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("failed to set up notifications: %w", err)
		}
		closers = append(closers, notifier.Close)
		sinks = append(sinks, notifier)
	}

	return sinks, cleanup, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to bind the webserver")
	serveCmd.Flags().StringP("dir", "d", "", "Directory of frames to replay as the camera, overrides camera.dir")
	serveCmd.Flags().StringP("name", "n", "dupclassifier", "Service name")
}
