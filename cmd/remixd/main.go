package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/remixgo/remix-shell/companion"
	"github.com/remixgo/remix-shell/config"
)

var (
	verbose      bool
	settingsPath string
	sharedFolder string
	listen       string
	readOnly     bool
)

var rootCmd = &cobra.Command{
	Use:   "remixd",
	Short: "Share a local folder with remix-shell",
	Long: `remixd serves a folder over the remixd websocket protocol so that a
workspace can read and write it as "localhost/...". Changes made on disk are
pushed to every connected client.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func run(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(settingsPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("shared-folder") || settings.Remixd.SharedFolder == "" {
		settings.Remixd.SharedFolder = sharedFolder
	}
	if cmd.Flags().Changed("listen") {
		settings.Remixd.Listen = listen
	}
	if cmd.Flags().Changed("read-only") {
		settings.Remixd.ReadOnly = readOnly
	}
	if settings.Remixd.SharedFolder == "" {
		return errors.New("--shared-folder is required")
	}

	logger, err := settings.Logging.NewLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	s, err := companion.New(settings.Remixd.SharedFolder, companion.Options{
		ReadOnly: settings.Remixd.ReadOnly,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	l, err := net.Listen("tcp", settings.Remixd.Listen)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Handler()}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		logger.Info("sharing folder",
			zap.String("folder", s.Folder().Root()),
			zap.String("addr", l.Addr().String()),
			zap.Bool("readOnly", settings.Remixd.ReadOnly))
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.Watch(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stopped")
	return nil
}

func init() {
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&settingsPath, "config", "remix-shell.yaml", "Settings file")
	rootCmd.Flags().StringVarP(&sharedFolder, "shared-folder", "s", "", "Folder to share")
	rootCmd.Flags().StringVar(&listen, "listen", "127.0.0.1:65520", "Address to listen on")
	rootCmd.Flags().BoolVar(&readOnly, "read-only", false, "Refuse writes to the shared folder")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
