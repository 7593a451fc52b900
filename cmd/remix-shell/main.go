package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remixgo/remix-shell/app"
	"github.com/remixgo/remix-shell/config"
	"github.com/remixgo/remix-shell/files"
)

var (
	verbose      bool
	settingsPath string

	settings config.Settings
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "remix-shell",
	Short: "Headless Solidity workspace",
	Long: `remix-shell keeps a workspace of Solidity files, resolves their imports
from GitHub, Swarm, IPFS or a remixd shared folder, compiles them with solc
and publishes contract metadata to Swarm.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load(settingsPath)
		if err != nil {
			return err
		}
		logger, err = settings.Logging.NewLogger(verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [specifier]",
	Short: "Print the content of an import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShell(cmd, func(ctx context.Context, s *app.Shell) error {
			content, err := s.Resolver.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		})
	},
}

var compileCmd = &cobra.Command{
	Use:   "compile [file]",
	Short: "Compile a workspace file, or the current one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShell(cmd, func(ctx context.Context, s *app.Shell) error {
			if len(args) == 1 {
				if err := s.SwitchToFile(ctx, args[0]); err != nil {
					return err
				}
			}
			result, err := s.RunCompiler(ctx)
			if err != nil {
				return err
			}
			for _, e := range result.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), e.String())
			}
			if !result.Success {
				return fmt.Errorf("compilation of %s failed", result.Source.Target)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compiled %s in %dms\n", result.Source.Target, result.Duration.Milliseconds())
			return nil
		})
	},
}

var loadCmd = &cobra.Command{
	Use:   "load [bundle.txtar]",
	Short: "Add the files of a txtar bundle to the workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := files.LoadBundle(args[0])
		if err != nil {
			return err
		}
		return withShell(cmd, func(ctx context.Context, s *app.Shell) error {
			added, err := s.LoadFiles(ctx, bundle)
			for _, name := range added {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return err
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the workspace files as a txtar bundle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShell(cmd, func(ctx context.Context, s *app.Shell) error {
			names, err := s.Files.Default().List(ctx)
			if err != nil {
				return err
			}
			contents := make(map[string]string, len(names))
			for _, name := range names {
				if contents[name], err = s.Files.ReadFile(ctx, name); err != nil {
					return err
				}
			}
			_, err = cmd.OutOrStdout().Write(files.FormatBundle(names, contents))
			return err
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish [file] [contract]",
	Short: "Compile a file and publish a contract's metadata to Swarm",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShell(cmd, func(ctx context.Context, s *app.Shell) error {
			if err := s.SwitchToFile(ctx, args[0]); err != nil {
				return err
			}
			if _, err := s.RunCompiler(ctx); err != nil {
				return err
			}
			msg, err := s.PublishContract(ctx, args[0], args[1])
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return err
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write the persistent workspace configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a configuration value as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShell(cmd, func(ctx context.Context, s *app.Shell) error {
			var v interface{}
			ok, err := s.Config.Get(args[0], &v)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not set", args[0])
			}
			out, err := json.Marshal(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a configuration value; values that are not JSON are stored as strings",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShell(cmd, func(ctx context.Context, s *app.Shell) error {
			var v interface{} = args[1]
			if json.Valid([]byte(args[1])) {
				v = json.RawMessage(args[1])
			}
			return s.Config.Set(ctx, args[0], v)
		})
	},
}

// withShell bootstraps the workspace without opening the editor, runs fn and
// closes everything again.
func withShell(cmd *cobra.Command, fn func(ctx context.Context, s *app.Shell) error) error {
	ctx := cmd.Context()
	s, err := app.Bootstrap(ctx, settings, app.BootstrapOptions{}, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	reportEvents(s, logger)
	return fn(ctx, s)
}

// reportEvents logs remote fetches, remixd notices and compiler warnings.
func reportEvents(s *app.Shell, logger *zap.Logger) {
	s.Resolver.Loading.Subscribe(func(specifier string) {
		logger.Info("loading", zap.String("specifier", specifier))
	})
	s.Notice.Subscribe(func(notice string) { logger.Info(notice) })
	s.Warning.Subscribe(func(warning string) {
		if warning != "" {
			logger.Warn(warning)
		}
	})
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "remix-shell.yaml", "Settings file")

	configCmd.AddCommand(configGetCmd, configSetCmd)
	rootCmd.AddCommand(resolveCmd, compileCmd, loadCmd, exportCmd, publishCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
