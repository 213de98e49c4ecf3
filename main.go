package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"skill_persistence/internal/app"
	"skill_persistence/internal/server"
	"skill_persistence/pkg"
	"skill_persistence/src"
	"skill_persistence/src/logger"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	envelopePath string
	deleteRecord bool
)

var rootCmd = &cobra.Command{
	Use:   "skill",
	Short: "Voice skill with persistent attributes",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the skill over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var opts []server.Option
		if a.Config.ServerConfig.EnableMetrics {
			opts = append(opts, server.WithMetricsHandler(a.Metrics.Handler()))
		}
		srv := server.New(a.Skill, a.Config.ServerConfig, logger.Logger, opts...)
		return srv.Serve(ctx)
	},
}

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Run one request envelope through the skill and print the response",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := readEnvelope(envelopePath, cmd.InOrStdin())
		if err != nil {
			return err
		}
		var envelope pkg.RequestEnvelope
		if err := sonic.Unmarshal(data, &envelope); err != nil {
			return fmt.Errorf("invalid request envelope: %w", err)
		}
		if envelope.Request.RequestID == "" {
			envelope.Request.RequestID = uuid.NewString()
		}

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		response, invokeErr := a.Skill.Invoke(ctx, &envelope)
		if response != nil {
			out, err := sonic.ConfigDefault.MarshalIndent(response, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode response: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
		}
		return invokeErr
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <partition-key>",
	Short: "Print (or delete) the persisted attributes for a partition key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		key := args[0]

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if deleteRecord {
			if err := a.Store.Delete(ctx, key); err != nil {
				return fmt.Errorf("error deleting attributes: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted attributes for %s\n", key)
			return nil
		}

		attributes, found, err := a.Store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("error reading attributes: %w", err)
		}
		if !found {
			fmt.Fprintf(cmd.OutOrStdout(), "No attributes stored for %s\n", key)
			return nil
		}
		out, err := sonic.ConfigDefault.MarshalIndent(attributes, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode attributes: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "skill.yaml", "path to the YAML configuration file")
	invokeCmd.Flags().StringVarP(&envelopePath, "file", "f", "-", "request envelope JSON file, - reads stdin")
	inspectCmd.Flags().BoolVar(&deleteRecord, "delete", false, "delete the record instead of printing it")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(inspectCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration, initializes logging and wires the skill
func setup(ctx context.Context) (*app.App, error) {
	cfg, err := src.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	if err := logger.InitLogger(cfg.LogConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a, err := app.New(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize skill")
		return nil, err
	}
	return a, nil
}

func readEnvelope(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("error reading request envelope from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading request envelope: %w", err)
	}
	return data, nil
}
