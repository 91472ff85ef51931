// Package fedroute implements the federation router CLI.
package fedroute

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/federation-go/pkg/config"
	"github.com/liliang-cn/federation-go/pkg/log"
	"github.com/liliang-cn/federation-go/pkg/registry"
	"github.com/liliang-cn/federation-go/pkg/store"
)

var (
	cfgFile string
	debug   bool
	cfg     *config.Config
	version = "dev"
)

var RootCmd = &cobra.Command{
	Use:   "fedroute",
	Short: "Federated model provider router",
	Long: `fedroute routes LLM tasks across a federation of model providers.
It classifies each prompt by intent, filters providers on hard constraints
(cost, latency, compliance, features), scores the survivors on quality,
speed, cost and reliability, and learns from recorded outcomes which
provider handles each kind of task best.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if debug {
			log.SetDebug(true)
		} else {
			log.SetLevel(parseLevel(cfg.Log.Level))
		}

		return nil
	},
}

func Execute() error {
	return RootCmd.Execute()
}

// GetRootCmd returns the root cobra command for testing purposes.
func GetRootCmd() *cobra.Command {
	return RootCmd
}

// SetVersion sets the version for the CLI.
func SetVersion(v string) {
	version = v
	RootCmd.Version = v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fedroute version %s\n", version)
	},
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openStore opens the configured persistence backend.
func openStore() (store.Store, error) {
	return store.Open(cfg.Store)
}

// buildRegistry assembles the provider registry from built-in defaults, the
// providers directory, and environment overrides.
func buildRegistry(ctx context.Context, st store.Store) (*registry.Registry, error) {
	opts := []registry.Option{
		registry.WithFailureThreshold(cfg.Health.FailureThreshold),
		registry.WithCooldown(cfg.Health.Cooldown),
	}
	if st != nil {
		opts = append(opts, registry.WithStore(st))
	}

	var reg *registry.Registry
	if cfg.Registry.UseDefaults {
		reg = registry.NewWithDefaults(opts...)
	} else {
		reg = registry.New(opts...)
	}

	overrides := make(map[string]*registry.Provider)
	if dir := cfg.ProvidersDir(); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			loaded, err := registry.LoadDir(dir)
			if err != nil {
				return nil, fmt.Errorf("failed to load providers from %s: %w", dir, err)
			}
			overrides = loaded
		}
	}
	registry.ApplyEnvOverrides(overrides)

	ids := make([]string, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := reg.Save(ctx, overrides[id]); err != nil {
			return nil, fmt.Errorf("invalid provider %s: %w", id, err)
		}
	}

	return reg, nil
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path (default: ./federation.toml or ~/.federation/federation.toml)")
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging output")

	RootCmd.AddCommand(versionCmd)
}
