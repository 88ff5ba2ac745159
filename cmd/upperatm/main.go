package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/upperatm/internal/config"
	"github.com/san-kum/upperatm/internal/logging"
	"github.com/san-kum/upperatm/internal/storage"
)

var (
	configFile string
	dataDir    string
	logLevel   string
	logFormat  string
	workers    int
	noChecks   bool

	model   string
	preset  string
	f107    float64
	f107a   float64
	ap      float64
	atTime  string
	day     float64
	utsec   float64
	iyd     int
	stl     float64
	alt     float64
	lat     float64
	lon     float64
	species string
	noSave  bool

	altMin  float64
	altMax  float64
	altStep float64
	latN    int
	lonN    int

	column  string
	logPlot bool
	outFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "upperatm",
		Short:         "upper-atmosphere density and wind models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logging.Set(logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr))
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml or hcl)")
	pf.StringVar(&dataDir, "data", "", "run output directory (overrides output_dir)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", "", "console or json")
	pf.IntVar(&workers, "workers", 0, "worker count (overrides workers)")
	pf.BoolVar(&noChecks, "no-range-checks", false, "skip physical range validation")

	rootCmd.AddCommand(
		densityCmd(),
		windCmd(),
		profileCmd(),
		gridCmd(),
		listCmd(),
		plotCmd(),
		exportCmd(),
		presetsCmd(),
		variantsCmd(),
		configCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logging.L().Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var loaded *config.Config

// loadConfig reads --config over the defaults and applies persistent flag
// overrides. CLI flags win over the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if loaded != nil {
		return loaded, nil
	}

	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.OutputDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
		if cfg.QueueDepth < 2*workers {
			cfg.QueueDepth = 2 * workers
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loaded = cfg
	return cfg, nil
}

// spaceWeather resolves --preset (or the configured preset) and applies
// explicit index flags on top.
func spaceWeather(cmd *cobra.Command, cfg *config.Config) (config.SpaceWeather, error) {
	name := cfg.SpaceWeather
	if cmd.Flags().Changed("preset") {
		name = preset
	}
	sw := config.GetPreset(name)
	if sw == nil {
		return config.SpaceWeather{}, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
	}

	if cmd.Flags().Changed("f107") {
		sw.F107 = f107
	}
	if cmd.Flags().Changed("f107a") {
		sw.F107A = f107a
	}
	if cmd.Flags().Changed("ap") {
		sw.Ap = ap
	}
	return *sw, nil
}

func swFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "", "space-weather preset (quiet, moderate, active, storm)")
	cmd.Flags().Float64Var(&f107, "f107", 0, "daily F10.7 (overrides preset)")
	cmd.Flags().Float64Var(&f107a, "f107a", 0, "81-day average F10.7 (overrides preset)")
	cmd.Flags().Float64Var(&ap, "ap", 0, "ap index (overrides preset)")
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	st := storage.New(cfg.OutputDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func logRun(msg string, meta storage.RunMetadata, id string) {
	logging.L().Info(msg,
		zap.String("run", id),
		zap.String("model", meta.Model),
		zap.Ints("shape", meta.Shape),
		zap.Int("failed", meta.Failed),
	)
}
