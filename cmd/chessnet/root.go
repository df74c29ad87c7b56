package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hailam/chessnet/internal/arch"
	"github.com/hailam/chessnet/internal/config"
	"github.com/hailam/chessnet/internal/logging"
	"github.com/hailam/chessnet/internal/storage"
	"github.com/hailam/chessnet/internal/variant"
)

// app carries the persistent flags and the state shared by subcommands.
type app struct {
	configPath  string
	variantName string
	batch       int
	logLevel    string
	development bool
	metrics     bool
	catalogDir  string
	cpuprofile  string

	log         *zap.Logger
	reg         *prometheus.Registry
	stopProfile func()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "chessnet",
		Short: "Build policy/value network graphs for chess variants",
		Long: `chessnet assembles the policy/value network graph described by an
architecture config and a chess variant. The graph can be printed as JSON,
summarized, rendered as a diagram, evaluated with synthetic weights or kept
in a local catalog.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "architecture config file (YAML)")
	f.StringVar(&a.variantName, "variant", variant.Crazyhouse.Name, "chess variant: chess or crazyhouse")
	f.IntVar(&a.batch, "batch", 1, "batch size of the network input")
	f.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.BoolVar(&a.development, "dev", false, "human readable console logs")
	f.BoolVar(&a.metrics, "metrics", false, "print metrics in the Prometheus text format when done")
	f.StringVar(&a.catalogDir, "catalog-dir", "", "catalog directory (default: the user data directory)")
	f.StringVar(&a.cpuprofile, "cpuprofile", "", "write cpu profile to file")

	root.AddCommand(
		a.buildCmd(),
		a.summaryCmd(),
		a.renderCmd(),
		a.runCmd(),
		a.catalogCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	l, err := logging.New(a.logLevel, a.development)
	if err != nil {
		return err
	}
	a.log = l
	a.reg = prometheus.NewRegistry()

	// CPUPROFILE works when the flag cannot be passed
	profilePath := a.cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		a.stopProfile = func() {
			pprof.StopCPUProfile()
			f.Close()
		}
		a.log.Info("CPU profiling enabled", zap.String("path", profilePath))
	}
	return nil
}

func (a *app) teardown(cmd *cobra.Command) error {
	if a.stopProfile != nil {
		a.stopProfile()
	}
	defer a.log.Sync() //nolint:errcheck

	if !a.metrics {
		return nil
	}
	families, err := a.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(cmd.OutOrStdout(), mf); err != nil {
			return err
		}
	}
	return nil
}

// network resolves the variant and config flags into a build request.
func (a *app) network() (variant.Variant, arch.Input, arch.Config, error) {
	v, err := variant.Lookup(a.variantName)
	if err != nil {
		return variant.Variant{}, arch.Input{}, arch.Config{}, err
	}
	cfg, err := config.Load(a.configPath, v.Apply(arch.DefaultConfig()))
	if err != nil {
		return variant.Variant{}, arch.Input{}, arch.Config{}, err
	}
	return v, v.Input(a.batch), cfg, nil
}

func (a *app) build() (*arch.Network, error) {
	v, in, cfg, err := a.network()
	if err != nil {
		return nil, err
	}
	net, err := arch.Build(in, cfg, arch.WithLogger(a.log.With(zap.String("variant", v.Name))))
	if err != nil {
		return nil, fmt.Errorf("build %s network: %w", v.Name, err)
	}
	return net, nil
}

func (a *app) openCatalog() (*storage.Catalog, error) {
	dir := a.catalogDir
	if dir == "" {
		var err error
		if dir, err = storage.GetCatalogDir(); err != nil {
			return nil, err
		}
	}
	a.log.Debug("opening catalog", zap.String("dir", dir))
	return storage.Open(dir, storage.WithRegisterer(a.reg), storage.WithLogger(a.log))
}
