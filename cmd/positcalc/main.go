// Copyright 2020 Aleksandr Demakin. All rights reserved.

// Command positcalc inspects posit formats, converts numbers
// and runs fused dot product and linear solver demos.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/avdva/posit"
	"github.com/avdva/posit/blas"
)

type app struct {
	cfg    *Config
	logger *zap.Logger
	calc   calculator

	configPath string
	verbose    bool
	flags      Config
}

type result interface {
	writeText(w io.Writer) error
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	defaults := DefaultConfig()
	root := &cobra.Command{
		Use:           "positcalc",
		Short:         "Posit arithmetic calculator",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVarP(&a.flags.Format, "format", "f", defaults.Format, "posit format as nbits,es")
	pf.StringVarP(&a.flags.Output, "output", "o", defaults.Output, "output format: text or json")
	pf.StringVar(&a.flags.Policy, "policy", defaults.Policy, "exception policy: propagate-nar or signal-invalid")
	pf.StringVar(&a.flags.LogLevel, "log-level", defaults.LogLevel, "log level")

	root.AddCommand(a.infoCmd(), a.convertCmd(), a.dotCmd(defaults), a.solveCmd(defaults), a.configCmd())
	return root, a
}

// setup loads the config, applies the flags that were set explicitly and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := DefaultConfig()
	if a.configPath != "" {
		var err error
		if cfg, err = LoadConfig(a.configPath); err != nil {
			return err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format = a.flags.Format
	}
	if flags.Changed("output") {
		cfg.Output = a.flags.Output
	}
	if flags.Changed("policy") {
		cfg.Policy = a.flags.Policy
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.LogLevel
	}
	if flags.Lookup("partitions") != nil && flags.Changed("partitions") {
		cfg.Partitions = a.flags.Partitions
	}
	if flags.Lookup("n") != nil && flags.Changed("n") {
		cfg.Dimension = a.flags.Dimension
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.calc = cfg.calculator()

	config := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	config.Level = level
	if a.verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if a.logger, err = config.Build(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger.Debug("configured",
		zap.String("format", cfg.Format),
		zap.String("policy", cfg.Policy),
		zap.String("output", cfg.Output))
	return nil
}

func (a *app) emit(cmd *cobra.Command, r result) error {
	w := cmd.OutOrStdout()
	if a.cfg.Output != "json" {
		return r.writeText(w)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the dynamic range and limits of a format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.emit(cmd, a.calc.info())
		},
	}
}

func (a *app) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <number>...",
		Short: "Convert decimal numbers to the nearest posits",
		Long: `Converts decimal numbers to the nearest posits. Negative numbers
may be given anywhere on the command line, they are never parsed as flags.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.calc.convert(args)
			if err != nil {
				return err
			}
			return a.emit(cmd, results)
		},
	}
}

func (a *app) dotCmd(defaults *Config) *cobra.Command {
	var (
		x, y   []string
		random int
		seed   int64
	)
	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Compare fused, naive and parallel dot products",
		Long: `Computes the dot product of two vectors three ways: rounding after
every operation, accumulating in a single quire, and accumulating partitions
in parallel quires that are merged afterwards. The quire fingerprints show
that the fused result does not depend on the partitioning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if random > 0 {
				x, y = randomValues(random, seed), randomValues(random, seed+1)
			}
			a.logger.Debug("dot", zap.Int("terms", len(x)), zap.Int("partitions", a.cfg.Partitions))
			r, err := a.calc.dot(cmd.Context(), x, y, a.cfg.Partitions)
			if err != nil {
				return err
			}
			if !r.Identical {
				a.logger.Warn("partitioned quire differs", zap.String("fused", r.Fingerprint), zap.String("parallel", r.ParallelFingerprint))
			}
			return a.emit(cmd, r)
		},
	}
	cmd.Flags().StringSliceVar(&x, "x", nil, "first vector")
	cmd.Flags().StringSliceVar(&y, "y", nil, "second vector")
	cmd.Flags().IntVar(&random, "random", 0, "use random vectors of the given length")
	cmd.Flags().Int64Var(&seed, "seed", 1, "seed for random vectors")
	cmd.Flags().IntVarP(&a.flags.Partitions, "partitions", "p", defaults.Partitions, "number of parallel partitions")
	return cmd
}

func randomValues(n int, seed int64) []string {
	rnd := rand.New(rand.NewSource(seed))
	values := make([]string, n)
	for i := range values {
		values[i] = strconv.FormatFloat(rnd.NormFloat64()*float64(int64(1)<<uint(rnd.Intn(30))), 'g', -1, 64)
	}
	return values
}

func (a *app) solveCmd(defaults *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a linear system with a fused Crout decomposition",
		Long: `Builds A = L*U from triangular factors with rows 1, 2, 3...,
computes b = A*x for x = 1+epsilon with fused dot products, then solves A*x = b
with the posit Crout solver and with a float64 LU decomposition.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.calc.solve(a.cfg.Dimension)
			if err != nil {
				return err
			}
			a.logger.Info("crout finished",
				zap.Int("n", r.N),
				zap.Duration("elapsed", r.Elapsed),
				zap.String("max_error", r.MaxError))
			return a.emit(cmd, r)
		},
	}
	cmd.Flags().IntVar(&a.flags.Dimension, "n", defaults.Dimension, "system size")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		Args:  cobra.NoArgs,
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write the effective configuration to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			}
			if err := a.cfg.Save(path); err != nil {
				return err
			}
			a.logger.Debug("config saved", zap.String("path", path))
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", path)
			return err
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

// operandArgs moves the operands of convert behind "--", so that negative
// numbers are not taken for shorthand flags. Other commands are left as is.
func operandArgs(root *cobra.Command, args []string) []string {
	cmd, _, err := root.Find(args)
	if err != nil || cmd.Name() != "convert" {
		return args
	}
	path := strings.Fields(cmd.CommandPath())[1:]
	var head, operands []string
	var negative, value, terminated bool
	for _, arg := range args {
		switch {
		case terminated:
			operands = append(operands, arg)
		case value:
			head = append(head, arg)
			value = false
		case arg == "--":
			terminated = true
		case isNegativeNumber(arg):
			operands = append(operands, arg)
			negative = true
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			head = append(head, arg)
			value = takesValue(cmd, arg)
		case len(path) > 0 && arg == path[0]:
			head = append(head, arg)
			path = path[1:]
		default:
			operands = append(operands, arg)
		}
	}
	if !negative {
		return args
	}
	return append(append(head, "--"), operands...)
}

func isNegativeNumber(s string) bool {
	if !strings.HasPrefix(s, "-") {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil || errors.Is(err, strconv.ErrRange)
}

// takesValue reports whether a flag without an inline value consumes the next argument.
func takesValue(cmd *cobra.Command, arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	var fl *pflag.Flag
	if name, long := strings.CutPrefix(arg, "--"); long {
		fl = cmd.Flag(name)
	} else if len(arg) == 2 {
		if fl = cmd.LocalFlags().ShorthandLookup(arg[1:]); fl == nil {
			fl = cmd.InheritedFlags().ShorthandLookup(arg[1:])
		}
	}
	return fl != nil && fl.NoOptDefVal == ""
}

// errorClass names the kind of a failure.
func errorClass(err error) string {
	switch {
	case posit.ArithmeticError.Has(err):
		return "posit arithmetic"
	case posit.QuireError.Has(err):
		return "quire"
	case posit.InternalError.Has(err):
		return "posit internal"
	case blas.Error.Has(err):
		return "blas"
	default:
		return "command"
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, a := newRootCmd()
	root.SetArgs(operandArgs(root, os.Args[1:]))
	err := root.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if a.logger == nil {
		fmt.Fprintln(os.Stderr, err)
	} else {
		a.logger.Error("uncaught "+errorClass(err)+" error", zap.Error(err))
		_ = a.logger.Sync()
	}
	os.Exit(1)
}
