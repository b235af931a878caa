package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/henderiw/fabricwiring/catalog"
	"github.com/henderiw/fabricwiring/fabric"
	"github.com/henderiw/fabricwiring/template"
	"github.com/henderiw/fabricwiring/wiring"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/yndd/ndd-runtime/pkg/logging"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/yaml"
)

const envPrefix = "FABRICWIRING"

const (
	flagConfig       = "config"
	flagSettings     = "settings"
	flagCatalogDir   = "catalog-dir"
	flagOutput       = "output"
	flagDot          = "dot"
	flagTopologyJSON = "topology-json"
	flagSummary      = "summary"
	flagLogLevel     = "log-level"
	flagDev          = "dev"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// app carries what every sub-command needs: the flag and environment backed
// configuration and the output streams.
type app struct {
	config *viper.Viper
	out    io.Writer
	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{config: viper.New(), out: out, errOut: errOut}
	a.config.SetEnvPrefix(envPrefix)
	a.config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.config.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "fabricwiring",
		Short: "Generate spine-leaf wiring manifests from a fabric request",
		Args:  cobra.NoArgs,
		// errors are printed once by main
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.readSettings()
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.StringP(flagConfig, "f", "", "Fabric request file (YAML or JSON)")
	flags.String(flagSettings, "", "Settings file holding flag values (YAML, JSON or TOML)")
	flags.String(flagCatalogDir, "", "Directory of switch profiles (defaults to the bundled catalog)")
	flags.String(flagLogLevel, "info", "Log level: debug, info, warn or error")
	flags.Bool(flagDev, false, "Human readable development logging")
	a.bind(flags)

	cmd.AddCommand(
		a.newGenerateCmd(),
		a.newValidateCmd(),
		a.newProfilesCmd(),
	)
	return cmd
}

func (a *app) bind(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// only fails for a nil flag
		_ = a.config.BindPFlag(f.Name, f)
	})
}

// readSettings loads the optional settings file. Flags given on the command
// line and FABRICWIRING_* variables take precedence over it.
func (a *app) readSettings() error {
	path := a.config.GetString(flagSettings)
	if path == "" {
		return nil
	}
	a.config.SetConfigFile(path)
	return errors.Wrapf(a.config.ReadInConfig(), "cannot read settings %s", path)
}

func (a *app) newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the wiring manifests of a fabric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return a.generate()
		},
	}
	flags := cmd.Flags()
	flags.StringP(flagOutput, "o", "", "Manifest output file (defaults to stdout)")
	flags.String(flagDot, "", "Write the fabric graph in DOT format to this file")
	flags.String(flagTopologyJSON, "", "Write the fabric topology as nodes/edges JSON to this file")
	flags.Bool(flagSummary, false, "Print the per-switch port usage and the manifest counts")
	a.bind(flags)
	return cmd
}

func (a *app) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a fabric request against the switch catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return a.validate()
		},
	}
}

func (a *app) newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles [model]",
		Short: "List the switch models of the catalog, or the ports of one model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			c, err := a.catalog()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				p, err := c.Profile(args[0])
				if err != nil {
					return err
				}
				printPorts(a.out, p)
				return nil
			}
			return printProfiles(a.out, c)
		},
	}
}

func (a *app) generate() error {
	log := a.logger()
	req, err := a.request()
	if err != nil {
		return err
	}
	c, err := a.catalog()
	if err != nil {
		return err
	}

	f, err := fabric.New(&fabric.Config{Request: req, Catalog: c, Log: log})
	if err != nil {
		return err
	}

	objs := f.Manifests()
	b, err := wiring.Marshal(objs)
	if err != nil {
		return err
	}
	if err := a.write(a.config.GetString(flagOutput), b); err != nil {
		return err
	}

	if path := a.config.GetString(flagDot); path != "" {
		fd, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "cannot create dot file")
		}
		defer fd.Close()
		if err := f.PrintGraph(fd); err != nil {
			return err
		}
	}
	if path := a.config.GetString(flagTopologyJSON); path != "" {
		b, err := f.GenerateJSON()
		if err != nil {
			return errors.Wrap(err, "cannot render topology")
		}
		if err := os.WriteFile(path, b, 0o644); err != nil {
			return errors.Wrap(err, "cannot write topology file")
		}
	}
	if a.config.GetBool(flagSummary) {
		printSummary(a.errOut, f.Summary())
		printManifests(a.errOut, objs)
	}
	return nil
}

func (a *app) validate() error {
	req, err := a.request()
	if err != nil {
		return err
	}
	c, err := a.catalog()
	if err != nil {
		return err
	}
	res := fabric.Validate(req, c)
	if res.OK {
		fmt.Fprintln(a.out, "fabric request is valid")
		return nil
	}
	for _, e := range res.Errors {
		fmt.Fprintf(a.out, "- %s\n", e)
	}
	return errors.Errorf("fabric request has %d errors", len(res.Errors))
}

// request reads the fabric request named by --config. Unknown fields are
// rejected.
func (a *app) request() (*template.FabricRequest, error) {
	path := a.config.GetString(flagConfig)
	if path == "" {
		return nil, errors.New("a fabric request file is required (--config)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read fabric request")
	}
	req := &template.FabricRequest{}
	if err := yaml.UnmarshalStrict(b, req); err != nil {
		return nil, errors.Wrapf(err, "cannot parse fabric request %s", path)
	}
	return req, nil
}

func (a *app) catalog() (*catalog.Catalog, error) {
	if dir := a.config.GetString(flagCatalogDir); dir != "" {
		return catalog.LoadDir(dir)
	}
	return catalog.Bundled()
}

func (a *app) write(path string, b []byte) error {
	if path == "" {
		_, err := a.out.Write(b)
		return err
	}
	return errors.Wrap(os.WriteFile(path, b, 0o644), "cannot write manifests")
}

func (a *app) logger() logging.Logger {
	return logging.NewLogrLogger(newZapLogger(a.config.GetString(flagLogLevel), a.config.GetBool(flagDev), a.errOut).
		WithName("fabricwiring"))
}

func newZapLogger(level string, dev bool, w io.Writer) logr.Logger {
	zapLevel := zapcore.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	}
	return zap.New(zap.UseDevMode(dev), zap.Level(zapLevel), zap.WriteTo(w))
}
