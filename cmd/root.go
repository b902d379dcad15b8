package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/maastricht-university/alignment-qc/config"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v          *viper.Viper
	configPath string
	conf       *cfg.Root
	log        *logrus.Logger
}

// flagKey binds a command flag to a configuration key.
type flagKey struct{ flag, key string }

// setup binds the invoked command's flags, then loads and validates the
// configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command, binds ...flagKey) error {
	binds = append(binds, flagKey{"log-level", "log.level"}, flagKey{"log-format", "log.format"})
	for _, b := range binds {
		f := cmd.Flags().Lookup(b.flag)
		if f == nil {
			f = cmd.InheritedFlags().Lookup(b.flag)
		}
		if f == nil {
			return fmt.Errorf("no flag %q on %s", b.flag, cmd.Name())
		}
		if err := a.v.BindPFlag(b.key, f); err != nil {
			return err
		}
	}
	conf, err := cfg.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.conf = conf
	a.log, err = cfg.NewLogger(conf.Log)
	if err != nil {
		return err
	}
	a.log.SetOutput(cmd.ErrOrStderr())
	return nil
}

func NewRootCmd() *cobra.Command {
	a := &app{v: cfg.NewViper()}
	root := &cobra.Command{
		Use:           "aqc",
		Short:         "Acoustic measurement and alignment quality control for aligned speech corpora",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")

	root.AddCommand(
		newRunCmd(a),
		newMeasureCmd(a),
		newAssessCmd(a),
		newAlignCmd(a),
		newCompareCmd(a),
		newRunsCmd(a),
		newConfigCmd(a),
	)
	return root
}

// Execute runs the command tree until it finishes or the process is
// interrupted.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err.Error())
		return 1
	}
	return 0
}
