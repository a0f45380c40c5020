// prodctl is the operator console for production orders. It talks to the
// nimo-mes API and never touches stock or order state directly.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-mes/internal/catalog"
	"github.com/bitfantasy/nimo-mes/internal/client"
	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/lifecycle"
	"github.com/bitfantasy/nimo-mes/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what every subcommand needs once the root has been initialised.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	client     *client.Client
	catalog    *catalog.Accessor
	controller *lifecycle.Controller
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := newRootCmd(a)
	root.SetContext(ctx)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var (
		baseURL  string
		token    string
		logLevel string
	)
	root := &cobra.Command{
		Use:          "prodctl",
		Short:        "Production order console",
		Long:         "prodctl - create, start and complete production orders against nimo-mes",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(baseURL, token, logLevel)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base url (default from config)")
	root.PersistentFlags().StringVar(&token, "token", "", "bearer token (default MES_TOKEN)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	root.AddCommand(newMaterialsCmd(a))
	root.AddCommand(newBomCmd(a))
	root.AddCommand(newOrdersCmd(a))
	root.AddCommand(newWizardCmd(a))
	return root
}

func (a *app) init(baseURL, token, logLevel string) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if baseURL != "" {
		cfg.Client.BaseURL = baseURL
	}
	if token != "" {
		cfg.Client.Token = token
	}
	// 命令行输出走 stdout, 日志只写 stderr 或文件
	cfg.Log.Level = logLevel
	if cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.client = client.New(cfg.Client, logger)
	a.catalog = catalog.NewAccessor(a.client, logger)
	a.controller = lifecycle.NewController(a.client, logger)
	return nil
}
