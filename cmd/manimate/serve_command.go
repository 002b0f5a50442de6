package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"manimate/internal/api"
	"manimate/internal/logging"
	"manimate/internal/preflight"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bindFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			svc, err := ctx.buildService(runCtx, false)
			if err != nil {
				return err
			}
			store, err := ctx.historyStore(runCtx)
			if err != nil {
				return err
			}

			for _, result := range preflight.RunAll(runCtx, cfg) {
				if result.Passed {
					continue
				}
				logger.Warn("preflight check failed",
					logging.String("check", result.Name),
					logging.String("detail", result.Detail),
					logging.Bool("optional", result.Optional),
					logging.String(logging.FieldEventType, "preflight_failed"),
				)
			}

			status := func(c context.Context) api.Status {
				checks := preflight.RunAll(c, cfg)
				return api.Status{
					Ready:     !preflight.Failed(checks),
					WorkDir:   cfg.Paths.WorkDir,
					OutputDir: cfg.Paths.OutputDir,
					VideoURL:  svc.VideoURL(),
					Checks:    checks,
				}
			}
			handler := api.NewHandler(svc, store, status, logger)
			engine := api.NewEngine(api.RouteConfig{
				VideosMount: cfg.Server.VideosMount,
				OutputDir:   cfg.Paths.OutputDir,
				APIToken:    cfg.Server.APIToken,
			}, handler, logger)

			bind := cfg.Server.Bind
			if strings.TrimSpace(bindFlag) != "" {
				bind = bindFlag
			}
			server, err := api.NewServer(bind, engine, logger)
			if err != nil {
				return err
			}
			return server.Serve(runCtx)
		},
	}

	cmd.Flags().StringVar(&bindFlag, "bind", "", "Listen address (overrides server.bind)")
	return cmd
}
