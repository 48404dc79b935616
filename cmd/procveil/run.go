package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/procveil/procveil/cmd/procveil/app"
	"github.com/procveil/procveil/pkg/cgroup"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envSettings can override the flag defaults, so the daemon is configurable
// without touching its unit file.
type envSettings struct {
	LogLevel       string `envconfig:"LOG_LEVEL"`
	HTTPListenPort int    `envconfig:"HTTP_LISTEN_PORT"`
	CgroupRoot     string `envconfig:"CGROUP_ROOT"`
}

func NewRunCommand(version string) *cobra.Command {
	env := envSettings{
		LogLevel:       slog.LevelInfo.String(),
		HTTPListenPort: 6061,
		CgroupRoot:     cgroup.DefaultRoot,
	}
	if err := envconfig.Process("PROCVEIL", &env); err != nil {
		slog.Warn(err.Error())
	}

	var (
		logLevel        = pflag.String("log-level", env.LogLevel, "log level")
		logRateInterval = pflag.Duration("log-rate-interval", 100*time.Millisecond, "Log rate limit interval")
		logRateBurst    = pflag.Int("log-rate-burst", 100, "Log rate burst")

		httpListenPort = pflag.Int("http-listen-port", env.HTTPListenPort, "http listen port for views, metrics and pprof")
		cgroupRoot     = pflag.String("cgroup-root", env.CgroupRoot, "Path to the host cgroupfs mount")
		readBufferSize = pflag.Int("read-buffer-size", 1<<20, "Render buffer size for a single view read")
	)

	command := &cobra.Command{
		Use: "run",
		Run: func(cmd *cobra.Command, args []string) {
			pflag.Parse()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.New(&app.Config{
				LogLevel:        *logLevel,
				LogRateInterval: *logRateInterval,
				LogRateBurst:    *logRateBurst,
				Version:         version,
				HTTPListenPort:  *httpListenPort,
				CgroupRoot:      *cgroupRoot,
				ReadBufferSize:  *readBufferSize,
			}).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	return command
}
