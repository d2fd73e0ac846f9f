package main

import (
	"context"
	"time"

	"github.com/alecthomas/kong"

	"github.com/wolfeidau/hostident/cmd/hostident/internal/commands"
	"github.com/wolfeidau/hostident/internal/logger"
	"github.com/wolfeidau/hostident/internal/provision"
	"github.com/wolfeidau/hostident/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Provision commands.ProvisionCmd `cmd:"" help:"Generate a root CA and host certificate and store them"`
		Show      commands.ShowCmd      `cmd:"" help:"Print certificate metadata for the stored identity"`
		Verify    commands.VerifyCmd    `cmd:"" help:"Check that the stored identity is usable"`
		Delete    commands.DeleteCmd    `cmd:"" help:"Remove the stored identity"`
		Debug     bool                  `help:"Enable debug mode." env:"HOSTIDENT_DEBUG"`
		Otel      bool                  `help:"Export traces and metrics over OTLP." env:"HOSTIDENT_OTEL"`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
			"root_cn": provision.DefaultRootCommonName,
			"host_cn": provision.DefaultHostCommonName,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log := logger.Setup(cli.Debug)

	shutdown := telemetry.Noop
	if cli.Otel {
		var err error
		shutdown, err = telemetry.InitTelemetry(ctx, "hostident", version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = telemetry.Noop
		}
	}

	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Logger: log})

	// FatalIfErrorf exits, so flush telemetry first
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if serr := shutdown(shutdownCtx); serr != nil {
		log.Error().Err(serr).Msg("Failed to shutdown telemetry")
	}
	cancel()

	cmd.FatalIfErrorf(err)
}
