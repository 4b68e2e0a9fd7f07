package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/strydlabs/stryd/internal/config"
	"github.com/strydlabs/stryd/internal/observability"
	"github.com/strydlabs/stryd/internal/ops"
	"github.com/strydlabs/stryd/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config (defaults apply when empty)")
	addr := flag.String("addr", "", "listen address override")
	flag.Parse()

	observability.InitLogger("stryd", "info")

	cfg := config.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := config.LoadServerConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load config")
		}
		cfg = loaded
		log.Info().Str("path", *configPath).Msg("loaded config")
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger := observability.InitLogger(cfg.Name, cfg.LogLevel)

	server := service.NewServer(cfg.Addr, logger)

	opsServer := ops.New(cfg.Name, cfg.OpsAddr, cfg.CorsOrigins, server)
	go func() {
		if err := opsServer.Serve(); err != nil {
			log.Error().Err(err).Msg("ops server stopped")
		}
	}()

	log.Info().Str("addr", cfg.Addr).Str("ops_addr", cfg.OpsAddr).Msg("starting compression service")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("compression service stopped")
	}
}
