package main

import (
	"flag"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"

	"github.com/strydlabs/stryd/internal/loadgen"
	"github.com/strydlabs/stryd/internal/observability"
)

// runConfig persists a load run target so repeated runs don't need flags.
type runConfig struct {
	Addr    string `toml:"addr"`
	Clients int    `toml:"clients"`
	Flood   bool   `toml:"flood"`
}

func main() {
	configPath := flag.String("config", "", "path to TOML run config")
	addr := flag.String("addr", "127.0.0.1:4000", "service address")
	clients := flag.Int("clients", 1000, "number of concurrent clients")
	flood := flag.Bool("flood", false, "send oversized frames to exercise the drop path")
	flag.Parse()

	logger := observability.InitLogger("loadgen", "info")

	cfg := runConfig{Addr: *addr, Clients: *clients, Flood: *flood}
	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to load run config")
		}
		if cfg.Addr == "" {
			cfg.Addr = *addr
		}
		if cfg.Clients == 0 {
			cfg.Clients = *clients
		}
	}

	cases := loadgen.Cases()
	if cfg.Flood {
		cases = loadgen.FloodCases()
	}

	log.Info().Str("addr", cfg.Addr).Int("clients", cfg.Clients).Int("cases", len(cases)).
		Msg("starting load run")
	results := loadgen.RunClients(cfg.Addr, cfg.Clients, cases, logger)
	log.Info().Int("count", results.Count).Int("passed", results.Passed).Int("failed", results.Failed).
		Msg("load run complete")

	if results.Failed > 0 {
		os.Exit(1)
	}
}
