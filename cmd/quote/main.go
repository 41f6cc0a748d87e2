package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"quotebot/internal/application/usecase/snapshot"
	"quotebot/internal/infrastructure/config"
	"quotebot/internal/infrastructure/container"
	"quotebot/internal/infrastructure/logger"
	"quotebot/internal/interfaces/console"
)

func main() {
	symbols := flag.String("s", "", "comma separated symbols, e.g. GME,BRK.B")
	configPath := flag.String("config", "", "optional config file for the snapshot section")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	level := flag.String("log", "warn", "log level")
	flag.Parse()

	logger.Setup(*level)

	var list []string
	for _, s := range strings.Split(*symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "usage: quote -s SYMBOL[,SYMBOL...]")
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("load config failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	svc := snapshot.NewService(container.NewFetcher(cfg))
	results, err := svc.Quotes(ctx, list)
	if err != nil {
		log.Fatal().Err(err).Msg("quote request failed")
	}

	sink := console.NewSink(os.Stdout, true)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Symbol, r.Err)
			continue
		}
		_ = sink.Notify(ctx, "quote", r.Quote)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
