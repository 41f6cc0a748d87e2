package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"quotebot/internal/application/usecase/trigger"
	"quotebot/internal/domain/model"
	"quotebot/internal/infrastructure/config"
	"quotebot/internal/infrastructure/container"
	"quotebot/internal/infrastructure/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	envPath := flag.String("env", ".env", "optional .env file with secrets")
	stdin := flag.Bool("stdin", false, "read chat triggers from stdin, one message per line")
	flag.Parse()

	logger.Setup("info")

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("env", *envPath).Msg("load .env failed")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	c, err := container.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init container failed")
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("worker", name).Msg("worker exited")
				stop()
			}
		}()
	}

	if svc := c.StreamService(); svc != nil {
		run("stream", svc.Run)
	}
	if consumer := c.TriggerConsumer(); consumer != nil {
		run("kafka", consumer.Run)
	}
	if *stdin {
		go readStdin(ctx, c.TriggerService(), cfg.App.NotifyChannel)
	}

	log.Info().
		Str("config", *configPath).
		Bool("stream", cfg.Stream.Enabled).
		Bool("kafka", cfg.Triggers.Kafka.Enabled).
		Bool("stdin", *stdin).
		Msg("quotebot started")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	if s := c.Session(); s != nil {
		_ = s.Shutdown()
	}
	wg.Wait()
}

// readStdin 每行作为一条聊天消息，事件时间取读入时间
func readStdin(ctx context.Context, svc *trigger.Service, channel string) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		t := model.Trigger{Text: sc.Text(), Channel: channel, EventTime: time.Now()}
		if _, err := svc.Handle(ctx, t); err != nil {
			log.Warn().Err(err).Msg("trigger not handled")
		}
		if ctx.Err() != nil {
			return
		}
	}
}
