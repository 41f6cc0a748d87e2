package container

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"quotebot/internal/application/port"
	"quotebot/internal/application/usecase/snapshot"
	streamuc "quotebot/internal/application/usecase/stream"
	"quotebot/internal/application/usecase/trigger"
	dsvc "quotebot/internal/domain/service"
	"quotebot/internal/infrastructure/config"
	"quotebot/internal/infrastructure/provider/yahoo"
	"quotebot/internal/infrastructure/storage/composite"
	pgrepo "quotebot/internal/infrastructure/storage/postgres"
	redisrepo "quotebot/internal/infrastructure/storage/redis"
	sqliterepo "quotebot/internal/infrastructure/storage/sqlite"
	"quotebot/internal/infrastructure/stream"
	"quotebot/internal/interfaces/console"
	"quotebot/internal/interfaces/kafka"
)

// Container 包含所有应用依赖
type Container struct {
	cfg *config.Config

	redisClient *redis.Client
	sqliteRepo  *sqliterepo.Repo
	redisRepo   *redisrepo.Repo
	pgRepo      *pgrepo.Repo
	repo        *composite.Repo

	fetcher  *yahoo.Client
	notifier port.Notifier
	gate     *dsvc.StalenessGate

	snapshotSvc *snapshot.Service
	triggerSvc  *trigger.Service
	session     *stream.Session
	streamSvc   *streamuc.Service
	consumer    *kafka.Consumer

	closeOnce   sync.Once
	closerChain []func() error
}

// New 创建新的容器实例
func New(cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}

	// 初始化存储层
	if err := c.initStorage(); err != nil {
		// 清理已初始化的资源
		_ = c.Close()
		return nil, err
	}

	c.initSnapshot()
	c.notifier = console.NewSink(os.Stdout, true)
	c.gate = dsvc.NewStalenessGate()
	c.triggerSvc = trigger.NewService(trigger.ServiceDeps{
		Quotes:   c.snapshotSvc,
		Gate:     c.gate,
		Notifier: c.notifier,
		Repo:     c.repo,
	})

	if cfg.Stream.Enabled {
		c.initStream()
	}
	if cfg.Triggers.Kafka.Enabled {
		c.initKafka()
	}

	return c, nil
}

// initStorage 初始化存储层（Redis、SQLite、Postgres）
func (c *Container) initStorage() error {
	var repos []port.Repository

	// Redis
	if c.cfg.Storage.Redis.Enabled {
		if err := c.initRedis(); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
		repos = append(repos, c.redisRepo)
	}

	// SQLite
	if c.cfg.Storage.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
		repos = append(repos, c.sqliteRepo)
	}

	// Postgres
	if c.cfg.Storage.Postgres.Enabled {
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
		repos = append(repos, c.pgRepo)
	}

	c.repo = composite.New(repos...)
	if c.repo.Len() == 0 {
		log.Warn().Msg("no storage enabled, latest quotes are not persisted")
	}
	return nil
}

// initRedis 初始化 Redis 连接
func (c *Container) initRedis() error {
	rc := c.cfg.Storage.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.redisClient = rdb
	c.redisRepo = redisrepo.New(rdb, redisrepo.Options{
		Prefix:  rc.Prefix,
		TTL:     time.Duration(rc.TTLSeconds) * time.Second,
		Stream:  rc.Stream,
		Channel: rc.Channel,
	})

	// 注册关闭回调
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", rc.Addr).
		Int("db", rc.DB).
		Str("key", c.redisRepo.LatestKey()).
		Msg("redis initialized")

	return nil
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Storage.SQLite.Path)
	if err != nil {
		return err
	}

	c.sqliteRepo = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", c.cfg.Storage.SQLite.Path).
		Msg("sqlite initialized")

	return nil
}

// initPostgres 初始化 Postgres（DSN 不写入日志）
func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}

	c.pgRepo = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("postgres initialized")
	return nil
}

func (c *Container) initSnapshot() {
	c.fetcher = NewFetcher(c.cfg)
	c.snapshotSvc = snapshot.NewService(c.fetcher)
}

// NewFetcher 按 snapshot 配置创建行情客户端，cmd/quote 也复用它
func NewFetcher(cfg *config.Config) *yahoo.Client {
	sc := cfg.Snapshot
	opts := []yahoo.ClientOption{
		yahoo.WithBaseURL(sc.BaseURL),
		yahoo.WithHTTPClient(&http.Client{Timeout: time.Duration(sc.TimeoutSec) * time.Second}),
	}
	if sc.UserAgent != "" {
		opts = append(opts, yahoo.WithHeader(http.Header{"User-Agent": []string{sc.UserAgent}}))
	}
	return yahoo.NewClient(opts...)
}

func (c *Container) initStream() {
	sc := c.cfg.Stream
	c.session = stream.NewSession(stream.Options{
		URL:            sc.WsURL,
		Symbols:        sc.Symbols,
		BackoffInitial: time.Duration(sc.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(sc.BackoffMaxMs) * time.Millisecond,
		BackoffJitter:  sc.BackoffJitter,
	})
	c.streamSvc = streamuc.NewService(streamuc.ServiceDeps{
		Stream:   c.session,
		Notifier: c.notifier,
		Repo:     c.repo,
		Channel:  c.cfg.App.NotifyChannel,
	})

	// Run 退出前 Shutdown 是幂等的，这里兜底
	c.closerChain = append(c.closerChain, func() error {
		return c.session.Shutdown()
	})

	log.Info().
		Str("url", sc.WsURL).
		Strs("symbols", sc.Symbols).
		Msg("stream session initialized")
}

func (c *Container) initKafka() {
	kc := c.cfg.Triggers.Kafka
	reader := kafka.NewReader(kc.Brokers, kc.Topic, kc.GroupID)
	c.consumer = kafka.NewConsumer(reader, c.triggerSvc)

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing kafka reader")
		return c.consumer.Close()
	})

	log.Info().
		Strs("brokers", kc.Brokers).
		Str("topic", kc.Topic).
		Str("group_id", kc.GroupID).
		Msg("kafka trigger consumer initialized")
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Repo 获取组合仓储（未启用任何存储时为空组合）
func (c *Container) Repo() port.Repository {
	return c.repo
}

// SQLiteRepo 获取 SQLite 仓储
func (c *Container) SQLiteRepo() *sqliterepo.Repo {
	return c.sqliteRepo
}

// RedisRepo 获取 Redis 仓储
func (c *Container) RedisRepo() *redisrepo.Repo {
	return c.redisRepo
}

func (c *Container) SnapshotService() *snapshot.Service { return c.snapshotSvc }

func (c *Container) TriggerService() *trigger.Service { return c.triggerSvc }

// StreamService 未启用推送时为 nil
func (c *Container) StreamService() *streamuc.Service { return c.streamSvc }

// Session 未启用推送时为 nil
func (c *Container) Session() *stream.Session { return c.session }

// TriggerConsumer 未启用 kafka 时为 nil
func (c *Container) TriggerConsumer() *kafka.Consumer { return c.consumer }

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
