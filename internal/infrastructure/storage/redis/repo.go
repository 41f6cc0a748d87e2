package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"quotebot/internal/application/port"
	"quotebot/internal/domain/model"
)

const defaultStreamMaxLen = 1000

type Repo struct {
	rdb          redis.Cmdable
	prefix       string
	ttl          time.Duration
	keyLatest    string // prefix + ":latest"
	quoteStream  string
	quoteChan    string
	streamMaxLen int64
}

type Options struct {
	Prefix       string
	TTL          time.Duration
	Stream       string // 默认 prefix + ":quotes"
	Channel      string // 默认 prefix + ":quotes:pub"
	StreamMaxLen int64  // XADD 近似裁剪长度，默认 1000
}

func New(rdb redis.Cmdable, opts Options) *Repo {
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = "quotebot"
	}
	if strings.TrimSpace(opts.Stream) == "" {
		opts.Stream = prefix + ":quotes"
	}
	if strings.TrimSpace(opts.Channel) == "" {
		opts.Channel = prefix + ":quotes:pub"
	}
	if opts.StreamMaxLen <= 0 {
		opts.StreamMaxLen = defaultStreamMaxLen
	}
	return &Repo{
		rdb:          rdb,
		prefix:       prefix,
		ttl:          opts.TTL,
		keyLatest:    prefix + ":latest",
		quoteStream:  opts.Stream,
		quoteChan:    opts.Channel,
		streamMaxLen: opts.StreamMaxLen,
	}
}

// UpsertLatestQuote 写入 latest 哈希，并通过 stream + pubsub 广播给下游
// stream 只做有界缓冲（MAXLEN ~），不是历史存储
func (r *Repo) UpsertLatestQuote(ctx context.Context, q *model.Quote) error {
	if !q.Valid() {
		return nil
	}
	b, err := json.Marshal(q)
	if err != nil {
		return err
	}

	// Hash: field = symbol -> json
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, q.Symbol, string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: r.quoteStream,
		MaxLen: r.streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"symbol": q.Symbol,
			"source": string(q.Source),
			"quote":  string(b),
		},
	})
	pipe.Publish(ctx, r.quoteChan, string(b))
	_, err = pipe.Exec(ctx)
	return err
}

// GetLatestQuote 读取 latest 哈希中的记录，不存在时返回 model.ErrQuoteNotFound
func (r *Repo) GetLatestQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	s, err := r.rdb.HGet(ctx, r.keyLatest, symbol).Result()
	if err == redis.Nil {
		return nil, model.ErrQuoteNotFound
	}
	if err != nil {
		return nil, err
	}
	var q model.Quote
	if err := json.Unmarshal([]byte(s), &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// LatestKey 返回 latest 哈希的 key
func (r *Repo) LatestKey() string { return r.keyLatest }

var _ port.Repository = (*Repo)(nil)
