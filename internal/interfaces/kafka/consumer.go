package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	kafkaGo "github.com/segmentio/kafka-go"

	"quotebot/internal/application/usecase/trigger"
	"quotebot/internal/domain/model"
)

// MessageReader kafka-go Reader 中用到的部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkaGo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

type TriggerHandler interface {
	Handle(ctx context.Context, t model.Trigger) (*trigger.Report, error)
}

// NewReader 创建消费组 reader，未提交过 offset 时从最新位置开始
func NewReader(brokers []string, topic, groupID string) *kafkaGo.Reader {
	return kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafkaGo.LastOffset,
	})
}

// triggerEvent webhook 转发过来的聊天事件
// ts 为聊天平台的 "秒.微秒" 字符串，也接受数字
type triggerEvent struct {
	Text    string          `json:"text"`
	Channel string          `json:"channel"`
	TS      json.RawMessage `json:"ts"`
}

// DecodeTrigger 解析一条触发消息；缺少 ts 时使用消息写入时间
func DecodeTrigger(m kafkaGo.Message) (model.Trigger, error) {
	var ev triggerEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return model.Trigger{}, fmt.Errorf("unmarshal trigger: %w", err)
	}

	t := model.Trigger{Text: ev.Text, Channel: ev.Channel, EventTime: m.Time}
	ts := strings.Trim(string(bytes.TrimSpace(ev.TS)), `"`)
	if ts != "" && ts != "null" {
		et, err := ParseEventTime(ts)
		if err != nil {
			return model.Trigger{}, err
		}
		t.EventTime = et
	}
	if t.EventTime.IsZero() {
		return model.Trigger{}, errors.New("trigger without event time")
	}
	return t, nil
}

// ParseEventTime 解析 "1616784000.000200" 形式的时间戳，小数部分最多保留到纳秒
func ParseEventTime(s string) (time.Time, error) {
	secPart, fracPart, _ := strings.Cut(strings.TrimSpace(s), ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse event time %q: %w", s, err)
	}

	var nsec int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		fracPart += strings.Repeat("0", 9-len(fracPart))
		if nsec, err = strconv.ParseInt(fracPart, 10, 64); err != nil {
			return time.Time{}, fmt.Errorf("parse event time %q: %w", s, err)
		}
	}
	return time.Unix(sec, nsec), nil
}

type Consumer struct {
	reader  MessageReader
	handler TriggerHandler
}

func NewConsumer(reader MessageReader, handler TriggerHandler) *Consumer {
	return &Consumer{reader: reader, handler: handler}
}

// Run 逐条消费直到 ctx 取消；每条消息处理完（包括失败）都会提交 offset
func (c *Consumer) Run(ctx context.Context) error {
	log.Info().Msg("trigger consumer waiting for messages")
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch trigger: %w", err)
		}

		log.Debug().
			Str("topic", m.Topic).
			Int("partition", m.Partition).
			Int64("offset", m.Offset).
			Msg("trigger received")

		c.handle(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Int64("offset", m.Offset).Msg("commit trigger failed")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafkaGo.Message) {
	t, err := DecodeTrigger(m)
	if err != nil {
		log.Warn().Err(err).Bytes("value", m.Value).Msg("bad trigger message, skipped")
		return
	}

	if _, err := c.handler.Handle(ctx, t); err != nil {
		ev := log.Warn()
		if errors.Is(err, trigger.ErrStaleTrigger) {
			ev = log.Debug()
		}
		ev.Err(err).Str("channel", t.Channel).Time("event_time", t.EventTime).Msg("trigger not handled")
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }
