package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"quotebot/internal/application/port"
	"quotebot/internal/domain/model"
)

// Sink 把报价打印到终端，实现 port.Notifier
type Sink struct {
	mu  sync.Mutex
	out io.Writer
	fmt *Formatter
}

func NewSink(out io.Writer, color bool) *Sink {
	if out == nil {
		out = os.Stdout
	}
	return &Sink{out: out, fmt: NewFormatter(color)}
}

func (s *Sink) Notify(ctx context.Context, channel string, q *model.Quote) error {
	text := s.fmt.Format(q)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "[%s] %s\n\n", channel, text)
	return err
}

var _ port.Notifier = (*Sink)(nil)
