package composite

import (
	"context"
	"errors"

	"quotebot/internal/application/port"
	"quotebot/internal/domain/model"
)

// Repo 依次写入多个存储，单个存储失败不影响其他存储
type Repo struct {
	repos []port.Repository
}

func New(repos ...port.Repository) *Repo {
	out := make([]port.Repository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) UpsertLatestQuote(ctx context.Context, q *model.Quote) error {
	var errs []error
	for _, repo := range r.repos {
		if err := repo.UpsertLatestQuote(ctx, q); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ port.Repository = (*Repo)(nil)
