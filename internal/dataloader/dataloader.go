package dataloader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/UkralStul/taskboard-comments/internal/storage"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders holds the request-scoped loaders.
type Loaders struct {
	UserByID *dataloader.Loader
}

// NewLoaders builds fresh loaders over store. Each batch issues one store query.
// opts are applied after the default 1ms batch wait.
func NewLoaders(store storage.Storage, opts ...dataloader.Option) *Loaders {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		userIDs := make([]string, len(keys))
		for i, key := range keys {
			userIDs[i] = key.String()
		}

		users, err := store.GetUsersByIDs(ctx, userIDs)
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Results must line up with keys.
		for i, id := range userIDs {
			if u, ok := users[id]; ok {
				results[i] = &dataloader.Result{Data: u}
			} else {
				results[i] = &dataloader.Result{Data: (*domain.User)(nil)}
			}
		}
		return results
	}

	opts = append([]dataloader.Option{dataloader.WithWait(time.Millisecond)}, opts...)
	return &Loaders{
		UserByID: dataloader.NewBatchedLoader(batchFn, opts...),
	}
}

// Middleware puts fresh loaders into every request context, so caching never
// outlives a request.
func Middleware(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), key, NewLoaders(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// For returns the loaders stored in ctx, or nil.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(key).(*Loaders)
	return l
}

// AttachUsernames fills Username on every comment, replies included. Unknown
// authors keep an empty username.
func (l *Loaders) AttachUsernames(ctx context.Context, comments []*domain.Comment) error {
	type pending struct {
		comment *domain.Comment
		thunk   dataloader.Thunk
	}

	var queue []pending
	var walk func([]*domain.Comment)
	walk = func(level []*domain.Comment) {
		for _, c := range level {
			queue = append(queue, pending{c, l.UserByID.Load(ctx, dataloader.StringKey(c.UserID))})
			walk(c.Replies)
		}
	}
	walk(comments)

	for _, p := range queue {
		data, err := p.thunk()
		if err != nil {
			return fmt.Errorf("load author %s: %w", p.comment.UserID, err)
		}
		if u, ok := data.(*domain.User); ok && u != nil {
			p.comment.Username = u.Username
		}
	}
	return nil
}
