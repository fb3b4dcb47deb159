package collections

import (
	"sync"

	"github.com/rs/zerolog"

	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/wire"
)

// View keeps the decoded result of one live query. Changing the scope tears the old
// query down before the new one opens; results of an old scope are never delivered.
type View[T any] struct {
	store    Store
	onChange func([]T)
	onErr    func(error)
	logger   zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	cancel func()
	items  []T
}

// NewView builds an unscoped View. onChange and onErr run with the view locked and
// must not call back into it.
func NewView[T any](store Store, onChange func([]T), onErr func(error)) *View[T] {
	return &View[T]{
		store:    store,
		onChange: onChange,
		onErr:    onErr,
		logger:   logx.Component("view"),
	}
}

// SetScope replaces the watched query. nil only tears the current one down.
func (v *View[T]) SetScope(q *wire.Query) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	prev := v.cancel
	v.cancel = nil
	v.items = nil
	v.mu.Unlock()

	if prev != nil {
		prev()
	}
	if q == nil {
		return
	}

	cancel := v.store.Watch(*q,
		func(docs []wire.Document) {
			items := decodeAll[T](docs, v.logger)

			v.mu.Lock()
			defer v.mu.Unlock()
			if gen != v.gen {
				return
			}
			v.items = items
			if v.onChange != nil {
				v.onChange(items)
			}
		},
		func(err error) {
			v.mu.Lock()
			defer v.mu.Unlock()
			if gen != v.gen {
				return
			}
			v.gen++
			v.cancel = nil
			v.items = nil
			v.logger.Warn().Err(err).Str("collection", q.Collection).Msg("live query failed")
			if v.onErr != nil {
				v.onErr(err)
			}
		},
	)

	v.mu.Lock()
	if gen == v.gen {
		v.cancel = cancel
		cancel = nil
	}
	v.mu.Unlock()

	// Scope changed or the watch failed while it was opening.
	if cancel != nil {
		cancel()
	}
}

// Items returns the latest result.
func (v *View[T]) Items() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]T, len(v.items))
	copy(out, v.items)
	return out
}

// Close tears the current query down.
func (v *View[T]) Close() {
	v.SetScope(nil)
}
