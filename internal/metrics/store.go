package metrics

import (
	"context"

	"github.com/Smeet2005/PHISHSCAN/internal/store"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

type wrappedStore struct {
	store.Store
	c *Collector
}

// WrapStore counts snapshot writes going through inner.
func WrapStore(inner store.Store, c *Collector) store.Store {
	if inner == nil {
		return nil
	}
	if c == nil {
		c = New()
	}
	return &wrappedStore{Store: inner, c: c}
}

func (w *wrappedStore) PutSnapshot(ctx context.Context, snap types.Snapshot) error {
	if err := w.Store.PutSnapshot(ctx, snap); err != nil {
		return err
	}
	w.c.IncSnapshotWrite()
	return nil
}
