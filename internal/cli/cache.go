package cli

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/cruciblehq/pybox/internal/cache"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/paths"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Represents the 'pybox cache' command group.
type CacheCmd struct {
	List   CacheListCmd   `cmd:"" name:"ls" help:"List cached install layers."`
	Remove CacheRemoveCmd `cmd:"" name:"rm" help:"Remove cached install layers."`
}

// Represents the 'pybox cache ls' command.
type CacheListCmd struct{}

// Executes the cache list command.
func (c *CacheListCmd) Run(ctx context.Context) error {
	index, err := cache.Open(paths.CacheDB())
	if err != nil {
		return err
	}
	defer index.Close()

	entries, err := index.List()
	if err != nil {
		return err
	}

	for _, key := range slices.Sorted(maps.Keys(entries)) {
		e := entries[key]
		fmt.Printf("%s  %s  %8d  %s\n", key, e.Created.Format("2006-01-02 15:04:05"), e.Layer.Size, e.CreatedBy)
	}
	return nil
}

// Represents the 'pybox cache rm' command.
type CacheRemoveCmd struct {
	ContainerdFlags `embed:""`
	Keys            []string `arg:"" optional:"" help:"Cache keys to remove."`
	All             bool     `help:"Remove every cached layer."`
}

// Executes the cache remove command.
//
// Each entry is dropped from the index and its snapshot and blob are
// released in containerd.
func (c *CacheRemoveCmd) Run(ctx context.Context) error {
	if len(c.Keys) == 0 && !c.All {
		return fault.Wrapf(ErrUsage, "give cache keys or --all")
	}

	index, err := cache.Open(paths.CacheDB())
	if err != nil {
		return err
	}
	defer index.Close()

	entries, err := index.List()
	if err != nil {
		return err
	}

	keys := c.Keys
	if c.All {
		keys = slices.Sorted(maps.Keys(entries))
	}

	rt, err := runtime.New(runtime.Options{
		Address:     c.ContainerdAddress,
		Namespace:   c.Namespace,
		Snapshotter: c.Snapshotter,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	for _, s := range keys {
		key, err := cache.ParseKey(s)
		if err != nil {
			return err
		}

		entry, ok := entries[key.String()]
		if !ok {
			slog.Warn("no cached layer for key", "key", s)
			continue
		}

		err = rt.RemoveLayer(ctx, &runtime.Layer{Snapshot: entry.Snapshot, Desc: entry.Layer})
		if err != nil {
			return err
		}
		if err := index.Delete(key); err != nil {
			return err
		}

		slog.Info("cached layer removed", "key", key.String(), "snapshot", entry.Snapshot)
	}
	return nil
}
