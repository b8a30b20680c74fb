package build

import (
	"github.com/cruciblehq/pybox/internal/buildctx"
	"github.com/cruciblehq/pybox/internal/cache"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/manifest"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Computes the cache key of the layer produced by steps.
//
// The key covers the base image and platform, each step's description, and
// the content of every copy source. Files the steps do not copy do not
// affect it.
func layerKey(bctx *buildctx.Context, base *runtime.Base, steps []manifest.Step) (cache.Key, error) {
	key := cache.NewKey(base.Digest, base.Platform)

	for _, step := range steps {
		key = key.Step(step.String())
		if step.Copy == "" {
			continue
		}

		src, _, err := parseCopy(step.Copy, "/")
		if err != nil {
			return cache.Key{}, fault.Wrap(ErrCopy, err)
		}

		dgst, err := bctx.Digest(src)
		if err != nil {
			return cache.Key{}, fault.Wrap(ErrCopy, err)
		}
		key = key.Source(src, dgst)
	}

	return key, nil
}
