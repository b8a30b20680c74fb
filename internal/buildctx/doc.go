// Package buildctx reads the build context of a packaged application.
//
// A build context is a host directory, accessed through an afero filesystem
// so tests can run against memory. Paths matched by the context's
// .dockerignore are left out of every archive and digest, the same way the
// Docker engine leaves them out of the context it receives.
//
// Archives are plain tar streams. [Context.Tar] produces one in a goroutine
// behind an io.Pipe so copies into a container never buffer the tree.
// [Context.Digest] hashes a normalized archive (no timestamps or ownership)
// so that content, not checkout time, decides cache hits.
package buildctx
