// Package cache indexes committed install layers.
//
// The install layer (dependency manifest staged, dependencies installed,
// setup commands run) is the expensive part of a build and changes only
// when its inputs change. A [Key] chains those inputs: the base image
// manifest digest, the target platform, each recipe step up to the
// checkpoint, and the content digest of every copied source. The [Index]
// maps keys to the committed snapshot and the layer blob diffed from it,
// stored in a bbolt database under the cache directory.
//
// The index only records names and descriptors. The snapshot and blob
// themselves live in containerd and are protected from garbage collection by
// labels set when they are created. An entry whose snapshot has since been
// removed is treated as a miss by the caller and overwritten.
package cache
