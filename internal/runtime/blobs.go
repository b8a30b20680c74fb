package runtime

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/containerd/containerd/v2/core/content"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// JSON access to a containerd content store.
type blobStore struct {
	content.Store
}

// Reads the blob at desc and decodes it into v.
func (s blobStore) readJSON(ctx context.Context, desc ocispec.Descriptor, v any) error {
	data, err := content.ReadBlob(ctx, s.Store, desc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Encodes v and stores it with the given labels. The write reference is the
// digest, so concurrent builds writing the same blob share one ingest.
func (s blobStore) writeJSON(ctx context.Context, mediaType string, v any, labels map[string]string) (ocispec.Descriptor, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	desc := ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digest.FromBytes(data),
		Size:      int64(len(data)),
	}

	var opts []content.Opt
	if len(labels) > 0 {
		opts = append(opts, content.WithLabels(labels))
	}
	if err := content.WriteBlob(ctx, s.Store, "pybox-"+desc.Digest.Encoded(), bytes.NewReader(data), desc, opts...); err != nil {
		return ocispec.Descriptor{}, err
	}
	return desc, nil
}
