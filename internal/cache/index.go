package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	bolt "go.etcd.io/bbolt"

	"github.com/cruciblehq/pybox/internal/fault"
)

var layersBucket = []byte("layers")

// Cached layer.
type Entry struct {
	Snapshot  string             `json:"snapshot"`  // Committed snapshot name.
	Layer     ocispec.Descriptor `json:"layer"`     // Compressed layer blob in the content store.
	DiffID    digest.Digest      `json:"diffID"`    // Digest of the uncompressed layer.
	CreatedBy string             `json:"createdBy"` // History entry of the layer.
	Created   time.Time          `json:"created"`   // Time the layer was committed.
}

// Persistent map from cache keys to layers.
type Index struct {
	db *bolt.DB
}

// Opens the index at path, creating the file and its directory if needed.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fault.Wrap(ErrCache, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fault.Wrap(ErrCache, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(layersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fault.Wrap(ErrCache, err)
	}

	return &Index{db: db}, nil
}

// Closes the underlying database.
func (i *Index) Close() error {
	return i.db.Close()
}

// Returns the entry for key, or nil if there is none.
func (i *Index) Get(key Key) (*Entry, error) {
	var entry *Entry

	err := i.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(layersBucket).Get([]byte(key.String()))
		if v == nil {
			return nil
		}

		entry = &Entry{}
		if err := json.Unmarshal(v, entry); err != nil {
			return fault.Wrap(ErrEntry, err)
		}
		return nil
	})
	if err != nil {
		return nil, fault.Wrap(ErrCache, err)
	}

	return entry, nil
}

// Stores the entry for key, replacing any existing one.
func (i *Index) Put(key Key, entry *Entry) error {
	v, err := json.Marshal(entry)
	if err != nil {
		return fault.Wrap(ErrEntry, err)
	}

	err = i.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(layersBucket).Put([]byte(key.String()), v)
	})
	if err != nil {
		return fault.Wrap(ErrCache, err)
	}
	return nil
}

// Removes the entry for key. Removing a missing key is not an error.
func (i *Index) Delete(key Key) error {
	err := i.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(layersBucket).Delete([]byte(key.String()))
	})
	if err != nil {
		return fault.Wrap(ErrCache, err)
	}
	return nil
}

// Returns every entry, keyed by cache key string.
func (i *Index) List() (map[string]*Entry, error) {
	entries := make(map[string]*Entry)

	err := i.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(layersBucket).ForEach(func(k, v []byte) error {
			entry := &Entry{}
			if err := json.Unmarshal(v, entry); err != nil {
				return fault.Wrapf(ErrEntry, "%s: %v", k, err)
			}
			entries[string(k)] = entry
			return nil
		})
	})
	if err != nil {
		return nil, fault.Wrap(ErrCache, err)
	}

	return entries, nil
}
