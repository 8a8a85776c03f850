// Package inodeattr implements the InodePool collaborator DirPool pushes
// freshly observed child attributes into: a narrow, bbolt-backed attribute
// store independent of the cache core itself. It holds attribute storage
// only -- no inode-number allocation and no parent/child bookkeeping, which
// belong to the filesystem-adapter layer above.
package inodeattr

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/auriora/onemount-vfscache/internal/vfscache"
	"github.com/auriora/onemount-vfscache/pkg/errors"
	"github.com/auriora/onemount-vfscache/pkg/logging"
	bolt "go.etcd.io/bbolt"
)

var bucketAttrs = []byte("inode_attrs")

// Record is one entry of the attribute cache: a child's metadata as observed
// by the most recent directory fetch, plus when it was observed.
type Record struct {
	Attr      vfscache.InodeAttr
	FetchedAt time.Time
}

// wireRecord is Record's JSON-on-disk shape.
type wireRecord struct {
	Size        uint64    `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	CreatedTime time.Time `json:"created_time"`
	IsDir       bool      `json:"is_dir"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Pool is the InodePool collaborator: an in-memory map fronting a bolt
// bucket, so a restart can still answer Get for an item DirPool hasn't
// re-fetched yet. Unlike the directory/file caches it carries, this pool's
// own state is not expected to be invalidated by sync_items -- it is
// superseded by the next Touch for that item.
type Pool struct {
	db  *bolt.DB
	mem sync.Map // vfscache.ItemId -> Record
}

// Open opens (creating if necessary) a bolt database at path and returns a
// Pool backed by it.
func Open(path string) (*Pool, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open inode attribute database")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAttrs)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create inode attribute bucket")
	}
	return &Pool{db: db}, nil
}

// Close closes the underlying database.
func (p *Pool) Close() error {
	return p.db.Close()
}

// Touch implements vfscache.InodePool: it refreshes both the in-memory and
// on-disk record for itemID. A write-through failure is logged but not
// returned -- a DirPool fetch should not fail just because the attribute
// store's disk write did.
func (p *Pool) Touch(itemID vfscache.ItemId, attr vfscache.InodeAttr, fetchedAt time.Time) {
	rec := Record{Attr: attr, FetchedAt: fetchedAt}
	p.mem.Store(itemID, rec)

	wire := wireRecord{
		Size:        attr.Size,
		ModTime:     attr.ModTime,
		CreatedTime: attr.CreatedTime,
		IsDir:       attr.IsDir,
		FetchedAt:   fetchedAt,
	}
	data, err := json.Marshal(wire)
	if err != nil {
		logging.Error().Err(err).Str("itemId", string(itemID)).Msg("failed to marshal inode attribute record")
		return
	}
	if err := p.db.Batch(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAttrs).Put([]byte(itemID), data)
	}); err != nil {
		logging.Error().Err(err).Str("itemId", string(itemID)).Msg("failed to persist inode attribute record")
	}
}

// Get returns the most recently touched attribute record for itemID,
// falling back to the on-disk bucket (and promoting it back into memory) if
// the process has restarted since.
func (p *Pool) Get(itemID vfscache.ItemId) (Record, bool) {
	if v, ok := p.mem.Load(itemID); ok {
		return v.(Record), true
	}

	var wire wireRecord
	found := false
	if err := p.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAttrs).Get([]byte(itemID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &wire)
	}); err != nil {
		logging.Error().Err(err).Str("itemId", string(itemID)).Msg("failed to read inode attribute record")
		return Record{}, false
	}
	if !found {
		return Record{}, false
	}

	rec := Record{
		Attr: vfscache.InodeAttr{
			Size:        wire.Size,
			ModTime:     wire.ModTime,
			CreatedTime: wire.CreatedTime,
			IsDir:       wire.IsDir,
		},
		FetchedAt: wire.FetchedAt,
	}
	p.mem.Store(itemID, rec)
	return rec, true
}
