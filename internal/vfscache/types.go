// Package vfscache implements the virtual filesystem cache core: a
// directory pool, a file pool, and the disk-backed write-through cache that
// backs cached file handles.
package vfscache

import "time"

// ItemId is an opaque remote identifier, globally unique within a drive.
type ItemId string

// Tag is an opaque remote version token (a "cTag") used for conditional
// revalidation: equal tags imply unchanged content.
type Tag string

// InodeAttr is the subset of remote metadata the cache needs to hand back to
// the filesystem layer for a directory child or a cached file.
type InodeAttr struct {
	Size        uint64
	ModTime     time.Time
	CreatedTime time.Time
	IsDir       bool
}

// DirEntry is one child of a directory snapshot.
type DirEntry struct {
	ItemId ItemId
	Name   string
	Attr   InodeAttr
}

// UpdatedFileAttr is returned by FilePool.Write and carried on UpdateEvent
// after a successful upload. CTag is empty until the server has confirmed
// the write.
type UpdatedFileAttr struct {
	ItemId ItemId
	Size   uint64
	Mtime  time.Time
	CTag   Tag
}

// UpdateEvent is published on FilePool's outbound event channel after a
// successful background upload.
type UpdateEvent struct {
	UpdateFile *UpdatedFileAttr
}

// SyncItem is one entry of a sync_items batch: the external change
// synchronizer's view of an item's current remote metadata.
type SyncItem struct {
	ItemId ItemId
	CTag   Tag
	IsDir  bool
}
