package domain

import (
	"os"
	"path/filepath"
)

// Read flags describe how a block read was served. FlagCached marks reads
// answered from the in-memory cache without touching a device.
const (
	FlagCached   uint32 = 1 << 0
	FlagPrefetch uint32 = 1 << 1
	FlagWait     uint32 = 1 << 2
)

// ReadEvent carries the metadata recorded about one block read issued
// elsewhere in the system. It names the block, never its contents.
type ReadEvent struct {
	Objset uint64
	Object uint64
	Level  int64
	Blkid  int64
	Origin string
	Flags  uint32
}

// Cached reports whether the read was served from cache.
func (e ReadEvent) Cached() bool {
	return e.Flags&FlagCached != 0
}

// Task identifies the process that issued a read.
type Task struct {
	PID  int
	Comm string
}

var selfComm = filepath.Base(os.Args[0])

// CurrentTask returns the identity of the calling process.
func CurrentTask() Task {
	return Task{PID: os.Getpid(), Comm: selfComm}
}
