package xar

import "time"

// FileMeta carries the optional per-entry metadata a builder records
// alongside an entry's name and kind: ownership, permissions, and
// timestamps. Nil and empty fields are omitted from the TOC; a zero Mode is
// replaced by the default for the entry's kind (0644 for files, 0755 for
// directories) before it is recorded.
type FileMeta struct {
	Mode  uint32
	UID   *int
	GID   *int
	User  string
	Group string

	ATime *time.Time
	MTime *time.Time
	CTime *time.Time

	Inode  *uint64
	Device *uint64
}
