package toc

import "time"

// Kind identifies what an Entry represents.
type Kind string

// The entry kinds a XAR TOC can describe.
const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
	KindHardlink  Kind = "hardlink"
	KindSymlink   Kind = "symlink"
)

// DefaultFileMode and DefaultDirMode are applied to entries whose TOC XML
// omits a <mode>.
const (
	DefaultFileMode uint32 = 0o644
	DefaultDirMode  uint32 = 0o755
)

// TOC is the in-memory model of a table of contents: an ordered forest of
// top-level Entries, plus an optional signature descriptor.
type TOC struct {
	Entries []*Entry

	// Signature describes an RSA-style signature ("signature" element).
	Signature *Signature
	// XSignature describes a CMS-style signature ("x-signature" element).
	XSignature *Signature

	// CaseSafe additionally rejects sibling names that only differ by case,
	// for targets (like macOS's default case-insensitive filesystem) where
	// that would collide.
	CaseSafe bool

	nextID uint64
}

// Entry describes one filesystem object: a file, directory, hardlink, or
// symlink.
type Entry struct {
	ID   uint64
	Name string
	Kind Kind

	Mode uint32
	UID  *int
	GID  *int
	User  string
	Group string

	ATime *time.Time
	MTime *time.Time
	CTime *time.Time

	Inode  *uint64
	Device *uint64

	// LinkOriginal is true when this entry is the hardlink group's
	// original; a hardlink entry otherwise stores the id of its original
	// in LinkTargetID. Valid only when Kind == KindHardlink.
	LinkOriginal bool
	// LinkTargetID is the id of the original, valid when Kind ==
	// KindHardlink and !LinkOriginal.
	LinkTargetID uint64

	// SymlinkTarget is the link target path, valid when Kind == KindSymlink.
	SymlinkTarget string

	// Data describes the entry's heap bytes. Valid (non-nil) only when
	// Kind == KindFile.
	Data *Data

	// Children holds nested entries. Valid (non-empty only possible) when
	// Kind == KindDirectory.
	Children []*Entry
}

// Data is a file entry's data descriptor.
type Data struct {
	Offset uint64
	Length uint64
	Size   uint64
	// Encoding is the MIME-like compression name, e.g. "application/x-gzip".
	Encoding string

	Archived  Checksum
	Extracted Checksum
}

// Checksum is a single archived- or extracted-checksum element.
type Checksum struct {
	Style string // "sha1", "md5", "sha256", "sha512"
	Value []byte // raw digest bytes
}

// Signature describes the TOC's embedded signature block.
type Signature struct {
	// Style is "RSA" or "CMS".
	Style string
	// Offset is relative to the start of the signature region.
	Offset uint64
	// Size is the number of bytes reserved for the signature.
	Size uint64
	// Certificates holds the DER-encoded certificate chain, leaf first.
	Certificates [][]byte
}

// NextID allocates and returns the next TOC-wide entry id. Builders should
// call this once per appended entry so ids stay dense and unique.
func (t *TOC) NextID() uint64 {
	t.nextID++
	return t.nextID
}

// LoopItems performs a non-recursive, depth-first walk of the TOC, invoking
// cb once per Entry with the path of names leading to it (root-relative,
// including the entry's own name).
//
// LoopItems itself never returns an error; it forwards whatever cb returns,
// stopping the walk immediately when that happens. cb must not retain path
// without copying it.
func (t *TOC) LoopItems(cb func(path []string, ent *Entry) error) error {
	type frame struct {
		entries []*Entry
		idx     int
	}

	path := []string{}
	stack := []frame{{entries: t.Entries, idx: 0}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.idx >= len(top.entries) {
			stack = stack[:len(stack)-1]
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
			continue
		}

		e := top.entries[top.idx]
		top.idx++

		path = append(path[:len(stack)-1], e.Name)
		if err := cb(path, e); err != nil {
			return err
		}

		if e.Kind == KindDirectory && len(e.Children) > 0 {
			stack = append(stack, frame{entries: e.Children, idx: 0})
		}
	}

	return nil
}
