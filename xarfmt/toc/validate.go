package toc

import (
	"regexp"
	"strings"

	"github.com/luci/luci-go/common/data/stringset"
	"github.com/luci/luci-go/common/errors"
)

// badChars matches path-component characters XAR entry names may not
// contain: the path separator, NUL/control characters, and the characters
// Windows forbids in file names (so archives stay portable).
var badChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

func checkPathPiece(piece string) error {
	if piece == "" {
		return errors.New("empty path component")
	}
	if piece == "." || piece == ".." {
		return errors.Reason("path component %(piece)q is not allowed").D("piece", piece).Err()
	}
	if idxs := badChars.FindStringIndex(piece); len(idxs) > 0 {
		return errors.Reason("bad char %(char)q in path component %(piece)q").
			D("char", piece[idxs[0]:idxs[1]]).D("piece", piece).Err()
	}
	return nil
}

// Validate checks the TOC's structural invariants: unique ids, no duplicate
// (or, if CaseSafe, case-colliding) sibling names, well-formed path
// components, and hardlinks that resolve to a real, non-hardlink original
// without forming a cycle.
func (t *TOC) Validate() error {
	seenIDs := map[uint64]*Entry{}
	if err := validateSiblings(t.Entries, t.CaseSafe, seenIDs); err != nil {
		return err
	}
	for _, e := range t.Entries {
		if err := validateEntry(e, t.CaseSafe, seenIDs); err != nil {
			return errors.Annotate(err).Reason("in entry %(name)q").D("name", e.Name).Err()
		}
	}
	return validateHardlinks(t.Entries, seenIDs)
}

func validateSiblings(entries []*Entry, caseSafe bool, seenIDs map[uint64]*Entry) error {
	names := stringset.New(len(entries))
	var lowerNames stringset.Set
	if caseSafe {
		lowerNames = stringset.New(len(entries))
	}
	for _, e := range entries {
		if e.ID == 0 {
			return errors.Reason("entry %(name)q has no id").D("name", e.Name).Err()
		}
		if prior, ok := seenIDs[e.ID]; ok {
			return errors.Reason("duplicate entry id %(id)d (%(name)q and %(prior)q)").
				D("id", e.ID).D("name", e.Name).D("prior", prior.Name).Err()
		}
		seenIDs[e.ID] = e

		if !names.Add(e.Name) {
			return errors.Reason("duplicate entry %(name)q").D("name", e.Name).Err()
		}
		if caseSafe && !lowerNames.Add(strings.ToLower(e.Name)) {
			return errors.Reason("case-colliding entry %(name)q").D("name", e.Name).Err()
		}
	}
	return nil
}

func validateEntry(e *Entry, caseSafe bool, seenIDs map[uint64]*Entry) error {
	if err := checkPathPiece(e.Name); err != nil {
		return err
	}

	switch e.Kind {
	case KindFile:
		return validateFile(e)
	case KindDirectory:
		if err := validateSiblings(e.Children, caseSafe, seenIDs); err != nil {
			return err
		}
		for _, c := range e.Children {
			if err := validateEntry(c, caseSafe, seenIDs); err != nil {
				return errors.Annotate(err).Reason("in entry %(name)q").D("name", c.Name).Err()
			}
		}
		return nil
	case KindSymlink:
		if e.SymlinkTarget == "" {
			return errors.New("empty symlink target")
		}
		return nil
	case KindHardlink:
		return nil // resolved against seenIDs in validateHardlinks, once the whole tree is known
	}
	return errors.Reason("unknown entry kind %(kind)q").D("kind", e.Kind).Err()
}

func validateFile(e *Entry) error {
	if e.Data == nil {
		return errors.New("file entry has no data descriptor")
	}
	if e.Data.Offset > e.Data.Offset+e.Data.Length {
		return errors.New("data offset+length overflows")
	}
	return nil
}

// validateHardlinks walks the whole tree a second time (ids are only fully
// known once validateSiblings has run over every level) to resolve every
// hardlink's LinkTargetID to a real, non-hardlink entry.
func validateHardlinks(entries []*Entry, seenIDs map[uint64]*Entry) error {
	var walk func(es []*Entry) error
	walk = func(es []*Entry) error {
		for _, e := range es {
			if e.Kind == KindHardlink && !e.LinkOriginal {
				target, ok := seenIDs[e.LinkTargetID]
				if !ok {
					return errors.Reason("hardlink %(name)q targets unknown id %(id)d").
						D("name", e.Name).D("id", e.LinkTargetID).Err()
				}
				if target.Kind == KindHardlink {
					return errors.Reason("hardlink %(name)q targets another hardlink %(target)q").
						D("name", e.Name).D("target", target.Name).Err()
				}
			}
			if e.Kind == KindDirectory {
				if err := walk(e.Children); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(entries)
}
