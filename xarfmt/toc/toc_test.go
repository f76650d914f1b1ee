package toc

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func sampleTOC() *TOC {
	t := &TOC{}
	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	root := &Entry{
		ID: t.NextID(), Name: "bin", Kind: KindDirectory, Mode: DefaultDirMode, MTime: &mtime,
		Children: []*Entry{
			{
				ID: t.NextID(), Name: "hello", Kind: KindFile, Mode: DefaultFileMode, MTime: &mtime,
				Data: &Data{
					Offset: 0, Length: 12, Size: 20,
					Encoding:  "application/x-gzip",
					Archived:  Checksum{Style: "sha256", Value: []byte{0x01, 0x02}},
					Extracted: Checksum{Style: "sha256", Value: []byte{0x03, 0x04}},
				},
			},
		},
	}
	t.Entries = []*Entry{root}
	return t
}

func TestTOCValidate(t *testing.T) {
	t.Parallel()

	Convey("a well-formed tree validates", t, func() {
		So(sampleTOC().Validate(), ShouldBeNil)
	})

	Convey("duplicate sibling names are rejected", t, func() {
		tc := &TOC{}
		tc.Entries = []*Entry{
			{ID: tc.NextID(), Name: "a", Kind: KindDirectory},
			{ID: tc.NextID(), Name: "a", Kind: KindDirectory},
		}
		So(tc.Validate(), ShouldNotBeNil)
	})

	Convey("case-colliding sibling names are rejected when CaseSafe", t, func() {
		tc := &TOC{CaseSafe: true}
		tc.Entries = []*Entry{
			{ID: tc.NextID(), Name: "Readme", Kind: KindDirectory},
			{ID: tc.NextID(), Name: "README", Kind: KindDirectory},
		}
		So(tc.Validate(), ShouldNotBeNil)
	})

	Convey("duplicate entry ids are rejected", t, func() {
		tc := &TOC{}
		tc.Entries = []*Entry{
			{ID: 1, Name: "a", Kind: KindDirectory},
			{ID: 1, Name: "b", Kind: KindDirectory},
		}
		So(tc.Validate(), ShouldNotBeNil)
	})

	Convey("hardlinks resolve against the whole tree", t, func() {
		tc := &TOC{}
		orig := &Entry{ID: tc.NextID(), Name: "orig", Kind: KindFile, Data: &Data{}}
		link := &Entry{ID: tc.NextID(), Name: "link", Kind: KindHardlink, LinkTargetID: orig.ID}
		tc.Entries = []*Entry{orig, link}
		So(tc.Validate(), ShouldBeNil)
	})

	Convey("a hardlink targeting an unknown id is rejected", t, func() {
		tc := &TOC{}
		link := &Entry{ID: tc.NextID(), Name: "link", Kind: KindHardlink, LinkTargetID: 999}
		tc.Entries = []*Entry{link}
		So(tc.Validate(), ShouldNotBeNil)
	})

	Convey("a hardlink targeting another hardlink is rejected", t, func() {
		tc := &TOC{}
		orig := &Entry{ID: tc.NextID(), Name: "orig", Kind: KindFile, Data: &Data{}}
		mid := &Entry{ID: tc.NextID(), Name: "mid", Kind: KindHardlink, LinkTargetID: orig.ID}
		link := &Entry{ID: tc.NextID(), Name: "link", Kind: KindHardlink, LinkTargetID: mid.ID}
		tc.Entries = []*Entry{orig, mid, link}
		So(tc.Validate(), ShouldNotBeNil)
	})

	Convey("bad path characters are rejected", t, func() {
		tc := &TOC{}
		tc.Entries = []*Entry{{ID: tc.NextID(), Name: "a/b", Kind: KindDirectory}}
		So(tc.Validate(), ShouldNotBeNil)
	})

	Convey("a file with no data descriptor is rejected", t, func() {
		tc := &TOC{}
		tc.Entries = []*Entry{{ID: tc.NextID(), Name: "f", Kind: KindFile}}
		So(tc.Validate(), ShouldNotBeNil)
	})
}

func TestLoopItems(t *testing.T) {
	t.Parallel()

	Convey("LoopItems visits every entry with its full path", t, func() {
		tc := sampleTOC()
		var got [][]string
		err := tc.LoopItems(func(path []string, ent *Entry) error {
			cp := append([]string(nil), path...)
			got = append(got, cp)
			return nil
		})
		So(err, ShouldBeNil)
		So(got, ShouldResemble, [][]string{{"bin"}, {"bin", "hello"}})
	})

	Convey("returning an error from cb stops the walk and is forwarded", t, func() {
		tc := sampleTOC()
		boom := errAny("boom")
		visited := 0
		err := tc.LoopItems(func(path []string, ent *Entry) error {
			visited++
			return boom
		})
		So(err, ShouldEqual, boom)
		So(visited, ShouldEqual, 1)
	})
}

type errAny string

func (e errAny) Error() string { return string(e) }

func TestMarshalUnmarshal(t *testing.T) {
	t.Parallel()

	Convey("round-tripping through XML preserves the tree", t, func() {
		tc := sampleTOC()
		data, err := Marshal(tc)
		So(err, ShouldBeNil)
		So(string(data), ShouldContainSubstring, "<xar>")
		So(string(data), ShouldContainSubstring, "archived-checksum")

		got, err := Unmarshal(data)
		So(err, ShouldBeNil)
		So(got.Validate(), ShouldBeNil)
		So(len(got.Entries), ShouldEqual, 1)
		So(got.Entries[0].Name, ShouldEqual, "bin")
		So(got.Entries[0].Children[0].Data.Archived.Value, ShouldResemble, []byte{0x01, 0x02})
	})

	Convey("a missing mode defaults per kind", t, func() {
		data := []byte(`<xar><toc><file id="1"><name>f</name><type>file</type>` +
			`<data><offset>0</offset><length>1</length><size>1</size>` +
			`<encoding style="application/octet-stream"/>` +
			`<archived-checksum style="sha256">01</archived-checksum>` +
			`<extracted-checksum style="sha256">01</extracted-checksum></data></file></toc></xar>`)
		got, err := Unmarshal(data)
		So(err, ShouldBeNil)
		So(got.Entries[0].Mode, ShouldEqual, DefaultFileMode)
	})

	Convey("hardlinks and symlinks round-trip", t, func() {
		tc := &TOC{}
		orig := &Entry{ID: tc.NextID(), Name: "orig", Kind: KindFile, Mode: DefaultFileMode,
			Data: &Data{Archived: Checksum{Style: "sha256"}, Extracted: Checksum{Style: "sha256"}}}
		orig2 := &Entry{ID: tc.NextID(), Name: "link", Kind: KindHardlink, LinkTargetID: orig.ID}
		sym := &Entry{ID: tc.NextID(), Name: "sym", Kind: KindSymlink, SymlinkTarget: "../orig"}
		tc.Entries = []*Entry{orig, orig2, sym}

		data, err := Marshal(tc)
		So(err, ShouldBeNil)
		got, err := Unmarshal(data)
		So(err, ShouldBeNil)
		So(got.Entries[1].LinkTargetID, ShouldEqual, orig.ID)
		So(got.Entries[2].SymlinkTarget, ShouldEqual, "../orig")
	})
}
