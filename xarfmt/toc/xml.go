package toc

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"strconv"
	"time"

	"github.com/luci/luci-go/common/errors"
)

// timeLayout is the RFC 3339 UTC wire format the TOC's timestamps use (no
// fractional seconds), e.g. "2009-06-17T20:13:59Z".
const timeLayout = "2006-01-02T15:04:05Z"

type xmlRoot struct {
	XMLName xml.Name `xml:"xar"`
	TOC     xmlTOC   `xml:"toc"`
}

type xmlTOC struct {
	Files      []*xmlFile    `xml:"file"`
	Signature  *xmlSignature `xml:"signature,omitempty"`
	XSignature *xmlSignature `xml:"x-signature,omitempty"`
}

type xmlFile struct {
	ID    uint64 `xml:"id,attr"`
	Name  string `xml:"name"`
	Type  string `xml:"type"`
	Mode  string `xml:"mode,omitempty"`
	UID   *int   `xml:"uid,omitempty"`
	GID   *int   `xml:"gid,omitempty"`
	User  string `xml:"user,omitempty"`
	Group string `xml:"group,omitempty"`

	ATime *string `xml:"atime,omitempty"`
	MTime *string `xml:"mtime,omitempty"`
	CTime *string `xml:"ctime,omitempty"`

	Inode  *uint64 `xml:"inode,omitempty"`
	Device *uint64 `xml:"deviceno,omitempty"`

	Link *xmlLink `xml:"link,omitempty"`
	Data *xmlData `xml:"data,omitempty"`

	Files []*xmlFile `xml:"file,omitempty"`
}

// xmlLink carries a hardlink's target: Style=="original" marks this entry as
// the hardlink group's original; otherwise Value holds the original's id.
type xmlLink struct {
	Style string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

type xmlData struct {
	Offset    uint64      `xml:"offset"`
	Length    uint64      `xml:"length"`
	Size      uint64      `xml:"size"`
	Encoding  xmlEncoding `xml:"encoding"`
	Archived  xmlChecksum `xml:"archived-checksum"`
	Extracted xmlChecksum `xml:"extracted-checksum"`
}

type xmlEncoding struct {
	Style string `xml:"style,attr"`
}

type xmlChecksum struct {
	Style string `xml:"style,attr"`
	Value string `xml:",chardata"`
}

type xmlSignature struct {
	Style  string `xml:"style,attr"`
	Offset uint64 `xml:"offset"`
	Size   uint64 `xml:"size"`

	KeyInfo struct {
		X509Data struct {
			X509Certificate []string `xml:"X509Certificate"`
		} `xml:"X509Data"`
	} `xml:"KeyInfo"`
}

// Marshal serializes t as XAR TOC XML: <xar><toc>...</toc></xar>.
func Marshal(t *TOC) ([]byte, error) {
	root := xmlRoot{TOC: xmlTOC{
		Signature:  toXMLSignature(t.Signature),
		XSignature: toXMLSignature(t.XSignature),
	}}
	for _, e := range t.Entries {
		root.TOC.Files = append(root.TOC.Files, toXMLFile(e))
	}
	return xml.Marshal(root)
}

func toXMLFile(e *Entry) *xmlFile {
	xf := &xmlFile{
		ID:    e.ID,
		Name:  e.Name,
		Type:  string(e.Kind),
		Mode:  "0" + strconv.FormatUint(uint64(e.Mode), 8),
		UID:   e.UID,
		GID:   e.GID,
		User:  e.User,
		Group: e.Group,
		ATime: formatTime(e.ATime),
		MTime: formatTime(e.MTime),
		CTime: formatTime(e.CTime),
		Inode: e.Inode,
		Device: e.Device,
	}

	switch e.Kind {
	case KindHardlink:
		if e.LinkOriginal {
			xf.Link = &xmlLink{Style: "original"}
		} else {
			xf.Link = &xmlLink{Value: strconv.FormatUint(e.LinkTargetID, 10)}
		}
	case KindSymlink:
		xf.Link = &xmlLink{Value: e.SymlinkTarget}
	case KindFile:
		if e.Data != nil {
			xf.Data = &xmlData{
				Offset:    e.Data.Offset,
				Length:    e.Data.Length,
				Size:      e.Data.Size,
				Encoding:  xmlEncoding{Style: e.Data.Encoding},
				Archived:  xmlChecksum{Style: e.Data.Archived.Style, Value: hex.EncodeToString(e.Data.Archived.Value)},
				Extracted: xmlChecksum{Style: e.Data.Extracted.Style, Value: hex.EncodeToString(e.Data.Extracted.Value)},
			}
		}
	case KindDirectory:
		for _, c := range e.Children {
			xf.Files = append(xf.Files, toXMLFile(c))
		}
	}
	return xf
}

func toXMLSignature(s *Signature) *xmlSignature {
	if s == nil {
		return nil
	}
	xs := &xmlSignature{Style: s.Style, Offset: s.Offset, Size: s.Size}
	for _, cert := range s.Certificates {
		xs.KeyInfo.X509Data.X509Certificate = append(
			xs.KeyInfo.X509Data.X509Certificate, base64.StdEncoding.EncodeToString(cert))
	}
	return xs
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}

// Unmarshal parses XAR TOC XML into a TOC, tolerating unknown elements and
// defaulting missing optional fields (mode 0644 for files, 0755 for
// directories). It does not call Validate; callers should.
func Unmarshal(data []byte) (*TOC, error) {
	var root xmlRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, errors.Annotate(err).Reason("parsing TOC XML").Err()
	}

	t := &TOC{Signature: fromXMLSignature(root.TOC.Signature), XSignature: fromXMLSignature(root.TOC.XSignature)}
	var maxID uint64
	for _, xf := range root.TOC.Files {
		e, err := fromXMLFile(xf, &maxID)
		if err != nil {
			return nil, err
		}
		t.Entries = append(t.Entries, e)
	}
	t.nextID = maxID
	return t, nil
}

func fromXMLFile(xf *xmlFile, maxID *uint64) (*Entry, error) {
	if xf.ID > *maxID {
		*maxID = xf.ID
	}

	e := &Entry{
		ID:     xf.ID,
		Name:   xf.Name,
		Kind:   Kind(xf.Type),
		UID:    xf.UID,
		GID:    xf.GID,
		User:   xf.User,
		Group:  xf.Group,
		Inode:  xf.Inode,
		Device: xf.Device,
	}

	var err error
	if e.ATime, err = parseTime(xf.ATime); err != nil {
		return nil, err
	}
	if e.MTime, err = parseTime(xf.MTime); err != nil {
		return nil, err
	}
	if e.CTime, err = parseTime(xf.CTime); err != nil {
		return nil, err
	}

	if xf.Mode != "" {
		m, err := strconv.ParseUint(xf.Mode, 8, 32)
		if err != nil {
			return nil, errors.Annotate(err).Reason("parsing mode %(mode)q for %(name)q").
				D("mode", xf.Mode).D("name", xf.Name).Err()
		}
		e.Mode = uint32(m)
	} else if e.Kind == KindDirectory {
		e.Mode = DefaultDirMode
	} else {
		e.Mode = DefaultFileMode
	}

	switch e.Kind {
	case KindHardlink:
		if xf.Link == nil {
			return nil, errors.Reason("hardlink %(name)q missing <link>").D("name", xf.Name).Err()
		}
		if xf.Link.Style == "original" {
			e.LinkOriginal = true
		} else {
			id, err := strconv.ParseUint(xf.Link.Value, 10, 64)
			if err != nil {
				return nil, errors.Annotate(err).Reason("parsing hardlink target for %(name)q").
					D("name", xf.Name).Err()
			}
			e.LinkTargetID = id
		}
	case KindSymlink:
		if xf.Link == nil {
			return nil, errors.Reason("symlink %(name)q missing <link>").D("name", xf.Name).Err()
		}
		e.SymlinkTarget = xf.Link.Value
	case KindFile:
		if xf.Data != nil {
			d, err := fromXMLData(xf.Data, xf.Name)
			if err != nil {
				return nil, err
			}
			e.Data = d
		}
	case KindDirectory:
		for _, child := range xf.Files {
			c, err := fromXMLFile(child, maxID)
			if err != nil {
				return nil, err
			}
			e.Children = append(e.Children, c)
		}
	default:
		return nil, errors.Reason("unknown entry type %(type)q for %(name)q").
			D("type", xf.Type).D("name", xf.Name).Err()
	}

	return e, nil
}

func fromXMLData(xd *xmlData, name string) (*Data, error) {
	archived, err := hex.DecodeString(xd.Archived.Value)
	if err != nil {
		return nil, errors.Annotate(err).Reason("decoding archived-checksum for %(name)q").D("name", name).Err()
	}
	extracted, err := hex.DecodeString(xd.Extracted.Value)
	if err != nil {
		return nil, errors.Annotate(err).Reason("decoding extracted-checksum for %(name)q").D("name", name).Err()
	}
	return &Data{
		Offset:    xd.Offset,
		Length:    xd.Length,
		Size:      xd.Size,
		Encoding:  xd.Encoding.Style,
		Archived:  Checksum{Style: xd.Archived.Style, Value: archived},
		Extracted: Checksum{Style: xd.Extracted.Style, Value: extracted},
	}, nil
}

func fromXMLSignature(xs *xmlSignature) *Signature {
	if xs == nil {
		return nil
	}
	s := &Signature{Style: xs.Style, Offset: xs.Offset, Size: xs.Size}
	for _, b64 := range xs.KeyInfo.X509Data.X509Certificate {
		der, err := base64.StdEncoding.DecodeString(b64)
		if err == nil {
			s.Certificates = append(s.Certificates, der)
		}
	}
	return s
}

func parseTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, *s)
	if err != nil {
		// tolerate fractional seconds from non-conforming writers
		if t2, err2 := time.Parse(time.RFC3339Nano, *s); err2 == nil {
			t = t2.UTC()
			return &t, nil
		}
		return nil, errors.Annotate(err).Reason("parsing timestamp %(value)q").D("value", *s).Err()
	}
	t = t.UTC()
	return &t, nil
}
