package pkginfo

import (
	"io"

	"github.com/luci/luci-go/common/errors"

	"github.com/igankevich/zar/xar"
)

// FromArchive locates and parses an opened archive's well-known metadata
// entries, preferring Distribution and falling back to PackageInfo. It
// returns nil, nil if neither is present.
func FromArchive(ar *xar.Archive) (*Metadata, error) {
	var distribution, packageInfo []byte

	for i := 0; i < ar.NumEntries(); i++ {
		e := ar.Entry(i)
		switch e.Name() {
		case "Distribution":
			raw, err := readEntry(e)
			if err != nil {
				return nil, errors.Annotate(err).Reason("reading Distribution").Err()
			}
			distribution = raw
		case "PackageInfo":
			raw, err := readEntry(e)
			if err != nil {
				return nil, errors.Annotate(err).Reason("reading PackageInfo").Err()
			}
			packageInfo = raw
		}
	}

	if distribution != nil {
		return ParseDistribution(distribution)
	}
	if packageInfo != nil {
		return ParsePackageInfo(packageInfo)
	}
	return nil, nil
}

func readEntry(e *xar.Entry) ([]byte, error) {
	r, err := e.Reader()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if closeErr := r.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
