package xar

import (
	"io"
	"os"

	"github.com/luci/luci-go/common/errors"
)

// spool buffers heap bytes in memory up to threshold, then spills to a
// temporary file. TOC offsets are assigned against the spool's running
// write cursor while entries are appended, before the archive's final
// layout (and therefore the compressed TOC's length) is known; Finish
// writes the spooled heap out only once that layout is settled.
type spool struct {
	threshold int64
	written   int64

	mem  []byte
	file *os.File
}

func newSpool(threshold int64) *spool {
	return &spool{threshold: threshold}
}

func (s *spool) Write(p []byte) (int, error) {
	if s.file == nil && s.written+int64(len(p)) > s.threshold {
		f, err := os.CreateTemp("", "zar-heap-*")
		if err != nil {
			return 0, errors.Annotate(err).Reason("creating heap spool file").Err()
		}
		if len(s.mem) > 0 {
			if _, err := f.Write(s.mem); err != nil {
				f.Close()
				os.Remove(f.Name())
				return 0, errors.Annotate(err).Reason("spilling heap spool to disk").Err()
			}
		}
		s.file = f
		s.mem = nil
	}

	var n int
	var err error
	if s.file != nil {
		n, err = s.file.Write(p)
	} else {
		s.mem = append(s.mem, p...)
		n = len(p)
	}
	s.written += int64(n)
	return n, err
}

// Len reports the number of bytes written so far.
func (s *spool) Len() int64 { return s.written }

// WriteTo copies the spool's contents to w, in order.
func (s *spool) WriteTo(w io.Writer) (int64, error) {
	if s.file != nil {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
		return io.Copy(w, s.file)
	}
	n, err := w.Write(s.mem)
	return int64(n), err
}

// Close releases any temporary file backing the spool.
func (s *spool) Close() error {
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	err := s.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	return err
}
