package segment

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-utils/v2/pathutil"
)

// Body is an opened upload source: random access content with a known size.
type Body interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Source is something that can be uploaded. Use FromBytes, FromFile or FromPath.
type Source interface {
	Open() (Body, error)
}

// FromBytes uploads an in-memory buffer.
func FromBytes(b []byte) Source {
	return bytesSource(b)
}

// FromFile uploads an already opened file. The file is not closed by the upload.
func FromFile(f *os.File) Source {
	return fileSource{file: f}
}

// FromPath uploads the file at path. A leading ~ is expanded.
func FromPath(path string) Source {
	return pathSource{path: path, pathModifier: pathutil.NewPathModifier()}
}

type bytesSource []byte

func (s bytesSource) Open() (Body, error) {
	return nopCloserBody{bytes.NewReader(s)}, nil
}

type nopCloserBody struct {
	*bytes.Reader
}

func (nopCloserBody) Close() error { return nil }

type fileSource struct {
	file *os.File
}

// Open measures the file by seeking to its end, then rewinds it to offset 0.
func (s fileSource) Open() (Body, error) {
	if s.file == nil {
		return nil, apierror.InvalidArgument("nil file handle")
	}
	info, err := s.file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.file.Name(), err)
	}
	if info.IsDir() {
		return nil, apierror.InvalidArgument("%s is a directory", s.file.Name())
	}

	size, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek to end of %s: %w", s.file.Name(), err)
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", s.file.Name(), err)
	}

	return &fileBody{File: s.file, size: size}, nil
}

type pathSource struct {
	path         string
	pathModifier pathutil.PathModifier
}

func (s pathSource) Open() (Body, error) {
	if s.path == "" {
		return nil, apierror.InvalidArgument("empty source path")
	}
	absPath, err := s.pathModifier.AbsPath(s.path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", s.path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, apierror.InvalidArgument("%s is not a regular file", absPath)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", absPath, err)
	}

	return &fileBody{File: file, size: info.Size(), owned: true}, nil
}

type fileBody struct {
	*os.File
	size  int64
	owned bool
}

func (b *fileBody) Size() int64 {
	return b.size
}

func (b *fileBody) Close() error {
	if !b.owned {
		return nil
	}
	return b.File.Close()
}
