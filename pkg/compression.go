package converter

import (
	"bufio"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionLZ4
	CompressionBzip2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionBzip2:
		return "bzip2"
	default:
		return "unknown"
	}
}

func CompressionFromName(name string) Compression {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(lower, ".zst"):
		return CompressionZstd
	case strings.HasSuffix(lower, ".lz4"):
		return CompressionLZ4
	case strings.HasSuffix(lower, ".bz2"):
		return CompressionBzip2
	default:
		return CompressionNone
	}
}

// StripCompression removes a known compression suffix from name.
func StripCompression(name string) string {
	if CompressionFromName(name) == CompressionNone {
		return name
	}
	return name[:strings.LastIndex(name, ".")]
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenDecompressed opens path and wraps it with the decompressor matching
// its suffix.
func OpenDecompressed(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	buffered := bufio.NewReaderSize(file, 1<<16)

	switch CompressionFromName(path) {
	case CompressionGzip:
		gz, err := gzip.NewReader(buffered)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("gzip header: %w", err)
		}
		return &multiCloser{Reader: gz, closers: []io.Closer{gz, file}}, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(buffered)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		rc := dec.IOReadCloser()
		return &multiCloser{Reader: rc, closers: []io.Closer{rc, file}}, nil
	case CompressionLZ4:
		return &multiCloser{Reader: lz4.NewReader(buffered), closers: []io.Closer{file}}, nil
	case CompressionBzip2:
		return &multiCloser{Reader: bzip2.NewReader(buffered), closers: []io.Closer{file}}, nil
	default:
		return &multiCloser{Reader: buffered, closers: []io.Closer{file}}, nil
	}
}

type writeCloser struct {
	io.Writer
	closers []io.Closer
}

func (w *writeCloser) Close() error {
	var errs []error
	for _, c := range w.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CreateCompressed creates path with the compressor matching its suffix.
// bzip2 output is not supported.
func CreateCompressed(path string) (io.WriteCloser, error) {
	compression := CompressionFromName(path)
	if compression == CompressionBzip2 {
		return nil, fmt.Errorf("cannot write %s: bzip2 output is not supported", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buffered := bufio.NewWriterSize(file, 1<<16)
	flusher := closerFunc(buffered.Flush)

	switch compression {
	case CompressionGzip:
		gz := gzip.NewWriter(buffered)
		return &writeCloser{Writer: gz, closers: []io.Closer{gz, flusher, file}}, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(buffered)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return &writeCloser{Writer: enc, closers: []io.Closer{enc, flusher, file}}, nil
	case CompressionLZ4:
		lw := lz4.NewWriter(buffered)
		return &writeCloser{Writer: lw, closers: []io.Closer{lw, flusher, file}}, nil
	default:
		return &writeCloser{Writer: buffered, closers: []io.Closer{flusher, file}}, nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
