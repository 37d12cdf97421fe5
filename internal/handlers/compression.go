package handlers

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// MinSizeForCompression skips bodies too small to benefit from gzip.
const MinSizeForCompression = 1024

// ShouldCompress reports whether a response of the given type and size is
// worth compressing. PDFs are included: rendered invoices carry mostly
// uncompressed text streams.
func ShouldCompress(contentType string, size int64) bool {
	compressibleTypes := []string{
		"text/",
		"application/json",
		"application/pdf",
	}

	if size < MinSizeForCompression {
		return false
	}

	for _, t := range compressibleTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

func acceptsGzip(header string) bool {
	return strings.Contains(header, "gzip")
}

// CompressData compresses byte data using gzip
func CompressData(data []byte) ([]byte, error) {
	var compressed bytes.Buffer
	gzipWriter := gzip.NewWriter(&compressed)

	if _, err := gzipWriter.Write(data); err != nil {
		return nil, err
	}

	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}

	return compressed.Bytes(), nil
}

// DecompressData decompresses gzipped byte data, inflating at most limit+1
// bytes so callers can detect oversized payloads without holding them.
func DecompressData(data []byte, limit int64) ([]byte, error) {
	gzipReader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gzipReader.Close()

	return io.ReadAll(io.LimitReader(gzipReader, limit+1))
}
