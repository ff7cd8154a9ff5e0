package sitemap

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrEmptyPayload is returned when a fetched sitemap body contains no bytes.
var ErrEmptyPayload = errors.New("empty sitemap payload")

// gzipMagic is the two-byte magic number at the start of every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// Decode converts a raw sitemap payload into text. Compression is inferred
// from two independent signals, a ".gz" URL suffix and the gzip magic bytes,
// because servers sometimes mislabel Content-Type or serve gzip under a plain
// name. If decompression fails the raw bytes are used as-is, since a server
// may already have decoded the body for us. Invalid UTF-8 sequences are
// replaced rather than rejected so that partially corrupt feeds still reach
// the parser's repair tiers.
func Decode(sourceURL string, body []byte) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyPayload, sourceURL)
	}

	if looksCompressed(sourceURL, body) {
		decompressed, err := gunzip(body)
		if err != nil {
			log.Debug().
				Err(err).
				Str("url", sourceURL).
				Msg("Decompression failed, treating payload as plain text")
		} else {
			log.Debug().
				Str("url", sourceURL).
				Int("compressed_bytes", len(body)).
				Int("decompressed_bytes", len(decompressed)).
				Msg("Decompressed sitemap payload")
			body = decompressed
		}
	}

	return strings.ToValidUTF8(string(body), "�"), nil
}

// looksCompressed checks the URL suffix and the payload's leading bytes.
// Either signal alone is enough to attempt decompression.
func looksCompressed(sourceURL string, body []byte) bool {
	if bytes.HasPrefix(body, gzipMagic) {
		return true
	}
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return strings.HasSuffix(sourceURL, ".gz")
	}
	return strings.HasSuffix(parsed.Path, ".gz")
}

func gunzip(body []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
