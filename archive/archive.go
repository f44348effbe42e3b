// Package archive validates and unpacks downloaded extract archives.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zip"
)

// MaxEntrySize bounds the uncompressed size of the XML entry.
const MaxEntrySize = 1 << 30

// localFileHeader is the signature every ZIP archive starts with.
var localFileHeader = []byte{'P', 'K', 0x03, 0x04}

var ErrInvalidZipMagic = errors.New("payload is not a zip archive")
var ErrNoXMLEntry = errors.New("zip archive contains no xml file")
var errEntryTooLarge = errors.New("zip entry exceeds size limit")
var errOpenArchive = errors.New("error opening zip archive")

// InvalidZipMagicError wraps ErrInvalidZipMagic with the leading bytes seen.
func InvalidZipMagicError(head []byte) error {
	return fmt.Errorf("%w, leading bytes %q", ErrInvalidZipMagic, head)
}

func EntryTooLargeError(name string, size uint64) error {
	return fmt.Errorf("%w, %s (%d bytes)", errEntryTooLarge, name, size)
}

func OpenArchiveError(baseErr error) error {
	return fmt.Errorf("%w, %w", errOpenArchive, baseErr)
}

// ValidateZip checks the local-file-header magic bytes.
func ValidateZip(b []byte) error {
	if len(b) < len(localFileHeader) {
		return InvalidZipMagicError(b)
	}
	if !bytes.Equal(b[:len(localFileHeader)], localFileHeader) {
		return InvalidZipMagicError(b[:len(localFileHeader)])
	}

	return nil
}

// ExtractXML validates the archive and returns the name and contents of
// its first .xml entry.
func ExtractXML(b []byte) (string, []byte, error) {
	if err := ValidateZip(b); err != nil {
		return "", nil, err
	}

	reader, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", nil, OpenArchiveError(err)
	}

	for _, file := range reader.File {
		if file.FileInfo().IsDir() || !strings.EqualFold(path.Ext(file.Name), ".xml") {
			continue
		}
		if file.UncompressedSize64 > MaxEntrySize {
			return "", nil, EntryTooLargeError(file.Name, file.UncompressedSize64)
		}

		rc, err := file.Open()
		if err != nil {
			return "", nil, fmt.Errorf("failed to open zip entry %s: %w", file.Name, err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
		closeErr := rc.Close()
		if err != nil {
			return "", nil, fmt.Errorf("failed to read zip entry %s: %w", file.Name, err)
		}
		if closeErr != nil {
			return "", nil, fmt.Errorf("failed to close zip entry %s: %w", file.Name, closeErr)
		}
		if len(data) > MaxEntrySize {
			return "", nil, EntryTooLargeError(file.Name, uint64(len(data)))
		}

		return file.Name, data, nil
	}

	return "", nil, ErrNoXMLEntry
}

// Checksum returns the xxhash64 digest of b as a hex string.
func Checksum(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}
