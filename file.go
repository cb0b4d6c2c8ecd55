package cuckoofilter

import (
	"encoding"
	"encoding/binary"
	goerrors "errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	"github.com/efficient/cuckoofilter/errors"
)

// SaveFile writes a marshaled filter to path, framed with a magic number,
// version, and an xxhash64 checksum of the payload. Any filter type in
// this package with binary marshaling works: *Filter and *Shingle.
func SaveFile(path string, f encoding.BinaryMarshaler) error {
	payload, err := f.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal filter: %w", err)
	}

	buf := make([]byte, fileHeaderSize+len(payload)+fileFooterSize)
	hdr := fileHeader{Magic: fileMagic, Version: fileVersion, PayloadLen: uint64(len(payload))}
	hdr.encodeTo(buf[:fileHeaderSize])
	copy(buf[fileHeaderSize:], payload)
	binary.LittleEndian.PutUint64(buf[fileHeaderSize+len(payload):], xxhash.Sum64(payload))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("write filter file: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadFile restores a filter saved with SaveFile. The destination must be
// constructed with the same geometry and hash family type as the saved
// filter; its state is overwritten. The file is memory-mapped read-only
// for the duration of the load.
func LoadFile(path string, f encoding.BinaryUnmarshaler) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open filter file: %w", err)
	}
	defer file.Close()

	mm, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("mmap filter file: %w", err)
	}
	defer mm.Unmap()

	if err := LoadBytes([]byte(mm), f); err != nil {
		return err
	}
	return nil
}

// LoadBytes restores a filter from an in-memory image produced by SaveFile.
func LoadBytes(data []byte, f encoding.BinaryUnmarshaler) error {
	hdr, err := decodeFileHeader(data)
	if err != nil {
		return err
	}
	total := fileHeaderSize + int(hdr.PayloadLen) + fileFooterSize
	if len(data) < total {
		return errors.ErrTruncatedFile
	}
	payload := data[fileHeaderSize : fileHeaderSize+int(hdr.PayloadLen)]
	want := binary.LittleEndian.Uint64(data[fileHeaderSize+int(hdr.PayloadLen):])
	if got := xxhash.Sum64(payload); got != want {
		return fmt.Errorf("%w: have %#x, want %#x", errors.ErrChecksumFailed, got, want)
	}
	if err := f.UnmarshalBinary(payload); err != nil {
		if goerrors.Is(err, errors.ErrShapeMismatch) {
			return err
		}
		return fmt.Errorf("%w: %w", errors.ErrCorruptedFilter, err)
	}
	return nil
}
