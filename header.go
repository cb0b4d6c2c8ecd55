package cuckoofilter

import (
	"encoding/binary"

	"github.com/efficient/cuckoofilter/errors"
)

const (
	// magic number for filter files: "CKFL" in little-endian.
	fileMagic = uint32(0x4C464B43)

	// fileVersion is the current file format version.
	fileVersion = uint16(0x0001)

	// fileHeaderSize is the exact size of the serialized header.
	// Layout: magic(4) version(2) reserved(2) payloadLen(8).
	fileHeaderSize = 16

	// fileFooterSize holds the xxhash64 checksum of the payload.
	fileFooterSize = 8
)

// fileHeader frames a marshaled filter on disk. The payload itself is the
// filter's own wire format and stays opaque here; the header only carries
// enough to bound and verify it.
type fileHeader struct {
	Magic      uint32
	Version    uint16
	PayloadLen uint64
}

func (h *fileHeader) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], 0)
	binary.LittleEndian.PutUint64(buf[8:16], h.PayloadLen)
}

func decodeFileHeader(buf []byte) (*fileHeader, error) {
	if len(buf) < fileHeaderSize {
		return nil, errors.ErrTruncatedFile
	}
	h := &fileHeader{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint16(buf[4:6]),
		PayloadLen: binary.LittleEndian.Uint64(buf[8:16]),
	}
	if h.Magic != fileMagic {
		return nil, errors.ErrInvalidMagic
	}
	if h.Version != fileVersion {
		return nil, errors.ErrInvalidVersion
	}
	return h, nil
}
