package storage

import (
	"context"
	"encoding/binary"
	"os"
	"sync"

	"github.com/golang/snappy"
	"github.com/juju/errors"
	"github.com/pierrec/lz4/v4"

	"github.com/kvstorelabs/pagecachectl/pagecache"
)

// CompressionCodec compresses/decompresses one page's worth of bytes
// before/after the physical write, chosen the way server/net/connection.go
// in the teacher's tree picks a wire compressor.
type CompressionCodec interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte, originalSize uint32) ([]byte, error)
}

// NewCodec resolves a codec by name: "none", "snappy", or "lz4".
func NewCodec(name string) (CompressionCodec, error) {
	switch name {
	case "", "none":
		return noneCodec{}, nil
	case "snappy":
		return snappyCodec{}, nil
	case "lz4":
		return &lz4Codec{}, nil
	default:
		return nil, errors.Errorf("file_store: unknown compression codec %q", name)
	}
}

type noneCodec struct{}

func (noneCodec) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (noneCodec) Decompress(data []byte, originalSize uint32) ([]byte, error) {
	out := make([]byte, originalSize)
	copy(out, data)
	return out, nil
}

type snappyCodec struct{}

func (snappyCodec) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) Decompress(data []byte, originalSize uint32) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Annotate(err, "snappy decode")
	}
	if uint32(len(out)) < originalSize {
		full := make([]byte, originalSize)
		copy(full, out)
		return full, nil
	}
	return out, nil
}

// lz4Codec prefixes a one-byte marker (0 = stored raw, 1 = compressed)
// since lz4.CompressBlock signals an incompressible block by returning 0,
// with no container format of its own to fall back on.
type lz4Codec struct {
	compressor lz4.Compressor
}

func (c *lz4Codec) Compress(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data))+1)
	n, err := c.compressor.CompressBlock(data, dst[1:])
	if err != nil {
		return nil, errors.Annotate(err, "lz4 compress")
	}
	if n == 0 {
		dst[0] = 0
		copy(dst[1:1+len(data)], data)
		return dst[:1+len(data)], nil
	}
	dst[0] = 1
	return dst[:1+n], nil
}

func (lz4Codec) Decompress(data []byte, originalSize uint32) ([]byte, error) {
	out := make([]byte, originalSize)
	if len(data) == 0 {
		return out, nil
	}
	marker, payload := data[0], data[1:]
	if marker == 0 {
		copy(out, payload)
		return out, nil
	}
	n, err := lz4.UncompressBlock(payload, out)
	if err != nil {
		return nil, errors.Annotate(err, "lz4 decompress")
	}
	return out[:n], nil
}

const recordHeaderSize = 4

// FileStore is an os.File-backed store addressed in fixed-size page slots,
// each holding a 4-byte compressed-length header followed by the codec's
// output. Grounded on the teacher's writeToDisk/LoadPageByPageNumber pair.
type FileStore struct {
	mu       sync.Mutex
	f        *os.File
	pageSize uint32
	codec    CompressionCodec
}

// NewFileStore opens (creating if needed) the file at path as a page
// store of pageSize-byte pages compressed with codec.
func NewFileStore(path string, pageSize uint32, codec CompressionCodec) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Annotatef(err, "file_store: open %s", path)
	}
	return &FileStore{f: f, pageSize: pageSize, codec: codec}, nil
}

func (s *FileStore) Close() error {
	return s.f.Close()
}

// slotSize bounds the worst case (incompressible data, lz4's one-byte
// marker, snappy's own small framing overhead) generously so a record
// never needs to span slots.
func (s *FileStore) slotSize() int64 {
	return recordHeaderSize + int64(s.pageSize) + int64(s.pageSize)/2 + 64
}

func (s *FileStore) pageIndexAndOffset(addr pagecache.DataAddress) (uint64, uint32) {
	page := uint64(addr) / uint64(s.pageSize)
	offset := uint32(uint64(addr) % uint64(s.pageSize))
	return page, offset
}

func (s *FileStore) readPage(page uint64) ([]byte, error) {
	slot := s.slotSize()
	header := make([]byte, recordHeaderSize)
	if _, err := s.f.ReadAt(header, int64(page)*slot); err != nil {
		return make([]byte, s.pageSize), nil
	}
	n := binary.BigEndian.Uint32(header)
	if n == 0 {
		return make([]byte, s.pageSize), nil
	}
	compressed := make([]byte, n)
	if _, err := s.f.ReadAt(compressed, int64(page)*slot+recordHeaderSize); err != nil {
		return nil, errors.Annotate(err, "file_store: read record")
	}
	return s.codec.Decompress(compressed, s.pageSize)
}

func (s *FileStore) writePage(page uint64, data []byte) error {
	compressed, err := s.codec.Compress(data)
	if err != nil {
		return errors.Trace(err)
	}
	slot := s.slotSize()
	if int64(len(compressed))+recordHeaderSize > slot {
		return errors.Errorf("file_store: compressed page %d exceeds slot size", page)
	}

	record := make([]byte, slot)
	binary.BigEndian.PutUint32(record[:recordHeaderSize], uint32(len(compressed)))
	copy(record[recordHeaderSize:], compressed)

	if _, err := s.f.WriteAt(record, int64(page)*slot); err != nil {
		return errors.Annotatef(err, "file_store: write page %d", page)
	}
	return nil
}

func (s *FileStore) ReadStorage(_ context.Context, address pagecache.DataAddress, buf []byte, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, offset := s.pageIndexAndOffset(address)
	if offset+uint32(len(buf)) > s.pageSize {
		return errors.Errorf("file_store: read [%d,%d) crosses page boundary", address, uint64(address)+uint64(len(buf)))
	}
	full, err := s.readPage(page)
	if err != nil {
		return errors.Trace(err)
	}
	copy(buf, full[offset:uint32(len(buf))+offset])
	return nil
}

func (s *FileStore) WriteStorage(_ context.Context, address pagecache.DataAddress, buf []byte, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, offset := s.pageIndexAndOffset(address)
	if offset+uint32(len(buf)) > s.pageSize {
		return errors.Errorf("file_store: write [%d,%d) crosses page boundary", address, uint64(address)+uint64(len(buf)))
	}
	full, err := s.readPage(page)
	if err != nil {
		return errors.Trace(err)
	}
	copy(full[offset:], buf)
	return errors.Trace(s.writePage(page, full))
}
