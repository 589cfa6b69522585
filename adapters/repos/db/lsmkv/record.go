//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package lsmkv

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/weaviate/logkv/entities/lsmkv"
)

// Op is the kind of mutation an Entry records
type Op uint8

const (
	OpPut Op = iota
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Entry is the atomic unit of mutation. A later entry for the same key
// supersedes an earlier one.
type Entry struct {
	Key   []byte
	Value []byte
	Op    Op
}

func (e Entry) Tombstone() bool {
	return e.Op == OpDelete
}

// Records are framed identically in segments and in the write-ahead log:
//
//	[uint32 key_len][key][uint8 op][uint32 value_len][value]
//
// all integers little-endian. Tombstones carry a zero-length value.
const (
	keyLenSize   = 4
	opSize       = 1
	valueLenSize = 4

	recordOverhead = keyLenSize + opSize + valueLenSize

	// maxFieldLen guards against nonsense length prefixes in torn records
	maxFieldLen = math.MaxUint32
)

func recordSize(key, value []byte) int {
	return recordOverhead + len(key) + len(value)
}

func encodeRecord(e Entry) ([]byte, error) {
	if len(e.Key) == 0 {
		return nil, lsmkv.ErrEmptyKey
	}
	if uint64(len(e.Key)) > maxFieldLen || uint64(len(e.Value)) > maxFieldLen {
		return nil, errors.Errorf("record for key of length %d exceeds the maximum field length",
			len(e.Key))
	}

	value := e.Value
	if e.Op == OpDelete {
		value = nil
	}

	buf := make([]byte, recordSize(e.Key, value))
	pos := 0

	binary.LittleEndian.PutUint32(buf[pos:], uint32(len(e.Key)))
	pos += keyLenSize
	pos += copy(buf[pos:], e.Key)

	buf[pos] = byte(e.Op)
	pos += opSize

	binary.LittleEndian.PutUint32(buf[pos:], uint32(len(value)))
	pos += valueLenSize
	copy(buf[pos:], value)

	return buf, nil
}

// decodeRecordAt decodes exactly one record from ra starting at offset,
// where size is the logical length of the underlying file. It returns the
// entry and the offset of the next record. Any inconsistency between the
// length prefixes and size is reported as a corrupt record.
func decodeRecordAt(path string, ra io.ReaderAt, size, offset int64) (Entry, int64, error) {
	if offset < 0 || offset >= size {
		return Entry{}, 0, lsmkv.NewCorruptRecordError(path, offset,
			"offset outside of file of length %d", size)
	}

	pos := offset
	if size-pos < keyLenSize {
		return Entry{}, 0, lsmkv.NewCorruptRecordError(path, offset,
			"truncated key length prefix")
	}

	var lenBuf [keyLenSize]byte
	if _, err := ra.ReadAt(lenBuf[:], pos); err != nil {
		return Entry{}, 0, lsmkv.NewIOError("read", path, err)
	}
	keyLen := int64(binary.LittleEndian.Uint32(lenBuf[:]))
	pos += keyLenSize

	if keyLen == 0 {
		return Entry{}, 0, lsmkv.NewCorruptRecordError(path, offset, "empty key")
	}
	if size-pos < keyLen+opSize+valueLenSize {
		return Entry{}, 0, lsmkv.NewCorruptRecordError(path, offset,
			"key length %d exceeds remaining %d bytes", keyLen, size-pos)
	}

	keyAndMeta := make([]byte, keyLen+opSize+valueLenSize)
	if _, err := ra.ReadAt(keyAndMeta, pos); err != nil {
		return Entry{}, 0, lsmkv.NewIOError("read", path, err)
	}
	pos += int64(len(keyAndMeta))

	key := keyAndMeta[:keyLen]
	op := Op(keyAndMeta[keyLen])
	if op != OpPut && op != OpDelete {
		return Entry{}, 0, lsmkv.NewCorruptRecordError(path, offset,
			"unknown op flag %d", op)
	}

	valueLen := int64(binary.LittleEndian.Uint32(keyAndMeta[keyLen+opSize:]))
	if size-pos < valueLen {
		return Entry{}, 0, lsmkv.NewCorruptRecordError(path, offset,
			"value length %d exceeds remaining %d bytes", valueLen, size-pos)
	}

	value := make([]byte, valueLen)
	if valueLen > 0 {
		if _, err := ra.ReadAt(value, pos); err != nil {
			return Entry{}, 0, lsmkv.NewIOError("read", path, err)
		}
	}
	pos += valueLen

	return Entry{Key: key[:keyLen:keyLen], Value: value, Op: op}, pos, nil
}

// readRecord decodes one record from a sequential reader with remaining
// bytes left in it. It returns io.EOF if r is exhausted exactly at a record
// boundary and io.ErrUnexpectedEOF if the record is incomplete. Length
// prefixes larger than what is left are treated as incomplete rather than
// allocated.
func readRecord(r io.Reader, remaining int64) (Entry, int64, error) {
	var lenBuf [keyLenSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		// io.ReadFull returns io.EOF only if nothing at all was read
		return Entry{}, 0, err
	}
	keyLen := binary.LittleEndian.Uint32(lenBuf[:])
	if keyLen == 0 {
		return Entry{}, 0, errors.New("empty key")
	}

	if int64(keyLen)+recordOverhead > remaining {
		return Entry{}, 0, io.ErrUnexpectedEOF
	}

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return Entry{}, 0, unexpected(err)
	}

	var opAndLen [opSize + valueLenSize]byte
	if _, err := io.ReadFull(r, opAndLen[:]); err != nil {
		return Entry{}, 0, unexpected(err)
	}

	op := Op(opAndLen[0])
	if op != OpPut && op != OpDelete {
		return Entry{}, 0, errors.Errorf("unknown op flag %d", op)
	}

	valueLen := binary.LittleEndian.Uint32(opAndLen[opSize:])
	if int64(keyLen)+int64(valueLen)+recordOverhead > remaining {
		return Entry{}, 0, io.ErrUnexpectedEOF
	}

	value := make([]byte, valueLen)
	if _, err := io.ReadFull(r, value); err != nil {
		return Entry{}, 0, unexpected(err)
	}

	return Entry{Key: key, Value: value, Op: op}, int64(recordOverhead) +
		int64(keyLen) + int64(valueLen), nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
