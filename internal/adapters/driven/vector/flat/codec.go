package flat

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// Payload layout, all integers little-endian:
//
//	magic   [4]byte "LXVI"
//	version uint16
//	dim     uint32
//	count   uint32
//	count * { idLen uvarint, id []byte, dim * float32 }
const (
	payloadMagic   = "LXVI"
	payloadVersion = 1

	// maxIDLen bounds chunk IDs read from disk.
	maxIDLen = 1 << 12
)

// Record is one persisted id/vector pair.
type Record struct {
	ID     string
	Vector []float32
}

// EncodePayload writes records in order. Every vector must have dim values.
func EncodePayload(w io.Writer, dim int, records []Record) error {
	bw := bufio.NewWriter(w)

	header := make([]byte, 0, 14)
	header = append(header, payloadMagic...)
	header = binary.LittleEndian.AppendUint16(header, payloadVersion)
	header = binary.LittleEndian.AppendUint32(header, uint32(dim))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(records)))
	if _, err := bw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	buf := make([]byte, 0, binary.MaxVarintLen64+4*dim)
	for _, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("%w: record %q has %d dimensions, payload has %d",
				domain.ErrDimensionMismatch, r.ID, len(r.Vector), dim)
		}
		buf = buf[:0]
		buf = binary.AppendUvarint(buf, uint64(len(r.ID)))
		buf = append(buf, r.ID...)
		for _, x := range r.Vector {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
		}
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("write record %q: %w", r.ID, err)
		}
	}

	return bw.Flush()
}

// DecodePayload reads a payload written by EncodePayload.
// Any structural problem is reported as domain.ErrCorruptOrMissingIndex.
func DecodePayload(r io.Reader) (int, []Record, error) {
	br := bufio.NewReader(r)

	header := make([]byte, 14)
	if _, err := io.ReadFull(br, header); err != nil {
		return 0, nil, corrupt("header", err)
	}
	if string(header[:4]) != payloadMagic {
		return 0, nil, corrupt("header", fmt.Errorf("bad magic %q", header[:4]))
	}
	if v := binary.LittleEndian.Uint16(header[4:6]); v != payloadVersion {
		return 0, nil, corrupt("header", fmt.Errorf("unsupported version %d", v))
	}
	dim := int(binary.LittleEndian.Uint32(header[6:10]))
	count := int(binary.LittleEndian.Uint32(header[10:14]))
	if count > 0 && dim == 0 {
		return 0, nil, corrupt("header", errors.New("zero dimension"))
	}

	records := make([]Record, 0, min(count, 1<<16))
	values := make([]byte, 4*dim)
	for i := range count {
		n, err := binary.ReadUvarint(br)
		if err != nil {
			return 0, nil, corrupt(fmt.Sprintf("record %d", i), err)
		}
		if n == 0 || n > maxIDLen {
			return 0, nil, corrupt(fmt.Sprintf("record %d", i), fmt.Errorf("id length %d", n))
		}
		id := make([]byte, n)
		if _, err := io.ReadFull(br, id); err != nil {
			return 0, nil, corrupt(fmt.Sprintf("record %d", i), err)
		}
		if _, err := io.ReadFull(br, values); err != nil {
			return 0, nil, corrupt(fmt.Sprintf("record %d", i), err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(values[4*j:]))
		}
		records = append(records, Record{ID: string(id), Vector: vec})
	}

	if _, err := br.ReadByte(); err != io.EOF {
		return 0, nil, corrupt("trailer", errors.New("unexpected data after last record"))
	}

	return dim, records, nil
}

func corrupt(where string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: vector payload %s: %w", domain.ErrCorruptOrMissingIndex, where, err)
}
