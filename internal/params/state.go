package params

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrInvalidState is returned when a state blob cannot be decoded.
var ErrInvalidState = errors.New("params: invalid state")

const (
	stateMagic   = "XYSC"
	stateVersion = uint32(1)
	maxStateSize = 1 << 16
)

// SaveState writes every parameter as (id, plain value) pairs preceded by a
// magic header, a version and a count. All integers are little-endian.
func (r *Registry) SaveState(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString(stateMagic)
	le := binary.LittleEndian
	buf.Write(le.AppendUint32(nil, stateVersion))
	buf.Write(le.AppendUint32(nil, uint32(count)))
	for i := range specs {
		buf.Write(le.AppendUint32(nil, uint32(i)))
		buf.Write(le.AppendUint64(nil, math.Float64bits(r.Get(ID(i)))))
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// MarshalState returns the state blob as a byte slice.
func (r *Registry) MarshalState() []byte {
	var buf bytes.Buffer
	_ = r.SaveState(&buf)
	return buf.Bytes()
}

// LoadState restores parameters from a blob written by SaveState. Unknown ids
// are ignored, ids missing from the blob return to their defaults and every
// value is clamped. Nothing is applied unless the whole blob decodes.
func (r *Registry) LoadState(rd io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(rd, maxStateSize))
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	return r.UnmarshalState(data)
}

// UnmarshalState is LoadState over an in-memory blob.
func (r *Registry) UnmarshalState(data []byte) error {
	if len(data) < len(stateMagic)+8 || string(data[:len(stateMagic)]) != stateMagic {
		return fmt.Errorf("%w: bad header", ErrInvalidState)
	}
	le := binary.LittleEndian
	data = data[len(stateMagic):]
	version := le.Uint32(data)
	if version == 0 || version > stateVersion {
		return fmt.Errorf("%w: version %d not supported (max %d)", ErrInvalidState, version, stateVersion)
	}
	n := le.Uint32(data[4:])
	data = data[8:]
	if uint64(len(data)) < uint64(n)*12 {
		return fmt.Errorf("%w: truncated, want %d entries", ErrInvalidState, n)
	}

	type entry struct {
		id    uint32
		value float64
	}
	entries := make([]entry, 0, n)
	for i := uint32(0); i < n; i++ {
		off := int(i) * 12
		entries = append(entries, entry{
			id:    le.Uint32(data[off:]),
			value: math.Float64frombits(le.Uint64(data[off+4:])),
		})
	}
	var values [count]float64
	for i := range specs {
		values[i] = specs[i].Default
	}
	for _, e := range entries {
		if e.id < uint32(count) {
			values[e.id] = e.value
		}
	}
	for i, v := range values {
		r.Set(ID(i), v)
	}
	return nil
}
