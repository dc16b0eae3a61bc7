package interp

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import (
	"github.com/holiman/uint256"
)

// memory is the byte addressed expandable memory of one frame.
type memory struct {
	data []byte
}

func newMemory() *memory {
	return &memory{data: make([]byte, 0)}
}

func (m *memory) len() int {
	return len(m.data)
}

// resize grows memory to the given size rounded up to a word boundary.
func (m *memory) resize(size uint64) {
	if size%32 != 0 {
		size += 32 - size%32
	}
	if uint64(len(m.data)) < size {
		m.data = append(m.data, make([]byte, size-uint64(len(m.data)))...)
	}
}

// set writes value at the given offset, memory must be sized already.
func (m *memory) set(offset uint64, value []byte) {
	copy(m.data[offset:offset+uint64(len(value))], value)
}

// set32 writes a 256-bit word at the given offset.
func (m *memory) set32(offset uint64, value *uint256.Int) {
	b32 := value.Bytes32()
	copy(m.data[offset:offset+32], b32[:])
}

// get returns a copy of the memory slice at the given range.
func (m *memory) get(offset uint64, size uint64) []byte {
	if size == 0 {
		return nil
	}
	res := make([]byte, size)
	copy(res, m.data[offset:offset+size])
	return res
}
