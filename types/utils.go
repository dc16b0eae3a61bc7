package types

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
	"encoding/binary"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Solidity revert encodings.
var (
	// Error(string)
	errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0}
	// Panic(uint256)
	panicSelector = []byte{0x4e, 0x48, 0x7b, 0x71}
)

// PanicAssertion is the Solidity panic code for a failed assert.
const PanicAssertion = 0x01

// DecodeRevertReason decodes the human readable reason out of revert data.
// It recognizes the Solidity Error(string) and Panic(uint256) encodings,
// anything else is returned as an empty string.
func DecodeRevertReason(data []byte) string {
	if len(data) >= 4+32 && string(data[:4]) == string(panicSelector) {
		code := binary.BigEndian.Uint64(data[4+24 : 4+32])
		if code == PanicAssertion {
			return "assertion failed"
		}
		return "panic"
	}
	if len(data) < 4+64 || string(data[:4]) != string(errorSelector) {
		return ""
	}
	body := data[4:]
	offset := binary.BigEndian.Uint64(body[24:32])
	if offset+32 > uint64(len(body)) {
		return ""
	}
	length := binary.BigEndian.Uint64(body[offset+24 : offset+32])
	if offset+32+length > uint64(len(body)) {
		return ""
	}
	return string(body[offset+32 : offset+32+length])
}

// IsAssertionFailure reports whether revert data encodes a failed assertion.
func IsAssertionFailure(data []byte) bool {
	if len(data) >= 4+32 && string(data[:4]) == string(panicSelector) {
		return binary.BigEndian.Uint64(data[4+24:4+32]) == PanicAssertion
	}
	return strings.HasPrefix(DecodeRevertReason(data), "assertion")
}

// EncodeRevertReason encodes a reason string using the Solidity Error(string) encoding.
func EncodeRevertReason(reason string) []byte {
	payload := []byte(reason)
	padded := len(payload)
	if rem := padded % 32; rem != 0 {
		padded += 32 - rem
	}
	res := make([]byte, 4+64+padded)
	copy(res[:4], errorSelector)
	res[4+31] = 0x20
	binary.BigEndian.PutUint64(res[4+32+24:4+64], uint64(len(payload)))
	copy(res[4+64:], payload)
	return res
}

// MarshalAddress implements the mus.Marshaller interface.
func MarshalAddress(v common.Address, bs []byte) (n int) {
	sl := v.Bytes()
	m := mus.MarshallerFn[byte](varint.MarshalByte)
	n = ord.MarshalSlice[byte](sl, m, bs)
	return
}

// UnmarshalAddress implements the mus.Unmarshaller interface.
func UnmarshalAddress(bs []byte) (v common.Address, n int, err error) {
	var sl []byte
	u := mus.UnmarshallerFn[byte](varint.UnmarshalByte)
	sl, n, err = ord.UnmarshalSlice[byte](u, bs)
	if err != nil {
		return
	}
	v.SetBytes(sl)
	return
}

// SizeAddress implements the mus.Sizer interface.
func SizeAddress(v common.Address) (size int) {
	sl := v.Bytes()
	s := mus.SizerFn[byte](varint.SizeByte)
	size = ord.SizeSlice[byte](sl, s)
	return
}

// MarshalHash implements the mus.Marshaller interface.
func MarshalHash(v common.Hash, bs []byte) (n int) {
	sl := v.Bytes()
	m := mus.MarshallerFn[byte](varint.MarshalByte)
	n = ord.MarshalSlice[byte](sl, m, bs)
	return
}

// UnmarshalHash implements the mus.Unmarshaller interface.
func UnmarshalHash(bs []byte) (v common.Hash, n int, err error) {
	var sl []byte
	u := mus.UnmarshallerFn[byte](varint.UnmarshalByte)
	sl, n, err = ord.UnmarshalSlice[byte](u, bs)
	if err != nil {
		return
	}
	v.SetBytes(sl)
	return
}

// SizeHash implements the mus.Sizer interface.
func SizeHash(v common.Hash) (size int) {
	sl := v.Bytes()
	s := mus.SizerFn[byte](varint.SizeByte)
	size = ord.SizeSlice[byte](sl, s)
	return
}

// MarshalUint256 implements the mus.Marshaller interface.
func MarshalUint256(v *uint256.Int, bs []byte) (n int) {
	sl := v.Bytes()
	m := mus.MarshallerFn[byte](varint.MarshalByte)
	n = ord.MarshalSlice[byte](sl, m, bs)
	return
}

// UnmarshalUint256 implements the mus.Unmarshaller interface.
func UnmarshalUint256(bs []byte) (v *uint256.Int, n int, err error) {
	var sl []byte
	u := mus.UnmarshallerFn[byte](varint.UnmarshalByte)
	sl, n, err = ord.UnmarshalSlice[byte](u, bs)
	if err != nil {
		return
	}
	v = uint256.NewInt(0).SetBytes(sl)
	return
}

// SizeUint256 implements the mus.Sizer interface.
func SizeUint256(v *uint256.Int) (size int) {
	sl := v.Bytes()
	s := mus.SizerFn[byte](varint.SizeByte)
	size = ord.SizeSlice[byte](sl, s)
	return
}

// MarshalBytes implements the mus.Marshaller interface.
func MarshalBytes(v []byte, bs []byte) (n int) {
	m := mus.MarshallerFn[byte](varint.MarshalByte)
	n = ord.MarshalSlice[byte](v, m, bs)
	return
}

// UnmarshalBytes implements the mus.Unmarshaller interface.
func UnmarshalBytes(bs []byte) (v []byte, n int, err error) {
	u := mus.UnmarshallerFn[byte](varint.UnmarshalByte)
	v, n, err = ord.UnmarshalSlice[byte](u, bs)
	return
}

// SizeBytes implements the mus.Sizer interface.
func SizeBytes(v []byte) (size int) {
	s := mus.SizerFn[byte](varint.SizeByte)
	size = ord.SizeSlice[byte](v, s)
	return
}
