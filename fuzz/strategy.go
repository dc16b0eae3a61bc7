package fuzz

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
	"fmt"
	"math/big"
	"math/rand"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Strategy generates and shrinks values of one declared parameter type.
// Values are in the Go representation the ABI encoder expects for the type.
type Strategy interface {
	// Boundaries returns the edge values always tried before random draws,
	// simplest first.
	Boundaries() []interface{}

	// Draw returns a pseudo-random value.
	Draw(rng *rand.Rand) interface{}

	// Shrink returns simpler candidates derived from a failing value,
	// simplest first. It returns nothing once the value cannot shrink further.
	Shrink(value interface{}) []interface{}
}

// StrategyFor returns a strategy for the given ABI type.
func StrategyFor(t abi.Type) (Strategy, error) {
	switch t.T {
	case abi.UintTy:
		return &uintStrategy{bits: t.Size}, nil
	case abi.IntTy:
		return &intStrategy{bits: t.Size}, nil
	case abi.AddressTy:
		return &addressStrategy{}, nil
	case abi.BoolTy:
		return &boolStrategy{}, nil
	case abi.BytesTy:
		return &bytesStrategy{}, nil
	case abi.FixedBytesTy:
		return &fixedBytesStrategy{typ: t.GetType()}, nil
	case abi.StringTy:
		return &stringStrategy{}, nil
	}
	return nil, fmt.Errorf("unsupported parameter type %v", t.String())
}

// StrategiesFor builds one strategy per declared parameter.
func StrategiesFor(params abi.Arguments) ([]Strategy, error) {
	res := make([]Strategy, 0, len(params))
	for _, p := range params {
		s, err := StrategyFor(p.Type)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

// uintStrategy draws unsigned integers of the declared bit width.
type uintStrategy struct {
	bits int
}

func (s *uintStrategy) max() *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(s.bits)), big.NewInt(1))
}

// convert maps a big int onto the Go type the ABI encoder expects.
func (s *uintStrategy) convert(v *big.Int) interface{} {
	switch {
	case s.bits <= 8:
		return uint8(v.Uint64())
	case s.bits <= 16:
		return uint16(v.Uint64())
	case s.bits <= 32:
		return uint32(v.Uint64())
	case s.bits <= 64:
		return v.Uint64()
	}
	return new(big.Int).Set(v)
}

func (s *uintStrategy) toBig(value interface{}) *big.Int {
	switch v := value.(type) {
	case uint8:
		return new(big.Int).SetUint64(uint64(v))
	case uint16:
		return new(big.Int).SetUint64(uint64(v))
	case uint32:
		return new(big.Int).SetUint64(uint64(v))
	case uint64:
		return new(big.Int).SetUint64(v)
	case *big.Int:
		return v
	}
	return big.NewInt(0)
}

func (s *uintStrategy) Boundaries() []interface{} {
	return []interface{}{
		s.convert(big.NewInt(0)),
		s.convert(big.NewInt(1)),
		s.convert(s.max()),
	}
}

func (s *uintStrategy) Draw(rng *rand.Rand) interface{} {
	// bias half the draws toward small values, they exercise more branches
	if rng.Intn(2) == 0 {
		small := new(big.Int).SetUint64(rng.Uint64() % 1024)
		if small.Cmp(s.max()) > 0 {
			small = s.max()
		}
		return s.convert(small)
	}
	buf := make([]byte, (s.bits+7)/8)
	rng.Read(buf)
	v := new(big.Int).SetBytes(buf)
	v.And(v, s.max())
	return s.convert(v)
}

func (s *uintStrategy) Shrink(value interface{}) []interface{} {
	v := s.toBig(value)
	if v.Sign() == 0 {
		return nil
	}
	res := make([]interface{}, 0)
	for _, c := range shrinkLadder(v) {
		res = append(res, s.convert(c))
	}
	return res
}

// shrinkLadder returns candidates below v in ascending order: zero, one,
// then values closing in on v geometrically, ending at v-1. Adopting the
// first failing candidate repeatedly converges like a binary search.
func shrinkLadder(v *big.Int) []*big.Int {
	res := []*big.Int{big.NewInt(0)}
	one := big.NewInt(1)
	if v.Cmp(one) > 0 {
		res = append(res, one)
	}
	for k := uint(1); ; k++ {
		back := new(big.Int).Rsh(v, k)
		if back.Sign() == 0 {
			break
		}
		cand := new(big.Int).Sub(v, back)
		last := res[len(res)-1]
		if cand.Cmp(last) > 0 && cand.Cmp(v) < 0 {
			res = append(res, cand)
		}
	}
	prev := new(big.Int).Sub(v, one)
	if prev.Cmp(res[len(res)-1]) > 0 {
		res = append(res, prev)
	}
	return res
}

// intStrategy draws signed integers of the declared bit width.
type intStrategy struct {
	bits int
}

func (s *intStrategy) bounds() (*big.Int, *big.Int) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(s.bits-1)), big.NewInt(1))
	min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(s.bits-1)))
	return min, max
}

func (s *intStrategy) convert(v *big.Int) interface{} {
	switch {
	case s.bits <= 8:
		return int8(v.Int64())
	case s.bits <= 16:
		return int16(v.Int64())
	case s.bits <= 32:
		return int32(v.Int64())
	case s.bits <= 64:
		return v.Int64()
	}
	return new(big.Int).Set(v)
}

func (s *intStrategy) toBig(value interface{}) *big.Int {
	switch v := value.(type) {
	case int8:
		return big.NewInt(int64(v))
	case int16:
		return big.NewInt(int64(v))
	case int32:
		return big.NewInt(int64(v))
	case int64:
		return big.NewInt(v)
	case *big.Int:
		return v
	}
	return big.NewInt(0)
}

func (s *intStrategy) Boundaries() []interface{} {
	min, max := s.bounds()
	return []interface{}{
		s.convert(big.NewInt(0)),
		s.convert(big.NewInt(1)),
		s.convert(big.NewInt(-1)),
		s.convert(max),
		s.convert(min),
	}
}

func (s *intStrategy) Draw(rng *rand.Rand) interface{} {
	min, max := s.bounds()
	if rng.Intn(2) == 0 {
		v := big.NewInt(int64(rng.Intn(2048)) - 1024)
		if v.Cmp(max) > 0 {
			v = max
		}
		if v.Cmp(min) < 0 {
			v = min
		}
		return s.convert(v)
	}
	buf := make([]byte, s.bits/8)
	rng.Read(buf)
	v := new(big.Int).SetBytes(buf)
	// map onto [min, max]
	span := new(big.Int).Add(new(big.Int).Sub(max, min), big.NewInt(1))
	v.Mod(v, span)
	v.Add(v, min)
	return s.convert(v)
}

func (s *intStrategy) Shrink(value interface{}) []interface{} {
	v := s.toBig(value)
	if v.Sign() == 0 {
		return nil
	}
	neg := v.Sign() < 0
	res := make([]interface{}, 0)
	for _, c := range shrinkLadder(new(big.Int).Abs(v)) {
		if neg {
			c = new(big.Int).Neg(c)
		}
		res = append(res, s.convert(c))
	}
	return res
}

// addressStrategy draws 20-byte addresses.
type addressStrategy struct{}

func (s *addressStrategy) Boundaries() []interface{} {
	return []interface{}{
		common.Address{},
		common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff"),
	}
}

func (s *addressStrategy) Draw(rng *rand.Rand) interface{} {
	var addr common.Address
	rng.Read(addr[:])
	return addr
}

func (s *addressStrategy) Shrink(value interface{}) []interface{} {
	addr, ok := value.(common.Address)
	if !ok || addr == (common.Address{}) {
		return nil
	}
	return []interface{}{common.Address{}}
}

// boolStrategy draws booleans.
type boolStrategy struct{}

func (s *boolStrategy) Boundaries() []interface{} {
	return []interface{}{false, true}
}

func (s *boolStrategy) Draw(rng *rand.Rand) interface{} {
	return rng.Intn(2) == 1
}

func (s *boolStrategy) Shrink(value interface{}) []interface{} {
	if b, ok := value.(bool); ok && b {
		return []interface{}{false}
	}
	return nil
}

// bytesStrategy draws dynamic byte strings.
type bytesStrategy struct{}

func (s *bytesStrategy) Boundaries() []interface{} {
	return []interface{}{[]byte{}, []byte{0}}
}

func (s *bytesStrategy) Draw(rng *rand.Rand) interface{} {
	buf := make([]byte, rng.Intn(65))
	rng.Read(buf)
	return buf
}

func (s *bytesStrategy) Shrink(value interface{}) []interface{} {
	b, ok := value.([]byte)
	if !ok || len(b) == 0 {
		return nil
	}
	res := []interface{}{[]byte{}}
	if len(b) > 1 {
		res = append(res, append([]byte{}, b[:len(b)/2]...))
	}
	res = append(res, append([]byte{}, b[:len(b)-1]...))
	return res
}

// fixedBytesStrategy draws fixed-size byte arrays via reflection on the
// ABI type's Go representation.
type fixedBytesStrategy struct {
	typ reflect.Type
}

func (s *fixedBytesStrategy) fromBytes(b []byte) interface{} {
	v := reflect.New(s.typ).Elem()
	reflect.Copy(v, reflect.ValueOf(b))
	return v.Interface()
}

func (s *fixedBytesStrategy) Boundaries() []interface{} {
	ones := make([]byte, s.typ.Len())
	for i := range ones {
		ones[i] = 0xff
	}
	return []interface{}{
		s.fromBytes(nil),
		s.fromBytes(ones),
	}
}

func (s *fixedBytesStrategy) Draw(rng *rand.Rand) interface{} {
	buf := make([]byte, s.typ.Len())
	rng.Read(buf)
	return s.fromBytes(buf)
}

func (s *fixedBytesStrategy) Shrink(value interface{}) []interface{} {
	zero := s.fromBytes(nil)
	if reflect.DeepEqual(value, zero) {
		return nil
	}
	return []interface{}{zero}
}

// stringStrategy draws printable strings.
type stringStrategy struct{}

const stringAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "

func (s *stringStrategy) Boundaries() []interface{} {
	return []interface{}{"", "a"}
}

func (s *stringStrategy) Draw(rng *rand.Rand) interface{} {
	buf := make([]byte, rng.Intn(33))
	for i := range buf {
		buf[i] = stringAlphabet[rng.Intn(len(stringAlphabet))]
	}
	return string(buf)
}

func (s *stringStrategy) Shrink(value interface{}) []interface{} {
	str, ok := value.(string)
	if !ok || len(str) == 0 {
		return nil
	}
	res := []interface{}{""}
	if len(str) > 1 {
		res = append(res, str[:len(str)/2])
	}
	res = append(res, str[:len(str)-1])
	return res
}
