package statestore

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
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-datastore"
	"github.com/mus-format/mus-go/varint"
	itypes "github.com/wcgcyx/crucible/types"
)

const ledgerKeyPrefix = "/ledger/"

// ledgerKey gets the datastore key for a named snapshot export.
func ledgerKey(name string) datastore.Key {
	return datastore.NewKey(ledgerKeyPrefix + name)
}

// encodeLedger serializes a flattened ledger deterministically.
func encodeLedger(accts map[common.Address]*accountObject) []byte {
	addrs := make([]common.Address, 0, len(accts))
	for addr := range accts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i].Bytes(), addrs[j].Bytes()) < 0
	})

	size := varint.SizeUint64(uint64(len(addrs)))
	for _, addr := range addrs {
		obj := accts[addr]
		size += itypes.SizeAddress(addr)
		size += varint.SizeUint64(obj.nonce)
		size += itypes.SizeUint256(obj.balance)
		size += varint.SizeByte(boolToByte(obj.selfDestructed))
		size += itypes.SizeBytes(obj.code)
		size += varint.SizeUint64(uint64(len(obj.storage)))
		for k, v := range obj.storage {
			size += itypes.SizeHash(k)
			size += itypes.SizeHash(v)
		}
	}

	bs := make([]byte, size)
	n := varint.MarshalUint64(uint64(len(addrs)), bs)
	for _, addr := range addrs {
		obj := accts[addr]
		n += itypes.MarshalAddress(addr, bs[n:])
		n += varint.MarshalUint64(obj.nonce, bs[n:])
		n += itypes.MarshalUint256(obj.balance, bs[n:])
		n += varint.MarshalByte(boolToByte(obj.selfDestructed), bs[n:])
		n += itypes.MarshalBytes(obj.code, bs[n:])
		keys := make([]common.Hash, 0, len(obj.storage))
		for k := range obj.storage {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return bytes.Compare(keys[i].Bytes(), keys[j].Bytes()) < 0
		})
		n += varint.MarshalUint64(uint64(len(keys)), bs[n:])
		for _, k := range keys {
			n += itypes.MarshalHash(k, bs[n:])
			n += itypes.MarshalHash(obj.storage[k], bs[n:])
		}
	}
	return bs
}

// decodeLedger deserializes a flattened ledger.
func decodeLedger(bs []byte) (map[common.Address]*accountObject, error) {
	res := make(map[common.Address]*accountObject)
	count, n, err := varint.UnmarshalUint64(bs)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < count; i++ {
		addr, used, err := itypes.UnmarshalAddress(bs[n:])
		if err != nil {
			return nil, err
		}
		n += used
		obj := newAccountObject()
		obj.nonce, used, err = varint.UnmarshalUint64(bs[n:])
		if err != nil {
			return nil, err
		}
		n += used
		obj.balance, used, err = itypes.UnmarshalUint256(bs[n:])
		if err != nil {
			return nil, err
		}
		n += used
		var sd byte
		sd, used, err = varint.UnmarshalByte(bs[n:])
		if err != nil {
			return nil, err
		}
		n += used
		obj.selfDestructed = sd != 0
		var code []byte
		code, used, err = itypes.UnmarshalBytes(bs[n:])
		if err != nil {
			return nil, err
		}
		n += used
		if len(code) > 0 {
			obj.code = code
		}
		obj.codeHash = codeHashFor(obj.code)
		var slots uint64
		slots, used, err = varint.UnmarshalUint64(bs[n:])
		if err != nil {
			return nil, err
		}
		n += used
		for j := uint64(0); j < slots; j++ {
			k, used, err := itypes.UnmarshalHash(bs[n:])
			if err != nil {
				return nil, err
			}
			n += used
			v, used, err := itypes.UnmarshalHash(bs[n:])
			if err != nil {
				return nil, err
			}
			n += used
			obj.storage[k] = v
		}
		res[addr] = obj
	}
	if n != len(bs) {
		return nil, fmt.Errorf("trailing bytes in ledger blob: %v", len(bs)-n)
	}
	return res, nil
}

func boolToByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
