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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// accountObject is the in-memory representation of one account within a layer.
// Objects in frozen layers are immutable, mutation first copies the object
// into the head layer.
type accountObject struct {
	exists         bool
	nonce          uint64
	balance        *uint256.Int
	code           []byte
	codeHash       common.Hash
	storage        map[common.Hash]common.Hash
	selfDestructed bool
}

// newAccountObject creates an existing account with zero values.
func newAccountObject() *accountObject {
	return &accountObject{
		exists:   true,
		balance:  uint256.NewInt(0),
		codeHash: crypto.Keccak256Hash(nil),
		storage:  make(map[common.Hash]common.Hash),
	}
}

// codeHashFor computes the code hash for the given code, empty code included.
func codeHashFor(code []byte) common.Hash {
	return crypto.Keccak256Hash(code)
}

// deepCopy creates a full copy of this account including its storage.
func (a *accountObject) deepCopy() *accountObject {
	res := &accountObject{
		exists:         a.exists,
		nonce:          a.nonce,
		balance:        new(uint256.Int).Set(a.balance),
		codeHash:       a.codeHash,
		selfDestructed: a.selfDestructed,
		storage:        make(map[common.Hash]common.Hash, len(a.storage)),
	}
	if a.code != nil {
		res.code = make([]byte, len(a.code))
		copy(res.code, a.code)
	}
	for k, v := range a.storage {
		res.storage[k] = v
	}
	return res
}
