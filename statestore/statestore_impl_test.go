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
	"context"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	itypes "github.com/wcgcyx/crucible/types"
)

var (
	addr1 = common.HexToAddress("0x11")
	addr2 = common.HexToAddress("0x12")
)

func TestAccountDefaults(t *testing.T) {
	s := NewStateStoreImpl()
	assert.False(t, s.Exist(addr1))
	assert.Equal(t, uint64(0), s.GetBalance(addr1).Uint64())
	assert.Equal(t, uint64(0), s.GetNonce(addr1))
	assert.Nil(t, s.GetCode(addr1))
	assert.Equal(t, common.Hash{}, s.GetState(addr1, common.HexToHash("0x1")))
}

func TestCreatedOnFirstWrite(t *testing.T) {
	s := NewStateStoreImpl()
	s.SetBalance(addr1, uint256.NewInt(100))
	assert.True(t, s.Exist(addr1))
	assert.Equal(t, uint64(100), s.GetBalance(addr1).Uint64())
}

func TestTransfer(t *testing.T) {
	s := NewStateStoreImpl()
	s.SetBalance(addr1, uint256.NewInt(100))

	err := s.Transfer(addr1, addr2, uint256.NewInt(101))
	assert.NotNil(t, err)
	assert.Equal(t, itypes.ErrInsufficientBalance, err)
	// No partial transfer
	assert.Equal(t, uint64(100), s.GetBalance(addr1).Uint64())
	assert.Equal(t, uint64(0), s.GetBalance(addr2).Uint64())

	err = s.Transfer(addr1, addr2, uint256.NewInt(100))
	assert.Nil(t, err)
	assert.Equal(t, uint64(0), s.GetBalance(addr1).Uint64())
	assert.Equal(t, uint64(100), s.GetBalance(addr2).Uint64())
}

func TestSnapshotSoundness(t *testing.T) {
	s := NewStateStoreImpl()
	s.SetBalance(addr1, uint256.NewInt(1))
	s.SetState(addr1, common.HexToHash("0x1"), common.HexToHash("0xa"))

	id := s.Snapshot()
	s.SetBalance(addr1, uint256.NewInt(2))
	s.SetState(addr1, common.HexToHash("0x1"), common.HexToHash("0xb"))
	s.SetNonce(addr2, 7)

	err := s.Restore(id)
	assert.Nil(t, err)
	// Exactly the values visible at the moment the snapshot was taken
	assert.Equal(t, uint64(1), s.GetBalance(addr1).Uint64())
	assert.Equal(t, common.HexToHash("0xa"), s.GetState(addr1, common.HexToHash("0x1")))
	assert.False(t, s.Exist(addr2))
}

func TestRestoreDiscardedSnapshot(t *testing.T) {
	s := NewStateStoreImpl()
	base := s.Snapshot()
	s.SetBalance(addr1, uint256.NewInt(1))
	later := s.Snapshot()
	s.SetBalance(addr1, uint256.NewInt(2))

	assert.Nil(t, s.Restore(base))
	// The later snapshot was on a discarded branch
	assert.Equal(t, itypes.ErrUnknownSnapshot, s.Restore(later))
	// The restored snapshot stays valid
	assert.Nil(t, s.Restore(base))
}

func TestRestoreIsRepeatable(t *testing.T) {
	s := NewStateStoreImpl()
	s.SetBalance(addr1, uint256.NewInt(5))
	id := s.Snapshot()
	for i := 0; i < 3; i++ {
		s.SetBalance(addr1, uint256.NewInt(uint64(100+i)))
		assert.Nil(t, s.Restore(id))
		assert.Equal(t, uint64(5), s.GetBalance(addr1).Uint64())
	}
}

func TestJournalCheckpointRevert(t *testing.T) {
	s := NewStateStoreImpl()
	s.SetBalance(addr1, uint256.NewInt(10))

	cp := s.Checkpoint()
	s.SetBalance(addr1, uint256.NewInt(20))
	s.SetNonce(addr1, 3)
	s.SetState(addr1, common.HexToHash("0x1"), common.HexToHash("0xff"))
	s.SetBalance(addr2, uint256.NewInt(9))
	s.RevertToCheckpoint(cp)

	assert.Equal(t, uint64(10), s.GetBalance(addr1).Uint64())
	assert.Equal(t, uint64(0), s.GetNonce(addr1))
	assert.Equal(t, common.Hash{}, s.GetState(addr1, common.HexToHash("0x1")))
	assert.False(t, s.Exist(addr2))
}

func TestJournalRevertAcrossSnapshot(t *testing.T) {
	s := NewStateStoreImpl()
	cp := s.Checkpoint()
	s.SetBalance(addr1, uint256.NewInt(1))
	// Freezing a layer mid-frame must not break the frame revert
	s.Snapshot()
	s.SetBalance(addr1, uint256.NewInt(2))
	s.RevertToCheckpoint(cp)
	assert.False(t, s.Exist(addr1))
}

func TestLogsRevertedWithJournal(t *testing.T) {
	s := NewStateStoreImpl()
	s.AddLog(&ethtypes.Log{Address: addr1})
	cp := s.Checkpoint()
	s.AddLog(&ethtypes.Log{Address: addr2})
	assert.Equal(t, 2, len(s.Logs()))
	s.RevertToCheckpoint(cp)
	assert.Equal(t, 1, len(s.Logs()))
}

func TestLogsTruncatedOnRestore(t *testing.T) {
	s := NewStateStoreImpl()
	s.AddLog(&ethtypes.Log{Address: addr1})
	id := s.Snapshot()
	s.AddLog(&ethtypes.Log{Address: addr2})
	assert.Nil(t, s.Restore(id))
	assert.Equal(t, 1, len(s.Logs()))
}

func TestSelfDestruct(t *testing.T) {
	s := NewStateStoreImpl()
	s.SetBalance(addr1, uint256.NewInt(5))
	s.SetCode(addr1, []byte{0x60, 0x00})
	s.SetState(addr1, common.HexToHash("0x1"), common.HexToHash("0x2"))

	cp := s.Checkpoint()
	s.SelfDestruct(addr1)
	assert.True(t, s.HasSelfDestructed(addr1))
	assert.True(t, s.Exist(addr1))
	assert.Equal(t, uint64(0), s.GetBalance(addr1).Uint64())
	assert.Nil(t, s.GetCode(addr1))
	assert.Equal(t, common.Hash{}, s.GetState(addr1, common.HexToHash("0x1")))

	s.RevertToCheckpoint(cp)
	assert.False(t, s.HasSelfDestructed(addr1))
	assert.Equal(t, uint64(5), s.GetBalance(addr1).Uint64())
	assert.Equal(t, []byte{0x60, 0x00}, s.GetCode(addr1))
}

func TestCopyIsolation(t *testing.T) {
	s := NewStateStoreImpl()
	s.SetBalance(addr1, uint256.NewInt(1))

	cp := s.Copy()
	cp.SetBalance(addr1, uint256.NewInt(100))
	cp.SetBalance(addr2, uint256.NewInt(50))

	// Writes on the copy are invisible to the original and vice versa
	assert.Equal(t, uint64(1), s.GetBalance(addr1).Uint64())
	assert.False(t, s.Exist(addr2))
	s.SetBalance(addr1, uint256.NewInt(7))
	assert.Equal(t, uint64(100), cp.GetBalance(addr1).Uint64())
}

func TestCopyCarriesSnapshots(t *testing.T) {
	s := NewStateStoreImpl()
	s.SetBalance(addr1, uint256.NewInt(1))
	id := s.Snapshot()
	s.SetBalance(addr1, uint256.NewInt(2))

	cp := s.Copy()
	cp.SetBalance(addr1, uint256.NewInt(3))
	assert.Nil(t, cp.Restore(id))
	assert.Equal(t, uint64(1), cp.GetBalance(addr1).Uint64())
	// Original is unaffected by the copy's restore
	assert.Equal(t, uint64(2), s.GetBalance(addr1).Uint64())
}

func TestCodeHash(t *testing.T) {
	s := NewStateStoreImpl()
	assert.Equal(t, common.Hash{}, s.GetCodeHash(addr1))
	s.SetCode(addr1, []byte{0x1, 0x2})
	assert.Equal(t, codeHashFor([]byte{0x1, 0x2}), s.GetCodeHash(addr1))
	assert.Equal(t, 2, s.GetCodeSize(addr1))
}

func TestLedgerCodecRoundTrip(t *testing.T) {
	s := NewStateStoreImpl().(*stateStoreImpl)
	s.SetBalance(addr1, uint256.NewInt(42))
	s.SetNonce(addr1, 9)
	s.SetCode(addr1, []byte{0xde, 0xad})
	s.SetState(addr1, common.HexToHash("0x1"), common.HexToHash("0x2"))
	s.SetBalance(addr2, uint256.NewInt(7))

	blob := encodeLedger(s.flatten())
	decoded, err := decodeLedger(blob)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(decoded))
	assert.Equal(t, uint64(42), decoded[addr1].balance.Uint64())
	assert.Equal(t, uint64(9), decoded[addr1].nonce)
	assert.Equal(t, []byte{0xde, 0xad}, decoded[addr1].code)
	assert.Equal(t, common.HexToHash("0x2"), decoded[addr1].storage[common.HexToHash("0x1")])

	// Deterministic encoding
	assert.Equal(t, blob, encodeLedger(s.flatten()))
}

func TestExportStore(t *testing.T) {
	path, err := os.MkdirTemp("", "crucible-export-test")
	assert.Nil(t, err)
	defer os.RemoveAll(path)

	ctx := context.Background()
	es, err := NewExportStoreImpl(ctx, Opts{
		Path:         path,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	assert.Nil(t, err)
	defer es.Shutdown()

	s := NewStateStoreImpl()
	s.SetBalance(addr1, uint256.NewInt(123))
	s.SetState(addr1, common.HexToHash("0x1"), common.HexToHash("0x2"))

	err = es.Export(ctx, "baseline", s)
	assert.Nil(t, err)

	names, err := es.List(ctx)
	assert.Nil(t, err)
	assert.Equal(t, []string{"baseline"}, names)

	loaded, err := es.Import(ctx, "baseline")
	assert.Nil(t, err)
	assert.Equal(t, uint64(123), loaded.GetBalance(addr1).Uint64())
	assert.Equal(t, common.HexToHash("0x2"), loaded.GetState(addr1, common.HexToHash("0x1")))

	err = es.Delete(ctx, "baseline")
	assert.Nil(t, err)
	_, err = es.Import(ctx, "baseline")
	assert.NotNil(t, err)
}
