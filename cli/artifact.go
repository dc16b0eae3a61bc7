package cli

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
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/wcgcyx/crucible/backend"
	"github.com/wcgcyx/crucible/config"
	"github.com/wcgcyx/crucible/statestore"
	itypes "github.com/wcgcyx/crucible/types"
)

// loadArtifact reads a compiled contract: creation bytecode as a hex blob
// and the ABI description as json. Both come from the external compiler.
func loadArtifact(binPath string, abiPath string) ([]byte, abi.ABI, error) {
	raw, err := os.ReadFile(binPath)
	if err != nil {
		return nil, abi.ABI{}, err
	}
	initcode := common.FromHex(strings.TrimSpace(string(raw)))
	if len(initcode) == 0 {
		return nil, abi.ABI{}, fmt.Errorf("empty bytecode in %v", binPath)
	}
	abiFile, err := os.Open(abiPath)
	if err != nil {
		return nil, abi.ABI{}, err
	}
	defer abiFile.Close()
	parsed, err := abi.JSON(abiFile)
	if err != nil {
		return nil, abi.ABI{}, err
	}
	return initcode, parsed, nil
}

// newSession creates a fresh in-memory session from configuration.
func newSession(conf config.Config) (backend.Backend, error) {
	store := statestore.NewStateStoreImpl()
	chain := &itypes.ChainContext{
		ChainID:     big.NewInt(conf.ChainID),
		Timestamp:   1,
		BlockNumber: 1,
		GasLimit:    conf.GasLimit,
	}
	return backend.NewBackendImpl(store, chain)
}
