package broadcast

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import "math/big"

const (
	defaultDryRunGas = uint64(30000000)
	defaultGasPrice  = int64(1000000000)
)

// Opts is the options for the broadcast executor.
type Opts struct {
	// Broadcast enables submission. Without it, Commit refuses and
	// nothing leaves the process.
	Broadcast bool

	// GasPrice of submitted transactions.
	GasPrice *big.Int

	// DryRunGas is the gas limit of a dry-run step when the intent does
	// not carry one.
	DryRunGas uint64
}
