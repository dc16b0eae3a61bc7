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

// Gas schedule. A compact, geth-shaped table: fixed per-opcode costs plus
// state-dependent SSTORE, quadratic memory expansion and per-byte copy and
// log costs. Refund counters are deliberately not modelled, the engine
// targets close-enough emulation rather than byte-identical metering.
const (
	GasQuickStep   uint64 = 2
	GasFastestStep uint64 = 3
	GasFastStep    uint64 = 5
	GasMidStep     uint64 = 8
	GasSlowStep    uint64 = 10
	GasExtStep     uint64 = 20

	GasJumpDest uint64 = 1

	GasKeccak256     uint64 = 30
	GasKeccak256Word uint64 = 6

	GasCopyWord uint64 = 3

	GasAccountAccess uint64 = 100
	GasSload         uint64 = 100
	GasSstoreSet     uint64 = 20000
	GasSstoreReset   uint64 = 5000
	GasSstoreNoop    uint64 = 100

	GasLog      uint64 = 375
	GasLogTopic uint64 = 375
	GasLogByte  uint64 = 8

	GasCallBase      uint64 = 100
	GasCallValue     uint64 = 9000
	GasCallStipend   uint64 = 2300
	GasCreate        uint64 = 32000
	GasSelfdestruct  uint64 = 5000
	GasExpBase       uint64 = 10
	GasExpByte       uint64 = 50
	GasCodeDeposit   uint64 = 200
	GasTxIntrinsic   uint64 = 21000
	GasTxDataZero    uint64 = 4
	GasTxDataNonZero uint64 = 16
)

// maxCallDepth bounds the call frame tree.
const maxCallDepth = 1024

// opInfo carries the fixed gas cost and stack bounds per opcode,
// defined marks valid opcodes.
type opInfo struct {
	constGas uint64
	minStack int
	maxStack int
	defined  bool
}

var opTable [256]opInfo

func init() {
	def := func(op OpCode, gas uint64, pops int, pushes int) {
		opTable[op] = opInfo{
			constGas: gas,
			minStack: pops,
			maxStack: stackLimit + pops - pushes,
			defined:  true,
		}
	}
	def(STOP, 0, 0, 0)
	for _, op := range []OpCode{ADD, SUB, LT, GT, SLT, SGT, EQ, AND, OR, XOR, BYTE, SHL, SHR, SAR} {
		def(op, GasFastestStep, 2, 1)
	}
	for _, op := range []OpCode{NOT, ISZERO, CALLDATALOAD} {
		def(op, GasFastestStep, 1, 1)
	}
	def(PUSH0, GasFastestStep, 0, 1)
	for _, op := range []OpCode{MUL, DIV, SDIV, MOD, SMOD, SIGNEXTEND} {
		def(op, GasFastStep, 2, 1)
	}
	for _, op := range []OpCode{ADDMOD, MULMOD} {
		def(op, GasMidStep, 3, 1)
	}
	def(JUMP, GasMidStep, 1, 0)
	def(JUMPI, GasSlowStep, 2, 0)
	def(EXP, GasExpBase, 2, 1)
	def(KECCAK256, GasKeccak256, 2, 1)
	for _, op := range []OpCode{ADDRESS, ORIGIN, CALLER, CALLVALUE, CALLDATASIZE, CODESIZE, GASPRICE, RETURNDATASIZE, COINBASE, TIMESTAMP, NUMBER, PREVRANDAO, GASLIMIT, CHAINID, BASEFEE, PC, MSIZE, GAS} {
		def(op, GasQuickStep, 0, 1)
	}
	def(SELFBALANCE, GasFastStep, 0, 1)
	for _, op := range []OpCode{BALANCE, EXTCODESIZE, EXTCODEHASH, BLOCKHASH} {
		def(op, GasAccountAccess, 1, 1)
	}
	def(POP, GasQuickStep, 1, 0)
	for _, op := range []OpCode{CALLDATACOPY, CODECOPY, RETURNDATACOPY} {
		def(op, GasFastestStep, 3, 0)
	}
	def(EXTCODECOPY, GasAccountAccess, 4, 0)
	def(MLOAD, GasFastestStep, 1, 1)
	def(MSTORE, GasFastestStep, 2, 0)
	def(MSTORE8, GasFastestStep, 2, 0)
	def(SLOAD, GasSload, 1, 1)
	def(SSTORE, 0, 2, 0) // fully dynamic
	def(JUMPDEST, GasJumpDest, 0, 0)
	for op := PUSH1; op <= PUSH32; op++ {
		def(op, GasFastestStep, 0, 1)
	}
	for op := DUP1; op <= DUP16; op++ {
		n := int(op - DUP1 + 1)
		def(op, GasFastestStep, n, n+1)
	}
	for op := SWAP1; op <= SWAP16; op++ {
		n := int(op - SWAP1 + 2)
		def(op, GasFastestStep, n, n)
	}
	for i := 0; i < 5; i++ {
		def(LOG0+OpCode(i), GasLog+uint64(i)*GasLogTopic, i+2, 0)
	}
	def(CREATE, GasCreate, 3, 1)
	def(CALL, GasCallBase, 7, 1)
	def(DELEGATECALL, GasCallBase, 6, 1)
	def(STATICCALL, GasCallBase, 6, 1)
	def(RETURN, 0, 2, 0)
	def(REVERT, 0, 2, 0)
	def(SELFDESTRUCT, GasSelfdestruct, 1, 0)
}

// memoryGasCost returns the total cost of memory sized to the given length.
func memoryGasCost(size uint64) uint64 {
	words := (size + 31) / 32
	return words*GasFastestStep + words*words/512
}

// toWordSize rounds a byte length up to 256-bit words.
func toWordSize(size uint64) uint64 {
	return (size + 31) / 32
}

// IntrinsicGas computes the base cost of a transaction carrying the given data.
func IntrinsicGas(data []byte) uint64 {
	gas := GasTxIntrinsic
	for _, b := range data {
		if b == 0 {
			gas += GasTxDataZero
		} else {
			gas += GasTxDataNonZero
		}
	}
	return gas
}
