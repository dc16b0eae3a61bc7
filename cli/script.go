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
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"
	"github.com/wcgcyx/crucible/broadcast"
	"github.com/wcgcyx/crucible/config"
	itypes "github.com/wcgcyx/crucible/types"
)

func runScript(c *cli.Context) error {
	// Load config
	conf, err := config.NewConfig(c.String("config"))
	if err != nil {
		return err
	}
	initcode, contractABI, err := loadArtifact(c.Path("bin"), c.Path("abi"))
	if err != nil {
		return err
	}
	sig := c.String("sig")
	entryName := sig
	if idx := strings.Index(sig, "("); idx > 0 {
		entryName = sig[:idx]
	}
	entry, ok := contractABI.Methods[entryName]
	if !ok {
		return fmt.Errorf("entry point %v not found in abi", entryName)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.String("key"), "0x"))
	if err != nil {
		return fmt.Errorf("fail to parse signer key: %v", err.Error())
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)

	// Local session for the dry run, funded so value moves succeed
	session, err := newSession(conf)
	if err != nil {
		return err
	}
	defer session.Shutdown()
	session.State().SetBalance(sender, uint256.MustFromHex("0xffffffffffffffffffffffffffffffff"))

	// The script becomes two intents: deploy, then the entry point call
	target := crypto.CreateAddress(sender, session.State().GetNonce(sender))
	intents := []itypes.TransactionIntent{
		{Sender: sender, Target: nil, Data: initcode},
		{Sender: sender, Target: &target, Data: entry.ID},
	}

	var submitter broadcast.Submitter
	if c.Bool("broadcast") {
		client, err := ethclient.Dial(c.String("rpc"))
		if err != nil {
			return err
		}
		defer client.Close()
		submitter = client
	}
	e := broadcast.NewExecutorImpl(session, submitter, broadcast.Opts{
		Broadcast: c.Bool("broadcast"),
		DryRunGas: conf.GasLimit,
	})

	plan, err := e.Plan(c.Context, intents)
	if err != nil {
		return err
	}
	for i, res := range plan.Results {
		fmt.Printf("step %v: success=%v gas=%v\n", i, res.Success, res.GasUsed)
		if res.Reverted() {
			fmt.Printf("step %v reverted: %v\n", i, res.RevertReason())
		}
	}
	if !plan.Succeeded() {
		return fmt.Errorf("dry run failed, nothing to broadcast")
	}
	if !c.Bool("broadcast") {
		fmt.Println("Dry run complete. Re-run with --broadcast to submit.")
		return nil
	}

	txs, err := e.Commit(c.Context, plan, key)
	for _, tx := range txs {
		fmt.Printf("submitted %v (nonce %v)\n", tx.Hash(), tx.Nonce())
	}
	return err
}
