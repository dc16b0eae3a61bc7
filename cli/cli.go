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

	"github.com/urfave/cli/v2"
	"github.com/wcgcyx/crucible/version"
)

// NewCLI creates a CLI app.
func NewCLI() *cli.App {
	app := &cli.App{
		Name:      "crucible",
		HelpName:  "crucible",
		Usage:     "A smart contract execution and fuzz testing engine",
		UsageText: "crucible [global options] command [arguments...]",
		Version:   version.Version,
		Description: "\n\t Crucible runs compiled contract test code against a local\n" +
			"\t simulated chain: it discovers test entry points, fuzzes unbound\n" +
			"\t parameters, shrinks failures, and can replay planned call\n" +
			"\t sequences as signed transactions against a live endpoint.\n",
		Authors: []*cli.Author{
			{
				Name:  "wcgcyx",
				Email: "wcgcyx@gmail.com",
			},
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:        "test",
			Usage:       "run a compiled test contract",
			Description: "Deploy the test contract locally, run its fixture and every test entry point",
			ArgsUsage:   " ",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "config",
					Value: "",
					Usage: "specify config file",
				},
				&cli.PathFlag{
					Name:     "bin",
					Usage:    "specify the compiled creation bytecode file (hex)",
					Required: true,
				},
				&cli.PathFlag{
					Name:     "abi",
					Usage:    "specify the contract ABI file (json)",
					Required: true,
				},
				&cli.IntFlag{
					Name:  "fuzz-runs",
					Usage: "specify the number of cases per fuzz test",
				},
				&cli.Int64Flag{
					Name:  "seed",
					Usage: "specify the fuzz seed for a reproducible run",
				},
				&cli.IntFlag{
					Name:  "workers",
					Usage: "specify the number of parallel test workers",
				},
			},
			Action: func(ctx *cli.Context) error {
				return runTest(ctx)
			},
		},
		{
			Name:        "script",
			Usage:       "plan and optionally broadcast a call sequence",
			Description: "Dry-run a deployment script locally, then sign and submit it when --broadcast is set",
			ArgsUsage:   " ",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "config",
					Value: "",
					Usage: "specify config file",
				},
				&cli.PathFlag{
					Name:     "bin",
					Usage:    "specify the compiled creation bytecode file (hex)",
					Required: true,
				},
				&cli.PathFlag{
					Name:     "abi",
					Usage:    "specify the contract ABI file (json)",
					Required: true,
				},
				&cli.StringFlag{
					Name:  "sig",
					Value: "run()",
					Usage: "specify the script entry point signature",
				},
				&cli.StringFlag{
					Name:  "rpc",
					Value: "http://localhost:8545",
					Usage: "specify the live endpoint url",
				},
				&cli.StringFlag{
					Name:  "key",
					Usage: "specify the signer private key (hex)",
				},
				&cli.BoolFlag{
					Name:  "broadcast",
					Usage: "submit the planned transactions",
				},
			},
			Action: func(ctx *cli.Context) error {
				return runScript(ctx)
			},
		},
		{
			Name:        "start",
			Usage:       "start the crucible node",
			Description: "Start a local simulated chain answering eth and admin RPC",
			ArgsUsage:   " ",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "config",
					Value: "",
					Usage: "specify config file",
				},
				&cli.PathFlag{
					Name:  "path",
					Value: "",
					Usage: "specify datastore path",
				},
				&cli.StringFlag{
					Name:  "rpc-host",
					Value: "localhost",
					Usage: "specify rpc service host",
				},
				&cli.IntFlag{
					Name:  "rpc-port",
					Value: 9545,
					Usage: "specify rpc service port",
				},
				&cli.Int64Flag{
					Name:  "chain-id",
					Value: 31337,
					Usage: "specify the simulated chain id",
				},
			},
			Action: func(ctx *cli.Context) error {
				return runNode(ctx)
			},
		},
		{
			Name:        "version",
			Usage:       "get version",
			Description: "Get the version",
			ArgsUsage:   " ",
			Action: func(c *cli.Context) error {
				fmt.Println("Version: ", version.Version)
				return nil
			},
		},
	}
	return app
}
