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
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"
	"github.com/wcgcyx/crucible/config"
	"github.com/wcgcyx/crucible/node"
	"github.com/wcgcyx/crucible/rpc"
	"github.com/wcgcyx/crucible/statestore"
)

func runNode(c *cli.Context) error {
	// Load config
	conf, err := config.NewConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("path") {
		log.Infof("Override path to be %v", c.String("path"))
		conf.Path = c.String("path")
	}
	if c.IsSet("rpc-host") {
		log.Infof("Override rpc-host to be %v", c.String("rpc-host"))
		conf.RPCHost = c.String("rpc-host")
	}
	if c.IsSet("rpc-port") {
		log.Infof("Override rpc-port to be %v", c.String("rpc-port"))
		conf.RPCPort = uint64(c.Int("rpc-port"))
	}
	if c.IsSet("chain-id") {
		log.Infof("Override chain-id to be %v", c.Int64("chain-id"))
		conf.ChainID = c.Int64("chain-id")
	}

	// Create session
	session, err := newSession(conf)
	if err != nil {
		return err
	}

	// Create snapshot export store
	log.Infof("Start snapshot store...")
	snapshots, err := statestore.NewExportStoreImpl(c.Context, statestore.Opts{
		Path:         filepath.Join(conf.Path, "snapshots"),
		ReadTimeout:  conf.DSTimeout,
		WriteTimeout: conf.DSTimeout,
	})
	if err != nil {
		return err
	}
	log.Infof("Snapshot store started.")

	// Create node
	nd, err := node.NewNode(node.Opts{
		CheckFrequency: conf.NodeCheckFrequency,
	}, session, snapshots)
	if err != nil {
		return err
	}

	// Create API server
	log.Infof("Start API Server...")
	apiServer, err := rpc.NewServer(rpc.Opts{
		Host:      conf.RPCHost,
		Port:      conf.RPCPort,
		RPCGasCap: conf.RPCGasCap,
	}, nd)
	if err != nil {
		return err
	}
	log.Infof("Start serving at %v:%v", conf.RPCHost, conf.RPCPort)

	// Start mainloop
	go nd.Mainloop()

	// Configure graceful shutdown.
	cc := make(chan os.Signal, 1)
	signal.Notify(cc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	for {
		// Loop forever, until exit
		<-cc
		break
	}
	log.Infof("Graceful shutdown...")
	apiServer.Shutdown()
	nd.Shutdown()
	return nil
}
