package rpc

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
	"fmt"
	"net/http"
	"reflect"
	"time"
	"unicode"

	"github.com/filecoin-project/go-jsonrpc"
	logging "github.com/ipfs/go-log"
	"github.com/wcgcyx/crucible/node"
)

// Logger
var log = logging.Logger("rpc-server")

// Server is the HTTP JSON-RPC endpoint of a running node, serving the
// eth namespace for standard tooling and the admin namespace for the
// cheat and snapshot surface.
type Server struct {
	s *http.Server
}

// NewServer starts serving the given node's RPC at opts.Host:opts.Port.
func NewServer(opts Opts, node *node.Node) (*Server, error) {
	log.Infof("Start RPC server at %v:%v...", opts.Host, opts.Port)
	rpc := jsonrpc.NewServer()
	registerAndSetAlias(rpc, "eth", &ethAPIHandler{opts: opts, node: node})
	registerAndSetAlias(rpc, "admin", &adminAPIHandler{opts: opts, node: node})
	s := &http.Server{
		Addr:           fmt.Sprintf("%v:%v", opts.Host, opts.Port),
		Handler:        rpc,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.ListenAndServe()
	}()
	// surface a failed bind instead of returning a dead server
	tc := time.After(3 * time.Second)
	select {
	case <-tc:
		log.Infof("RPC server started.")
		return &Server{s: s}, nil
	case err := <-errChan:
		return nil, err
	}
}

// registerAndSetAlias registers handler under namespace and aliases every
// method as namespace_methodName, the form eth tooling sends.
func registerAndSetAlias(rpc *jsonrpc.RPCServer, namespace string, handler interface{}) {
	rpc.Register(namespace, handler)
	val := reflect.ValueOf(handler)
	lowerFirstLetter := func(s string) string {
		if len(s) == 0 {
			return s
		}
		r := []rune(s)
		r[0] = unicode.ToLower(r[0])
		return string(r)
	}
	for i := 0; i < val.NumMethod(); i++ {
		method := val.Type().Method(i)
		rpc.AliasMethod(namespace+"_"+lowerFirstLetter(method.Name), namespace+"."+method.Name)
	}
}

// Shutdown gracefully stops serving.
func (s *Server) Shutdown() {
	log.Infof("Close RPC server...")
	err := s.s.Shutdown(context.Background())
	if err != nil {
		log.Errorf("Fail to close RPC server: %v", err.Error())
		return
	}
	log.Infof("RPC server closed successfully.")
}
