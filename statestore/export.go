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
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v2/options"
	"github.com/ipfs/go-datastore/query"
	badgerds "github.com/ipfs/go-ds-badger2"
)

// exportStoreImpl implements ExportStore backed by a badger datastore.
type exportStoreImpl struct {
	opts Opts
	ds   *badgerds.Datastore
}

// NewExportStoreImpl creates a new ExportStore.
func NewExportStoreImpl(ctx context.Context, opts Opts) (ExportStore, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("empty path provided")
	}
	dsopts := badgerds.DefaultOptions
	dsopts.SyncWrites = false
	dsopts.Truncate = true
	dsopts.Options.ValueLogLoadingMode = options.MemoryMap
	ds, err := badgerds.NewDatastore(opts.Path, &dsopts)
	if err != nil {
		return nil, err
	}
	return &exportStoreImpl{
		opts: opts,
		ds:   ds,
	}, nil
}

// Export persists the flattened ledger of the given state under name.
func (e *exportStoreImpl) Export(ctx context.Context, name string, s StateStore) error {
	impl, ok := s.(*stateStoreImpl)
	if !ok {
		return fmt.Errorf("unsupported state store implementation")
	}
	sctx, cancel := context.WithTimeout(ctx, e.opts.WriteTimeout)
	defer cancel()

	blob := encodeLedger(impl.flatten())
	err := e.ds.Put(sctx, ledgerKey(name), blob)
	if err != nil {
		return err
	}
	err = e.ds.Sync(sctx, ledgerKey(name))
	if err != nil {
		return err
	}
	log.Infof("Exported snapshot %v (%v bytes)", name, len(blob))
	return nil
}

// Import loads a previously exported ledger into a fresh state store.
func (e *exportStoreImpl) Import(ctx context.Context, name string) (StateStore, error) {
	sctx, cancel := context.WithTimeout(ctx, e.opts.ReadTimeout)
	defer cancel()

	blob, err := e.ds.Get(sctx, ledgerKey(name))
	if err != nil {
		return nil, err
	}
	accts, err := decodeLedger(blob)
	if err != nil {
		return nil, err
	}
	res := NewStateStoreImpl().(*stateStoreImpl)
	for addr, obj := range accts {
		res.head.accounts[addr] = obj
	}
	return res, nil
}

// List lists the names of all exported snapshots.
func (e *exportStoreImpl) List(ctx context.Context) ([]string, error) {
	sctx, cancel := context.WithTimeout(ctx, e.opts.ReadTimeout)
	defer cancel()

	tempRes, err := e.ds.Query(sctx, query.Query{
		Prefix:   ledgerKeyPrefix,
		KeysOnly: true,
	})
	if err != nil {
		return nil, err
	}
	defer tempRes.Close()
	res := make([]string, 0)
	for {
		entry, ok := tempRes.NextSync()
		if !ok {
			break
		}
		if entry.Error != nil {
			return nil, entry.Error
		}
		res = append(res, strings.TrimPrefix(entry.Key, ledgerKeyPrefix))
	}
	return res, nil
}

// Delete removes an exported snapshot.
func (e *exportStoreImpl) Delete(ctx context.Context, name string) error {
	sctx, cancel := context.WithTimeout(ctx, e.opts.WriteTimeout)
	defer cancel()

	return e.ds.Delete(sctx, ledgerKey(name))
}

// Shutdown safely shuts the export store down.
func (e *exportStoreImpl) Shutdown() {
	log.Infof("Close export store...")
	err := e.ds.Close()
	if err != nil {
		log.Errorf("Fail to close export store: %v", err.Error())
		return
	}
	log.Infof("Export store closed successfully.")
}
