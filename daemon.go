package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mobilecoinofficial/full-service-sub000/balance"
	"github.com/mobilecoinofficial/full-service-sub000/build"
	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/feeschedule"
	"github.com/mobilecoinofficial/full-service-sub000/giftcode"
	"github.com/mobilecoinofficial/full-service-sub000/keyimage"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	"github.com/mobilecoinofficial/full-service-sub000/metrics"
	"github.com/mobilecoinofficial/full-service-sub000/peer"
	"github.com/mobilecoinofficial/full-service-sub000/ring"
	"github.com/mobilecoinofficial/full-service-sub000/rpc"
	"github.com/mobilecoinofficial/full-service-sub000/scanner"
	"github.com/mobilecoinofficial/full-service-sub000/selector"
	"github.com/mobilecoinofficial/full-service-sub000/submission"
	"github.com/mobilecoinofficial/full-service-sub000/sync"
	"github.com/mobilecoinofficial/full-service-sub000/txbuilder"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
)

// walletMemoryDSN is the sqlite DSN walletd opens when -wallet-db is left
// empty, the §6 "view-only in-memory mode" for a node with no spend
// authority.
const walletMemoryDSN = ":memory:"

const (
	scanInterval            = 5 * time.Second
	peerTimeout             = 10 * time.Second
	peerQuorum              = 1
	maxInputsPerTransaction = 16
)

// daemon owns every long-lived collaborator walletd wires together, the
// same single-struct-of-subsystems shape the teacher's server.go builds
// around its peer-to-peer stack.
type daemon struct {
	cfg *config

	walletDB  *walletdb.DB
	ledger    *ledger.Store
	keyImages *keyimage.Store

	scanMgr *scanner.Manager
	syncer  *sync.Syncer
	server  *rpc.Server

	metrics *metrics.Registry
	logRot  *build.RotatingLogWriter
}

func newDaemon(cfg *config, logRot *build.RotatingLogWriter) (*daemon, error) {
	ledgerStore, err := ledger.Open(cfg.LedgerDB)
	if err != nil {
		return nil, fmt.Errorf("opening ledger store: %w", err)
	}

	keyImageStore, err := keyimage.Open(cfg.LedgerDB+".keyimages", ledgerStore)
	if err != nil {
		return nil, fmt.Errorf("opening key image store: %w", err)
	}

	readOnly := cfg.WalletDB == ""
	dsn := cfg.WalletDB
	if readOnly {
		dsn = walletMemoryDSN
	}
	walletDB, err := walletdb.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("opening wallet db: %w", err)
	}

	reg := metrics.New()

	localTip := func() (uint64, error) { return ledgerStore.NumBlocks() }

	balances := balance.New(walletDB, maxInputsPerTransaction)
	sel := selector.New(walletDB)
	sampler := ring.New(ledgerStore, keyImageStore)
	fees := feeschedule.New()
	scan := scanner.New(walletDB, ledgerStore)
	scanMgr := scanner.NewManager(scan, walletDB, cfg.MaxScanWorkers, scanInterval)

	builder := txbuilder.New(walletDB, sel, sampler, fees, ledgerStore, localTip)

	peerClients := make([]peer.Client, 0, len(cfg.Peers))
	for _, addr := range cfg.Peers {
		peerClients = append(peerClients, peer.NewHTTPClient(addr))
	}
	var primaryPeer peer.Client
	if len(peerClients) > 0 {
		primaryPeer = peerClients[0]
	}
	quorum := peer.NewQuorumClient(peerClients, peerQuorum, peerTimeout, crypto.Hash256)

	submitMgr := submission.New(walletDB, primaryPeer, localTip)
	giftCodes := giftcode.New(walletDB, builder, submitMgr)

	var syncer *sync.Syncer
	if !cfg.Offline {
		syncer = sync.New(sync.Config{
			BlockStore:    ledgerStore,
			KeyImageStore: keyImageStore,
			Archive:       peer.NewHTTPArchiveFetcher(cfg.TxSourceURLs),
			Peer:          primaryPeer,
			Quorum:        quorum,
			FeeSchedule:   fees,
		})
	}

	disp := &rpc.Dispatcher{
		DB:         walletDB,
		Ledger:     ledgerStore,
		KeyImages:  keyImageStore,
		Balances:   balances,
		Scanner:    scan,
		Builder:    builder,
		Submission: submitMgr,
		GiftCodes:  giftCodes,
		Fees:       fees,
		Peer:       primaryPeer,
		LocalTip:   localTip,
		ReadOnly:   readOnly,
	}

	var rootKey []byte
	if cfg.MacaroonRootKeyPath != "" {
		rootKey, err = rpc.LoadOrCreateRootKey(cfg.MacaroonRootKeyPath)
		if err != nil {
			return nil, fmt.Errorf("loading macaroon root key: %w", err)
		}
	}
	server := rpc.NewServer(disp, reg, rootKey)

	return &daemon{
		cfg:       cfg,
		walletDB:  walletDB,
		ledger:    ledgerStore,
		keyImages: keyImageStore,
		scanMgr:   scanMgr,
		syncer:    syncer,
		server:    server,
		metrics:   reg,
		logRot:    logRot,
	}, nil
}

// Start launches the background syncer and scan manager; the HTTP server
// is started separately by main so it can own the net.Listener lifecycle.
func (d *daemon) Start() {
	d.scanMgr.Start()
	if d.syncer != nil {
		d.syncer.Start()
	}
}

// Stop requests cooperative shutdown of every background loop and closes
// the underlying stores, in reverse dependency order.
func (d *daemon) Stop() {
	if d.syncer != nil {
		d.syncer.Stop()
		d.syncer.Wait()
	}
	d.scanMgr.Stop()
	d.scanMgr.Wait()
	d.server.Close()

	if err := d.keyImages.Close(); err != nil {
		log.Errorf("closing key image store: %v", err)
	}
	if err := d.ledger.Close(); err != nil {
		log.Errorf("closing ledger store: %v", err)
	}
	if err := d.walletDB.Close(); err != nil {
		log.Errorf("closing wallet db: %v", err)
	}
}

func (d *daemon) runSyncOnce(ctx context.Context) error {
	if d.syncer == nil {
		return nil
	}
	return d.syncer.RunOnce(ctx)
}
