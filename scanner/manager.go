package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
)

// Manager cooperatively schedules ScanAccount across every account sharing
// a bounded worker pool, so one account's scan cannot block another's
// beyond its own batch (§4.E "Scheduling", §5 bounded worker pool for
// per-account scan tasks).
type Manager struct {
	scanner  *Scanner
	db       *walletdb.DB
	sem      chan struct{}
	interval time.Duration

	mu     sync.Mutex
	cancel func()
	wg     sync.WaitGroup
}

// NewManager builds a Manager with maxWorkers concurrent account scans,
// polling the account list every interval.
func NewManager(scanner *Scanner, db *walletdb.DB, maxWorkers int, interval time.Duration) *Manager {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if interval == 0 {
		interval = 5 * time.Second
	}
	return &Manager{
		scanner:  scanner,
		db:       db,
		sem:      make(chan struct{}, maxWorkers),
		interval: interval,
	}
}

// Start launches the manager's background loop. Call Stop to request
// cooperative shutdown and Wait to block until every in-flight scan drains.
func (m *Manager) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()
}

// Stop requests cooperative shutdown of the background loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()
}

// Wait blocks until the background loop and every in-flight account scan
// have fully drained.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) run(ctx context.Context) {
	for {
		m.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.interval):
		}
	}
}

// RunOnce fans a scan attempt out to every account, blocking until all
// scans started this round have completed. A per-account error is logged
// and does not stop the others.
func (m *Manager) RunOnce(ctx context.Context) {
	accounts, err := m.db.ListAccounts(ctx)
	if err != nil {
		log.Errorf("scanner: failed listing accounts: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, acct := range accounts {
		acct := acct

		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case m.sem <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-m.sem }()

			if err := m.scanner.ScanAccount(ctx, acct.ID); err != nil {
				log.Errorf("scanner: account %x: scan failed: %v", acct.ID, err)
			}
		}()
	}
	wg.Wait()
}
