package db

import (
	"context"
	"errors"
	"sync"
	"time"

	"streamloader/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrManagerClosed is returned by Ping once Close has been called.
var ErrManagerClosed = errors.New("postgres manager closed")

const healthCheckInterval = 30 * time.Second

// Manager owns the pgx pool behind the postgres sink and watches its health
// until closed.
type Manager struct {
	pool   *pgxpool.Pool
	logger *zap.SugaredLogger

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewManager(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*Manager, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DBURL)
	if err != nil {
		return nil, err
	}

	// simple protocol works behind transaction-mode poolers
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	tlsCfg, err := cfg.CreatePostgresTLSConfig()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		poolCfg.ConnConfig.TLSConfig = tlsCfg
	}
	// one batch in flight per cycle
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		pool:   pool,
		logger: logger,
		closed: make(chan struct{}),
	}
	m.wg.Add(1)
	go m.watch(ctx, healthCheckInterval)
	return m, nil
}

func (m *Manager) Pool() *pgxpool.Pool { return m.pool }

func (m *Manager) Ping(ctx context.Context) error {
	if m.isClosed() {
		return ErrManagerClosed
	}
	return m.pool.Ping(ctx)
}

// Close stops the health watcher and closes the pool. Safe to call twice.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.closed)
		m.wg.Wait()
		m.pool.Close()
		m.logger.Info("postgres pool closed")
	})
}

func (m *Manager) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func (m *Manager) watch(ctx context.Context, every time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var h health
	for {
		select {
		case <-m.closed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := m.pool.Ping(ctx)
			switch h.record(err) {
			case transitionDown:
				m.logger.Errorw("postgres unreachable", "error", err)
			case transitionUp:
				m.logger.Infow("postgres reachable again", "failedPings", h.lastOutage)
			}
		}
	}
}

type transition int

const (
	transitionNone transition = iota
	transitionDown
	transitionUp
)

// health tracks consecutive ping failures so only state changes get logged.
type health struct {
	failures   int
	lastOutage int
}

func (h *health) record(err error) transition {
	if err != nil {
		h.failures++
		if h.failures == 1 {
			return transitionDown
		}
		return transitionNone
	}
	if h.failures > 0 {
		h.lastOutage = h.failures
		h.failures = 0
		return transitionUp
	}
	return transitionNone
}
