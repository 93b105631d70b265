package adapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/eth-reserves/internal/logging"
)

// ChainCaller is the subset of ethclient used to read balances
type ChainCaller interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type chainClient interface {
	ChainCaller
	Close()
}

// DialFunc connects to an RPC endpoint
type DialFunc func(url string) (chainClient, error)

func dialEthclient(url string) (chainClient, error) {
	return ethclient.Dial(url)
}

// RPCPool manages multiple RPC endpoints for one network with failover on rate limiting.
// It sticks to the current endpoint until it is rate limited, then moves to the next.
type RPCPool struct {
	network      string
	endpoints    []string
	clients      []chainClient
	currentIndex int
	mu           sync.RWMutex
	cooldowns    map[int]time.Time
	cooldownTime time.Duration
	dial         DialFunc
}

// RPCPoolConfig holds configuration for creating an RPC pool
type RPCPoolConfig struct {
	Network   string
	Endpoints []string
	// CooldownTime is how long a rate-limited endpoint is skipped. Default: 60 seconds
	CooldownTime time.Duration
	// Dial overrides the client constructor
	Dial DialFunc
}

// NewRPCPool creates a new RPC pool. Only the first endpoint is dialed eagerly.
func NewRPCPool(cfg *RPCPoolConfig) (*RPCPool, error) {
	if cfg == nil || len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}

	cooldownTime := cfg.CooldownTime
	if cooldownTime == 0 {
		cooldownTime = 60 * time.Second
	}
	dial := cfg.Dial
	if dial == nil {
		dial = dialEthclient
	}

	pool := &RPCPool{
		network:      cfg.Network,
		endpoints:    cfg.Endpoints,
		clients:      make([]chainClient, len(cfg.Endpoints)),
		cooldowns:    make(map[int]time.Time),
		cooldownTime: cooldownTime,
		dial:         dial,
	}

	client, err := dial(cfg.Endpoints[0])
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary RPC endpoint for %s: %w", cfg.Network, err)
	}
	pool.clients[0] = client

	pool.logger().WithField("endpoints", len(cfg.Endpoints)).Debug("RPC pool initialized")
	return pool, nil
}

func (p *RPCPool) logger() *logging.Logger {
	return logging.WithFields(map[string]interface{}{
		"component": "rpc_pool",
		"network":   p.network,
	})
}

// Network returns the network name served by the pool
func (p *RPCPool) Network() string {
	return p.network
}

func (p *RPCPool) current() (ChainCaller, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clients[p.currentIndex], p.currentIndex
}

// WithClient runs fn against the current endpoint. When fn fails with a rate
// limit error the pool fails over and retries, at most once per endpoint.
func (p *RPCPool) WithClient(ctx context.Context, fn func(ChainCaller) error) error {
	var lastErr error
	for attempt := 0; attempt < len(p.endpoints); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		client, _ := p.current()
		lastErr = fn(client)
		if lastErr == nil || !IsRateLimitError(lastErr) {
			return lastErr
		}

		if err := p.OnRateLimited(); err != nil {
			return fmt.Errorf("%w: %v", ErrProviderRateLimit, lastErr)
		}
	}
	return lastErr
}

// OnRateLimited marks the current endpoint as cooling down and switches to the
// next available one. It returns an error when every endpoint is cooling down.
func (p *RPCPool) OnRateLimited() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cooldowns[p.currentIndex] = time.Now()
	startIndex := p.currentIndex

	for i := 0; i < len(p.endpoints); i++ {
		nextIndex := (startIndex + 1 + i) % len(p.endpoints)

		if since, exists := p.cooldowns[nextIndex]; exists {
			if time.Since(since) < p.cooldownTime {
				continue
			}
			delete(p.cooldowns, nextIndex)
		}

		if err := p.switchToEndpoint(nextIndex); err != nil {
			p.logger().WithError(err).Warnf("failed to switch to endpoint %d", nextIndex)
			continue
		}

		p.logger().Infof("switched from endpoint %d to endpoint %d", startIndex, nextIndex)
		return nil
	}

	return fmt.Errorf("all %d RPC endpoints for %s are rate limited", len(p.endpoints), p.network)
}

// switchToEndpoint must be called with the lock held
func (p *RPCPool) switchToEndpoint(index int) error {
	if p.clients[index] == nil {
		client, err := p.dial(p.endpoints[index])
		if err != nil {
			return fmt.Errorf("failed to connect to endpoint %d: %w", index, err)
		}
		p.clients[index] = client
	}
	p.currentIndex = index
	return nil
}

// TryResetToPrimary switches back to endpoint 0 once its cooldown has expired
func (p *RPCPool) TryResetToPrimary() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.currentIndex == 0 {
		return true
	}

	if since, exists := p.cooldowns[0]; exists {
		if time.Since(since) < p.cooldownTime {
			return false
		}
		delete(p.cooldowns, 0)
	}

	if err := p.switchToEndpoint(0); err != nil {
		p.logger().WithError(err).Warn("failed to reset to primary endpoint")
		return false
	}
	return true
}

// CurrentIndex returns the active endpoint index
func (p *RPCPool) CurrentIndex() int {
	_, idx := p.current()
	return idx
}

// IsRateLimitError checks if an error indicates rate limiting (429)
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "limit exceeded") ||
		strings.Contains(errStr, "throttl")
}

// Close closes all client connections
func (p *RPCPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, client := range p.clients {
		if client != nil {
			client.Close()
			p.clients[i] = nil
		}
	}
}
