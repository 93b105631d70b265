package adapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/logging"
)

const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// TokenContract is an ERC-20 counted 1:1 as ETH (wrapped ETH and liquid staking tokens)
type TokenContract struct {
	Symbol   string
	Address  common.Address
	Decimals int32
}

// DefaultTokens returns the ETH-equivalent tokens tracked on a network
func DefaultTokens(network string) []TokenContract {
	switch network {
	case "ethereum":
		return []TokenContract{
			{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18},
			{Symbol: "stETH", Address: common.HexToAddress("0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84"), Decimals: 18},
			{Symbol: "wstETH", Address: common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0"), Decimals: 18},
			{Symbol: "rETH", Address: common.HexToAddress("0xae78736Cd615f374D3085123A210448E74Fc6393"), Decimals: 18},
			{Symbol: "cbETH", Address: common.HexToAddress("0xBe9895146f7AF43049ca1c1AE358B0541Ea49704"), Decimals: 18},
		}
	case "arbitrum":
		return []TokenContract{
			{Symbol: "WETH", Address: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), Decimals: 18},
		}
	case "optimism", "base":
		return []TokenContract{
			{Symbol: "WETH", Address: common.HexToAddress("0x4200000000000000000000000000000000000006"), Decimals: 18},
		}
	default:
		return nil
	}
}

// NetworkBackend runs calls against one network's RPC endpoints
type NetworkBackend interface {
	Network() string
	WithClient(ctx context.Context, fn func(ChainCaller) error) error
}

// NetworkSource pairs a network backend with the tokens read on it
type NetworkSource struct {
	Backend NetworkBackend
	Tokens  []TokenContract
}

// EthereumBalanceResolver sums native ETH and ETH-equivalent token balances over EVM networks
type EthereumBalanceResolver struct {
	networks []NetworkSource
	timeout  time.Duration
	erc20    abi.ABI
}

// NewEthereumBalanceResolver creates a resolver over the given networks.
// timeout bounds each network lookup.
func NewEthereumBalanceResolver(networks []NetworkSource, timeout time.Duration) (*EthereumBalanceResolver, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 abi: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EthereumBalanceResolver{
		networks: networks,
		timeout:  timeout,
		erc20:    parsed,
	}, nil
}

// ResolveBalance returns the balance summed over every network that answered.
// Networks that fail are logged and skipped; an error is returned only when all fail.
func (r *EthereumBalanceResolver) ResolveBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, NewAdapterError("evm", "ResolveBalance", fmt.Errorf("invalid address %q", address), nil)
	}
	if len(r.networks) == 0 {
		return decimal.Zero, ErrNoNetworks
	}

	owner := common.HexToAddress(address)
	logger := logging.FromContext(ctx).WithField("address", strings.ToLower(address))

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		total     = decimal.Zero
		succeeded int
		errs      []error
	)

	for _, source := range r.networks {
		wg.Add(1)
		go func(source NetworkSource) {
			defer wg.Done()

			nctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			balance, err := r.networkBalance(nctx, source, owner, logger)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.WithField("network", source.Backend.Network()).WithError(err).Warn("network balance lookup failed")
				errs = append(errs, fmt.Errorf("%s: %w", source.Backend.Network(), err))
				return
			}
			total = total.Add(balance)
			succeeded++
		}(source)
	}
	wg.Wait()

	if succeeded == 0 {
		return decimal.Zero, NewAdapterError("evm", "ResolveBalance", fmt.Errorf("%w: %w", ErrNoNetworks, errors.Join(errs...)), nil)
	}
	return total, nil
}

// networkBalance reads the native balance and every tracked token on one network.
// A failed token read is skipped; a failed native read fails the network.
func (r *EthereumBalanceResolver) networkBalance(ctx context.Context, source NetworkSource, owner common.Address, logger *logging.Logger) (decimal.Decimal, error) {
	sum := decimal.Zero

	err := source.Backend.WithClient(ctx, func(client ChainCaller) error {
		wei, err := client.BalanceAt(ctx, owner, nil)
		if err != nil {
			return fmt.Errorf("native balance: %w", err)
		}
		sum = decimal.NewFromBigInt(wei, -18)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	for _, token := range source.Tokens {
		var balance decimal.Decimal
		err := source.Backend.WithClient(ctx, func(client ChainCaller) error {
			var err error
			balance, err = r.tokenBalance(ctx, client, token, owner)
			return err
		})
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"network": source.Backend.Network(),
				"token":   token.Symbol,
			}).WithError(err).Warn("token balance lookup failed")
			continue
		}
		sum = sum.Add(balance)
	}

	return sum, nil
}

func (r *EthereumBalanceResolver) tokenBalance(ctx context.Context, client ChainCaller, token TokenContract, owner common.Address) (decimal.Decimal, error) {
	data, err := r.erc20.Pack("balanceOf", owner)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	to := token.Address
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf %s: %w", token.Symbol, err)
	}

	values, err := r.erc20.Unpack("balanceOf", out)
	if err != nil || len(values) == 0 {
		return decimal.Zero, fmt.Errorf("failed to decode balanceOf %s: %v", token.Symbol, err)
	}
	raw, ok := values[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected balanceOf result type %T", values[0])
	}

	return decimal.NewFromBigInt(raw, -token.Decimals), nil
}
