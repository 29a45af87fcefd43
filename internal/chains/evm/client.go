package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

var (
	// ErrReverted is returned when a transaction is mined with a failed status
	ErrReverted = errors.New("transaction reverted")
	// ErrNoSigner is returned when a write is attempted on a read-only client
	ErrNoSigner = errors.New("no signing key configured")
)

// ClientConfig configures a JSON-RPC client
type ClientConfig struct {
	RPCURL string
	// ChainID is the expected chain id. Zero accepts whatever the node reports.
	ChainID int64
	// PrivateKey signs transactions. Nil makes the client read-only.
	PrivateKey *ecdsa.PrivateKey
	// RPCRate caps outgoing calls per second. Zero disables pacing.
	RPCRate float64
	Logger  *slog.Logger
}

// Client reads and writes contracts over JSON-RPC
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Dial connects to the node and checks its chain id
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", cfg.RPCURL, err)
	}

	c := &Client{
		eth:     eth,
		key:     cfg.PrivateKey,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logger,
	}
	if cfg.RPCRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPCRate), 1)
	}
	if c.key != nil {
		c.from = crypto.PubkeyToAddress(c.key.PublicKey)
	}

	if err := c.wait(ctx); err != nil {
		eth.Close()
		return nil, err
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("reading chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("chain id mismatch: node reports %s, expected %d", chainID, cfg.ChainID)
	}
	c.chainID = chainID

	logger.Debug("connected to node", "rpc", cfg.RPCURL, "chain_id", chainID, "signer", c.From().Hex())
	return c, nil
}

// Close releases the underlying connection
func (c *Client) Close() {
	c.eth.Close()
}

// ChainID returns the chain id reported by the node
func (c *Client) ChainID() int64 {
	return c.chainID.Int64()
}

// From returns the signer address, or the zero address for read-only clients
func (c *Client) From() common.Address {
	return c.from
}

// CanSign reports whether the client holds a signing key
func (c *Client) CanSign() bool {
	return c.key != nil
}

// Call performs a read-only contract call and returns the decoded outputs
func (c *Client) Call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	bound := bind.NewBoundContract(contract, parsed, c.eth, c.eth, c.eth)
	var out []any
	if err := bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("calling %s on %s: %w", method, contract.Hex(), err)
	}
	return out, nil
}

// Transact signs and sends a contract call, then blocks until it is mined.
// A mined transaction with a failed status returns ErrReverted with the receipt.
func (c *Client) Transact(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) (*types.Receipt, error) {
	if c.key == nil {
		return nil, ErrNoSigner
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("creating transactor: %w", err)
	}
	auth.Context = ctx

	bound := bind.NewBoundContract(contract, parsed, c.eth, c.eth, c.eth)
	tx, err := bound.Transact(auth, method, args...)
	if err != nil {
		return nil, fmt.Errorf("sending %s to %s: %w", method, contract.Hex(), err)
	}
	c.logger.Debug("transaction sent", "method", method, "contract", contract.Hex(), "tx", tx.Hash().Hex())

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%s on %s (tx %s): %w", method, contract.Hex(), tx.Hash().Hex(), ErrReverted)
	}

	c.logger.Debug("transaction mined", "tx", tx.Hash().Hex(), "block", receipt.BlockNumber, "gas_used", receipt.GasUsed)
	return receipt, nil
}

// CodeAt returns the runtime code deployed at addr on the latest block
func (c *Client) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	code, err := c.eth.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("reading code at %s: %w", addr.Hex(), err)
	}
	return code, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rpc pacing: %w", err)
	}
	return nil
}

// ParseKey parses a hex private key with or without the 0x prefix
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if len(hexKey) >= 2 && (hexKey[:2] == "0x" || hexKey[:2] == "0X") {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}
