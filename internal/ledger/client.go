// Package ledger mirrors order details onto an EVM contract exposing
// createOrderDetail(string id, string productId, uint256 quantity, uint256 priceEach).
package ledger

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"math/big"
	"strings"
	"sync"
	"time"
)

const MethodCreateOrderDetail = "createOrderDetail"

// DefaultABI is used when no ABI is configured.
const DefaultABI = `[{"type":"function","name":"createOrderDetail","stateMutability":"nonpayable","outputs":[],
"inputs":[{"name":"id","type":"string"},{"name":"productId","type":"string"},
{"name":"quantity","type":"uint256"},{"name":"priceEach","type":"uint256"}]}]`

// Record is the ledger mirror of an order detail. Prices travel as integer cents.
type Record struct {
	ID             string
	ProductID      string
	Quantity       int64
	PriceEachCents int64
}

type Receipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	Confirmed   bool   `json:"confirmed"`
}

// Submitter is the one ledger operation the order flow needs.
type Submitter interface {
	SubmitOrderDetail(ctx context.Context, rec Record) (Receipt, error)
}

type Config struct {
	RPCURL          string
	ContractAddress string
	ABI             string
	PrivateKey      string
	ChainID         int64
	GasLimit        uint64
	ConfirmTimeout  time.Duration
}

type chain interface {
	bind.DeployBackend
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

type transactor interface {
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

type Client struct {
	chain          chain
	contract       transactor
	auth           *bind.TransactOpts
	from           common.Address
	confirmTimeout time.Duration
	closer         func()

	// guards nonce assignment + send for the single signing account
	mu        sync.Mutex
	nextNonce uint64
	haveNonce bool
}

var _ Submitter = (*Client)(nil)

func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("ledger: invalid contract address %q", cfg.ContractAddress)
	}
	abiJSON := cfg.ABI
	if abiJSON == "" {
		abiJSON = DefaultABI
	}
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("ledger: parse abi: %w", err)
	}
	if _, ok := parsed.Methods[MethodCreateOrderDetail]; !ok {
		return nil, fmt.Errorf("ledger: abi has no %s method", MethodCreateOrderDetail)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignerUnavailable, err)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", cfg.RPCURL, err)
	}
	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		if chainID, err = eth.ChainID(ctx); err != nil {
			eth.Close()
			return nil, fmt.Errorf("ledger: chain id: %w", err)
		}
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("%w: %v", ErrSignerUnavailable, err)
	}
	if cfg.GasLimit > 0 {
		auth.GasLimit = cfg.GasLimit
	}

	addr := common.HexToAddress(cfg.ContractAddress)
	c := newClient(eth, bind.NewBoundContract(addr, parsed, eth, eth, eth), auth, auth.From, cfg.ConfirmTimeout)
	c.closer = eth.Close
	logging.Info().
		Str("contract", addr.Hex()).
		Str("from", auth.From.Hex()).
		Str("chain_id", chainID.String()).
		Msg("ledger client ready")
	return c, nil
}

func newClient(ch chain, contract transactor, auth *bind.TransactOpts, from common.Address, confirmTimeout time.Duration) *Client {
	if confirmTimeout <= 0 {
		confirmTimeout = 30 * time.Second
	}
	return &Client{chain: ch, contract: contract, auth: auth, from: from, confirmTimeout: confirmTimeout}
}

func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// SubmitOrderDetail sends createOrderDetail and blocks until the receipt arrives or the
// confirmation timeout passes.
func (c *Client) SubmitOrderDetail(ctx context.Context, rec Record) (Receipt, error) {
	tx, err := c.send(ctx, rec)
	if err != nil {
		return Receipt{}, err
	}
	return c.await(ctx, tx)
}

func (c *Client) send(ctx context.Context, rec Record) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, &SubmitError{Err: ErrSignerUnavailable}
	}
	// uint256 arguments: a negative value would be packed as a huge number
	if rec.Quantity < 0 || rec.PriceEachCents < 0 {
		return nil, &SubmitError{Err: fmt.Errorf("%w: quantity %d, price %d cents", ErrInvalidRecord, rec.Quantity, rec.PriceEachCents)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.chain.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, &SubmitError{Err: fmt.Errorf("pending nonce: %w", err)}
	}
	// the node may not list our previous transaction as pending yet
	if c.haveNonce && nonce < c.nextNonce {
		nonce = c.nextNonce
	}

	opts := *c.auth
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(nonce)
	tx, err := c.contract.Transact(&opts, MethodCreateOrderDetail,
		rec.ID, rec.ProductID, big.NewInt(rec.Quantity), big.NewInt(rec.PriceEachCents))
	if err != nil {
		if isRevert(err) {
			return nil, &SubmitError{Err: fmt.Errorf("%w: %v", ErrReverted, err)}
		}
		return nil, &SubmitError{Err: err}
	}
	c.nextNonce, c.haveNonce = nonce+1, true
	return tx, nil
}

func (c *Client) await(ctx context.Context, tx *types.Transaction) (Receipt, error) {
	hash := tx.Hash().Hex()
	wctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	r, err := bind.WaitMined(wctx, c.chain, tx)
	if err != nil {
		// sent but unresolved: the caller's deadline or cancellation ends the wait, not the tx
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Receipt{TxHash: hash}, &TimeoutError{TxHash: hash, After: c.confirmTimeout}
		}
		return Receipt{TxHash: hash}, &SubmitError{TxHash: hash, Err: err}
	}
	out := toReceipt(r)
	if !out.Confirmed {
		return out, &SubmitError{TxHash: hash, Err: ErrReverted}
	}
	return out, nil
}

// LookupReceipt fetches the receipt of a previously sent transaction. found is false
// while the transaction is still unmined (or unknown to the node).
func (c *Client) LookupReceipt(ctx context.Context, txHash string) (r Receipt, found bool, err error) {
	raw, err := c.chain.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return Receipt{TxHash: txHash}, false, nil
	}
	if err != nil {
		return Receipt{TxHash: txHash}, false, fmt.Errorf("ledger: receipt %s: %w", txHash, err)
	}
	return toReceipt(raw), true, nil
}

func toReceipt(r *types.Receipt) Receipt {
	out := Receipt{
		TxHash:    r.TxHash.Hex(),
		Confirmed: r.Status == types.ReceiptStatusSuccessful,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out
}
