package framework

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// Backend is the chain access a Framework needs. Both *ethclient.Client and
// the go-ethereum simulated backend satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Framework struct {
	cfg     *Config
	log     *logrus.Entry
	backend Backend
	key     *PrivKey
	chainID *big.Int
	closer  func()
}

// New dials the configured node. The chain id is taken from the config when
// set and queried from the node otherwise.
func New(ctx context.Context, log *logrus.Entry, cfg *Config) (*Framework, error) {
	key, err := NewPrivKeyFromHex(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	if cfg.ChainID == 0 {
		if chainID, err = client.ChainID(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("get chain id: %w", err)
		}
	}

	fr := NewWithBackend(log, cfg, client, key, chainID)
	fr.closer = client.Close
	fr.log.WithFields(logrus.Fields{
		"rpc":      cfg.RPCURL,
		"chainId":  chainID,
		"deployer": key.Address().Hex(),
	}).Debug("connected")
	return fr, nil
}

func NewWithBackend(log *logrus.Entry, cfg *Config, backend Backend, key *PrivKey, chainID *big.Int) *Framework {
	return &Framework{
		cfg:     cfg,
		log:     log.WithField("network", cfg.Network),
		backend: backend,
		key:     key,
		chainID: chainID,
	}
}

func (f *Framework) Config() *Config { return f.cfg }

func (f *Framework) ChainID() *big.Int { return new(big.Int).Set(f.chainID) }

// Deployer is the account contract factories sign with unless connected to another key.
func (f *Framework) Deployer() *PrivKey { return f.key }

func (f *Framework) Close() {
	if f.closer != nil {
		f.closer()
	}
}

func (f *Framework) Balance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	balance, err := f.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("get balance of %s: %w", addr.Hex(), err)
	}
	value, overflow := uint256.FromBig(balance)
	if overflow {
		return nil, fmt.Errorf("balance of %s overflows 256 bits", addr.Hex())
	}
	return value, nil
}

// GetContractFactory looks the named contract up in the artifacts directory.
func (f *Framework) GetContractFactory(name string) (*ContractFactory, error) {
	artifact, err := FindArtifact(f.cfg.ArtifactsDir, name)
	if err != nil {
		return nil, fmt.Errorf("get contract factory: %w", err)
	}
	if err := artifact.Deployable(); err != nil {
		return nil, fmt.Errorf("get contract factory: %w", err)
	}
	return &ContractFactory{
		fr:       f,
		artifact: artifact,
		signer:   f.key,
	}, nil
}

func (f *Framework) ContractAt(addr common.Address, contractAbi *abi.ABI) *Contract {
	return &Contract{
		fr:     f,
		addr:   addr,
		abi:    contractAbi,
		bound:  bind.NewBoundContract(addr, *contractAbi, f.backend, f.backend, f.backend),
		signer: f.key,
	}
}

func (f *Framework) transactor(ctx context.Context, key *PrivKey) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key.Priv, f.chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = f.cfg.GasLimit
	return opts, nil
}
