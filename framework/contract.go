package framework

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

var (
	ErrDeploymentReverted = errors.New("deployment transaction reverted")
	ErrNoCode             = errors.New("no code at deployed address")
	ErrTransactionFailed  = errors.New("transaction failed")
)

type ContractFactory struct {
	fr       *Framework
	artifact *Artifact
	signer   *PrivKey
}

func (cf *ContractFactory) Artifact() *Artifact { return cf.artifact }

// Connect returns a factory deploying from key.
func (cf *ContractFactory) Connect(key *PrivKey) *ContractFactory {
	return &ContractFactory{
		fr:       cf.fr,
		artifact: cf.artifact,
		signer:   key,
	}
}

// Deploy sends the creation transaction and returns without waiting for it to
// be mined, see Contract.Deployed.
func (cf *ContractFactory) Deploy(ctx context.Context, args ...interface{}) (*Contract, error) {
	name := cf.artifact.ContractName
	opts, err := cf.fr.transactor(ctx, cf.signer)
	if err != nil {
		return nil, err
	}

	addr, tx, bound, err := bind.DeployContract(opts, *cf.artifact.Abi, cf.artifact.Bytecode, cf.fr.backend, args...)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	cf.fr.log.WithFields(logrus.Fields{
		"contract": name,
		"address":  addr.Hex(),
		"tx":       tx.Hash().Hex(),
		"nonce":    tx.Nonce(),
	}).Info("deployment transaction sent")

	return &Contract{
		fr:       cf.fr,
		addr:     addr,
		abi:      cf.artifact.Abi,
		bound:    bound,
		signer:   cf.signer,
		artifact: cf.artifact,
		args:     args,
		deployTx: tx,
	}, nil
}

type Contract struct {
	fr     *Framework
	addr   common.Address
	abi    *abi.ABI
	bound  *bind.BoundContract
	signer *PrivKey

	// set for contracts created through a factory
	artifact *Artifact
	args     []interface{}
	deployTx *types.Transaction
	receipt  *types.Receipt
}

func (c *Contract) Address() common.Address { return c.addr }

func (c *Contract) Abi() *abi.ABI { return c.abi }

func (c *Contract) DeployTransaction() *types.Transaction { return c.deployTx }

// Receipt is the deployment receipt, nil until Deployed returns.
func (c *Contract) Receipt() *types.Receipt { return c.receipt }

// Deployed blocks until the deployment transaction is mined and the contract
// has code. Handles obtained with ContractAt are returned as is.
func (c *Contract) Deployed(ctx context.Context) (*Contract, error) {
	if c.deployTx == nil || c.receipt != nil {
		return c, nil
	}

	log := c.fr.log.WithField("address", c.addr.Hex())
	log.Debug("waiting for deployment")

	receipt, err := bind.WaitMined(ctx, c.fr.backend, c.deployTx)
	if err != nil {
		return nil, fmt.Errorf("wait for deployment of %s: %w", c.addr.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s in tx %s: %w", c.addr.Hex(), receipt.TxHash.Hex(), ErrDeploymentReverted)
	}

	code, err := c.fr.backend.CodeAt(ctx, c.addr, nil)
	if err != nil {
		return nil, fmt.Errorf("get code at %s: %w", c.addr.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%s: %w", c.addr.Hex(), ErrNoCode)
	}

	c.receipt = receipt
	log.WithFields(logrus.Fields{
		"block":   receipt.BlockNumber,
		"gasUsed": receipt.GasUsed,
	}).Info("contract deployed")
	return c, nil
}

// Ref returns a handle on the same contract that transacts from key.
func (c *Contract) Ref(key *PrivKey) *Contract {
	ref := *c
	ref.signer = key
	return &ref
}

func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return out, nil
}

// SendTransaction invokes method and waits for the receipt.
func (c *Contract) SendTransaction(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	opts, err := c.fr.transactor(ctx, c.signer)
	if err != nil {
		return nil, err
	}

	tx, err := c.bound.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, c.fr.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%s in tx %s: %w", method, tx.Hash().Hex(), ErrTransactionFailed)
	}
	return receipt, nil
}
