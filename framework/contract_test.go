package framework_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/flashbots/greeter-deployer/framework"
	"github.com/flashbots/greeter-deployer/framework/frameworktest"
)

func TestDeployGreeter(t *testing.T) {
	ctx := context.Background()
	fr, _ := frameworktest.New(t)

	factory, err := fr.GetContractFactory("Greeter")
	require.NoError(t, err)

	greeter, err := factory.Deploy(ctx, "Hello, Buidler!")
	require.NoError(t, err)
	require.Equal(t, crypto.CreateAddress(fr.Deployer().Address(), 0), greeter.Address())
	require.Nil(t, greeter.Receipt())

	ctorArgs, err := factory.Artifact().Abi.Pack("", "Hello, Buidler!")
	require.NoError(t, err)
	wantData := append(append([]byte{}, factory.Artifact().Bytecode...), ctorArgs...)
	require.Equal(t, wantData, greeter.DeployTransaction().Data())

	greeter, err = greeter.Deployed(ctx)
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, greeter.Receipt().Status)
	require.Equal(t, greeter.Address(), greeter.Receipt().ContractAddress)

	out, err := greeter.Call(ctx, "greet")
	require.NoError(t, err)
	require.Equal(t, []interface{}{"Hello, Buidler!"}, out)

	receipt, err := greeter.SendTransaction(ctx, "setGreeting", "Hola")
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
}

func TestDeployUsesNextNonce(t *testing.T) {
	ctx := context.Background()
	fr, _ := frameworktest.New(t)

	factory, err := fr.GetContractFactory("Greeter")
	require.NoError(t, err)

	for nonce := uint64(0); nonce < 3; nonce++ {
		c, err := factory.Deploy(ctx, "Hello, Buidler!")
		require.NoError(t, err)
		_, err = c.Deployed(ctx)
		require.NoError(t, err)
		require.Equal(t, crypto.CreateAddress(fr.Deployer().Address(), nonce), c.Address())
	}
}

func TestDeployFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("reverting constructor", func(t *testing.T) {
		fr, _ := frameworktest.New(t)
		factory, err := fr.GetContractFactory("Reverter")
		require.NoError(t, err)

		_, err = factory.Deploy(ctx)
		require.Error(t, err)
	})

	t.Run("reverted with fixed gas limit", func(t *testing.T) {
		fr, _ := frameworktest.New(t, frameworktest.WithConfig(func(cfg *framework.Config) {
			cfg.GasLimit = 100_000
		}))
		factory, err := fr.GetContractFactory("Reverter")
		require.NoError(t, err)

		c, err := factory.Deploy(ctx)
		require.NoError(t, err)
		_, err = c.Deployed(ctx)
		require.ErrorIs(t, err, framework.ErrDeploymentReverted)
	})

	t.Run("no code after deployment", func(t *testing.T) {
		fr, _ := frameworktest.New(t)
		factory, err := fr.GetContractFactory("Empty")
		require.NoError(t, err)

		c, err := factory.Deploy(ctx)
		require.NoError(t, err)
		_, err = c.Deployed(ctx)
		require.ErrorIs(t, err, framework.ErrNoCode)
		require.Nil(t, c.Receipt())
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		fr, backend := frameworktest.New(t, frameworktest.WithManualMining())
		factory, err := fr.GetContractFactory("Greeter")
		require.NoError(t, err)

		c, err := factory.Deploy(ctx, "Hello, Buidler!")
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = c.Deployed(cancelled)
		require.ErrorIs(t, err, context.Canceled)
		require.Nil(t, c.Receipt())

		// the transaction is still valid once mined
		backend.Commit()
		_, err = c.Deployed(ctx)
		require.NoError(t, err)
	})

	t.Run("unfunded deployer", func(t *testing.T) {
		fr, _ := frameworktest.New(t, frameworktest.WithBalance(big.NewInt(0)))
		factory, err := fr.GetContractFactory("Greeter")
		require.NoError(t, err)

		_, err = factory.Deploy(ctx, "Hello, Buidler!")
		require.Error(t, err)
	})

	t.Run("connected to unfunded key", func(t *testing.T) {
		fr, _ := frameworktest.New(t)
		factory, err := fr.GetContractFactory("Greeter")
		require.NoError(t, err)

		_, err = factory.Connect(framework.GeneratePrivKey()).Deploy(ctx, "Hello, Buidler!")
		require.Error(t, err)
	})

	t.Run("wrong constructor arguments", func(t *testing.T) {
		fr, _ := frameworktest.New(t)
		factory, err := fr.GetContractFactory("Greeter")
		require.NoError(t, err)

		_, err = factory.Deploy(ctx)
		require.Error(t, err)
	})

	t.Run("interface", func(t *testing.T) {
		fr, _ := frameworktest.New(t)
		_, err := fr.GetContractFactory("IGreeter")
		require.ErrorIs(t, err, framework.ErrAbstractContract)
	})
}

func TestContractAt(t *testing.T) {
	ctx := context.Background()
	fr, _ := frameworktest.New(t)

	factory, err := fr.GetContractFactory("Greeter")
	require.NoError(t, err)
	deployed, err := factory.Deploy(ctx, "Hello, Buidler!")
	require.NoError(t, err)
	_, err = deployed.Deployed(ctx)
	require.NoError(t, err)

	greeter := fr.ContractAt(deployed.Address(), factory.Artifact().Abi)
	same, err := greeter.Deployed(ctx)
	require.NoError(t, err)
	require.Same(t, greeter, same)

	out, err := greeter.Call(ctx, "greet")
	require.NoError(t, err)
	require.Equal(t, "Hello, Buidler!", out[0])

	_, err = greeter.Ref(framework.GeneratePrivKey()).SendTransaction(ctx, "setGreeting", "Hola")
	require.Error(t, err)
}

func TestBalance(t *testing.T) {
	fr, _ := frameworktest.New(t)

	balance, err := fr.Balance(context.Background(), fr.Deployer().Address())
	require.NoError(t, err)
	want := new(uint256.Int).Mul(uint256.NewInt(100), uint256.NewInt(params.Ether))
	require.Equal(t, want, balance)

	empty, err := fr.Balance(context.Background(), framework.GeneratePrivKey().Address())
	require.NoError(t, err)
	require.True(t, empty.IsZero())
}
