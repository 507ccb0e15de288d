// Package frameworktest runs a framework.Framework against an in-memory chain.
package frameworktest

import (
	"context"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sirupsen/logrus"

	"github.com/flashbots/greeter-deployer/framework"
)

const blockGasLimit = 30_000_000

// SimulatedChainID is the chain id go-ethereum's simulated backend signs for.
var SimulatedChainID = big.NewInt(1337)

// Backend mines a block for every transaction it accepts.
type Backend struct {
	*backends.SimulatedBackend
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := b.SimulatedBackend.SendTransaction(ctx, tx); err != nil {
		return err
	}
	b.Commit()
	return nil
}

type setup struct {
	balance *big.Int
	manual  bool
	mutate  []func(*framework.Config)
}

type Option func(*setup)

// WithBalance sets the genesis balance of the deployer account.
func WithBalance(balance *big.Int) Option {
	return func(s *setup) { s.balance = balance }
}

// WithManualMining hands the framework the plain simulated backend, so sent
// transactions stay pending until the test calls Commit.
func WithManualMining() Option {
	return func(s *setup) { s.manual = true }
}

func WithConfig(fn func(*framework.Config)) Option {
	return func(s *setup) { s.mutate = append(s.mutate, fn) }
}

// New returns a Framework whose deployer holds 100 ether on a fresh chain. The
// artifacts directory points at the fixtures of this package and deployments
// are recorded in a temporary directory.
func New(t testing.TB, opts ...Option) (*framework.Framework, *Backend) {
	t.Helper()

	s := &setup{balance: new(big.Int).Mul(big.NewInt(100), big.NewInt(params.Ether))}
	for _, opt := range opts {
		opt(s)
	}

	key := framework.GeneratePrivKey()
	sim := backends.NewSimulatedBackend(core.GenesisAlloc{
		key.Address(): {Balance: s.balance},
	}, blockGasLimit)
	t.Cleanup(func() { sim.Close() })

	cfg := framework.DefaultConfig()
	cfg.ArtifactsDir = ArtifactsDir()
	cfg.DeploymentsDir = t.TempDir()
	for _, fn := range s.mutate {
		fn(cfg)
	}

	backend := &Backend{SimulatedBackend: sim}
	var chain framework.Backend = backend
	if s.manual {
		chain = sim
	}
	return framework.NewWithBackend(Logger(), cfg, chain, key, SimulatedChainID), backend
}

func Logger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// ArtifactsDir is the fixture hardhat artifacts directory. The Greeter fixture
// keeps its ABI encoded constructor arguments after its runtime code and
// answers every call with them, so greet() returns the deployed greeting.
func ArtifactsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata", "artifacts")
}

var configEnv = []string{
	"NETWORK", "RPC_URL", "CHAIN_ID", "PRIVATE_KEY", "ARTIFACTS_DIR",
	"DEPLOYMENTS_DIR", "GAS_LIMIT", "TIMEOUT", "LOG_LEVEL",
}

// IsolateConfig blanks the config environment variables and moves the test
// into an empty working directory, so framework.LoadConfig sees only defaults
// and whatever the test sets afterwards.
func IsolateConfig(t testing.TB) {
	t.Helper()

	for _, key := range configEnv {
		t.Setenv(key, "")
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}
