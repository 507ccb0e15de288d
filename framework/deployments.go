package framework

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

const chainIDFile = ".chainId"

var ErrDeploymentNotFound = errors.New("deployment not found")

// Deployment is the record kept for a deployed contract, one JSON file per
// contract under <deployments_dir>/<network>.
type Deployment struct {
	ContractName    string          `json:"contractName"`
	SourceName      string          `json:"sourceName"`
	Address         common.Address  `json:"address"`
	TransactionHash common.Hash     `json:"transactionHash"`
	BlockNumber     uint64          `json:"blockNumber"`
	Deployer        common.Address  `json:"deployer"`
	ChainID         uint64          `json:"chainId"`
	Args            []interface{}   `json:"args"`
	Abi             json.RawMessage `json:"abi"`
}

type DeploymentStore struct {
	dir string
}

func NewDeploymentStore(root, network string) *DeploymentStore {
	return &DeploymentStore{dir: filepath.Join(root, network)}
}

func (s *DeploymentStore) Dir() string { return s.dir }

func (s *DeploymentStore) Save(d *Deployment) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create deployments dir: %w", err)
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode deployment %s: %w", d.ContractName, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, d.ContractName+".json"), data, 0o644); err != nil {
		return fmt.Errorf("write deployment %s: %w", d.ContractName, err)
	}

	chainID := strconv.FormatUint(d.ChainID, 10)
	if err := os.WriteFile(filepath.Join(s.dir, chainIDFile), []byte(chainID), 0o644); err != nil {
		return fmt.Errorf("write chain id: %w", err)
	}
	return nil
}

func (s *DeploymentStore) Load(name string) (*Deployment, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrDeploymentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read deployment %s: %w", name, err)
	}

	d := &Deployment{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decode deployment %s: %w", name, err)
	}
	return d, nil
}

// List returns every recorded deployment ordered by contract name. A missing
// directory is an empty list.
func (s *DeploymentStore) List() ([]*Deployment, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []*Deployment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read deployments dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)

	deployments := make([]*Deployment, 0, len(names))
	for _, name := range names {
		d, err := s.Load(name)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, nil
}

func (s *DeploymentStore) ChainID() (uint64, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, chainIDFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%s: %w", chainIDFile, ErrDeploymentNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read chain id: %w", err)
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

// RecordDeployment stores c in the configured deployments directory. It is a
// no-op without one, or for contracts not created by a factory.
func (f *Framework) RecordDeployment(c *Contract) error {
	if f.cfg.DeploymentsDir == "" || c.artifact == nil {
		return nil
	}
	if c.receipt == nil {
		return fmt.Errorf("record %s: deployment not confirmed", c.artifact.ContractName)
	}

	store := NewDeploymentStore(f.cfg.DeploymentsDir, f.cfg.Network)
	d := &Deployment{
		ContractName:    c.artifact.ContractName,
		SourceName:      c.artifact.SourceName,
		Address:         c.addr,
		TransactionHash: c.receipt.TxHash,
		BlockNumber:     c.receipt.BlockNumber.Uint64(),
		Deployer:        c.signer.Address(),
		ChainID:         f.chainID.Uint64(),
		Args:            c.args,
		Abi:             c.artifact.RawAbi,
	}
	if d.Args == nil {
		d.Args = []interface{}{}
	}
	if err := store.Save(d); err != nil {
		return err
	}

	f.log.WithFields(logrus.Fields{
		"contract": d.ContractName,
		"dir":      store.Dir(),
	}).Debug("deployment recorded")
	return nil
}
