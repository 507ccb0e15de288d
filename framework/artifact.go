package framework

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrAmbiguousArtifact = errors.New("multiple artifacts match contract name")
	ErrAbstractContract  = errors.New("contract has no bytecode, it is abstract or an interface")
	ErrUnlinkedBytecode  = errors.New("bytecode references unlinked libraries")
)

// Artifact is a compiled contract in the hardhat artifact format (hh-sol-artifact-1).
type Artifact struct {
	ContractName     string
	SourceName       string
	Abi              *abi.ABI
	RawAbi           json.RawMessage
	Bytecode         []byte
	DeployedBytecode []byte
	LinkReferences   map[string]map[string][]linkReference
}

type linkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

type artifactJSON struct {
	Format           string                                `json:"_format"`
	ContractName     string                                `json:"contractName"`
	SourceName       string                                `json:"sourceName"`
	Abi              json.RawMessage                       `json:"abi"`
	Bytecode         string                                `json:"bytecode"`
	DeployedBytecode string                                `json:"deployedBytecode"`
	LinkReferences   map[string]map[string][]linkReference `json:"linkReferences"`
}

// FullyQualifiedName is the hardhat "sourceName:ContractName" form.
func (a *Artifact) FullyQualifiedName() string {
	return a.SourceName + ":" + a.ContractName
}

// Deployable reports whether the creation code can be sent as is.
func (a *Artifact) Deployable() error {
	if len(a.LinkReferences) > 0 {
		return fmt.Errorf("%s: %w", a.FullyQualifiedName(), ErrUnlinkedBytecode)
	}
	if len(a.Bytecode) == 0 {
		return fmt.Errorf("%s: %w", a.FullyQualifiedName(), ErrAbstractContract)
	}
	return nil
}

func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}

	parsed, err := abi.JSON(bytes.NewReader(raw.Abi))
	if err != nil {
		return nil, fmt.Errorf("decode abi of %s: %w", path, err)
	}

	artifact := &Artifact{
		ContractName:   raw.ContractName,
		SourceName:     raw.SourceName,
		Abi:            &parsed,
		RawAbi:         raw.Abi,
		LinkReferences: raw.LinkReferences,
	}

	// unlinked code carries __$..$__ placeholders and is not valid hex
	if len(raw.LinkReferences) == 0 {
		if artifact.Bytecode, err = decodeCode(raw.Bytecode); err != nil {
			return nil, fmt.Errorf("decode bytecode of %s: %w", path, err)
		}
		if artifact.DeployedBytecode, err = decodeCode(raw.DeployedBytecode); err != nil {
			return nil, fmt.Errorf("decode deployed bytecode of %s: %w", path, err)
		}
	}
	return artifact, nil
}

func decodeCode(code string) ([]byte, error) {
	if code == "" || code == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	return hexutil.Decode(code)
}

// FindArtifact resolves a contract name to its artifact under dir. Names are
// either bare ("Greeter") or fully qualified ("contracts/Greeter.sol:Greeter").
func FindArtifact(dir, name string) (*Artifact, error) {
	if source, contract, ok := strings.Cut(name, ":"); ok {
		path := filepath.Join(dir, filepath.FromSlash(source), contract+".json")
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrArtifactNotFound)
		}
		return ReadArtifact(path)
	}

	var matches []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == name+".json" {
			matches = append(matches, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s in %s: %w", name, dir, ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%s in %s: %w", name, dir, ErrArtifactNotFound)
	case 1:
		return ReadArtifact(matches[0])
	}

	candidates := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(dir, filepath.Dir(m))
		if err != nil {
			rel = filepath.Dir(m)
		}
		candidates = append(candidates, filepath.ToSlash(rel)+":"+name)
	}
	sort.Strings(candidates)
	return nil, fmt.Errorf("%s (%s): %w", name, strings.Join(candidates, ", "), ErrAmbiguousArtifact)
}
