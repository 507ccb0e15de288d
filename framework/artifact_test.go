package framework_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashbots/greeter-deployer/framework"
	"github.com/flashbots/greeter-deployer/framework/frameworktest"
)

func TestFindArtifact(t *testing.T) {
	dir := frameworktest.ArtifactsDir()

	tests := []struct {
		name       string
		lookup     string
		wantSource string
		wantErr    error
	}{
		{"bare name", "Greeter", "contracts/Greeter.sol", nil},
		{"fully qualified", "contracts/Greeter.sol:Greeter", "contracts/Greeter.sol", nil},
		{"fully qualified picks duplicate", "contracts/b/Token.sol:Token", "contracts/b/Token.sol", nil},
		{"ambiguous", "Token", "", framework.ErrAmbiguousArtifact},
		{"unknown", "Missing", "", framework.ErrArtifactNotFound},
		{"unknown fully qualified", "contracts/Greeter.sol:Missing", "", framework.ErrArtifactNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifact, err := framework.FindArtifact(dir, tt.lookup)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantSource, artifact.SourceName)
		})
	}
}

func TestFindArtifactListsCandidates(t *testing.T) {
	_, err := framework.FindArtifact(frameworktest.ArtifactsDir(), "Token")
	require.ErrorContains(t, err, "contracts/a/Token.sol:Token")
	require.ErrorContains(t, err, "contracts/b/Token.sol:Token")
}

func TestFindArtifactMissingDir(t *testing.T) {
	_, err := framework.FindArtifact(filepath.Join(t.TempDir(), "artifacts"), "Greeter")
	require.ErrorIs(t, err, framework.ErrArtifactNotFound)
}

func TestReadArtifact(t *testing.T) {
	path := filepath.Join(frameworktest.ArtifactsDir(), "contracts", "Greeter.sol", "Greeter.json")
	artifact, err := framework.ReadArtifact(path)
	require.NoError(t, err)

	require.Equal(t, "Greeter", artifact.ContractName)
	require.Equal(t, "contracts/Greeter.sol:Greeter", artifact.FullyQualifiedName())
	require.Len(t, artifact.Abi.Constructor.Inputs, 1)
	require.Contains(t, artifact.Abi.Methods, "greet")
	require.Contains(t, artifact.Abi.Methods, "setGreeting")
	require.Len(t, artifact.Bytecode, 26)
	require.Len(t, artifact.DeployedBytecode, 13)
	require.NoError(t, artifact.Deployable())
}

func TestArtifactDeployable(t *testing.T) {
	dir := frameworktest.ArtifactsDir()

	iface, err := framework.FindArtifact(dir, "IGreeter")
	require.NoError(t, err)
	require.ErrorIs(t, iface.Deployable(), framework.ErrAbstractContract)

	linked, err := framework.FindArtifact(dir, "Linked")
	require.NoError(t, err)
	require.ErrorIs(t, linked.Deployable(), framework.ErrUnlinkedBytecode)
}
