package cli

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/SrJuanF/UnitPoints-System/internal/chains/evm"
)

// errNoKey is returned when no deployer key is configured and stdin cannot prompt
var errNoKey = errors.New("no deployer key: pass --private-key-file, set UNITPOINTS_PRIVATE_KEY, or run interactively")

// loadDeployerKey returns the signing key from --private-key-file,
// UNITPOINTS_PRIVATE_KEY, or a hidden terminal prompt, in that order.
func loadDeployerKey(out io.Writer, keyFile string) (*ecdsa.PrivateKey, error) {
	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		return evm.ParseKey(strings.TrimSpace(string(data)))
	}

	if env := strings.TrimSpace(os.Getenv("UNITPOINTS_PRIVATE_KEY")); env != "" {
		return evm.ParseKey(env)
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errNoKey
	}
	hexKey, err := promptSecret(out, "Enter deployer private key: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	if hexKey == "" {
		return nil, errNoKey
	}
	return evm.ParseKey(hexKey)
}
