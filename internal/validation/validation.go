// Package validation provides input validation for the UnitPoints tooling.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Placeholder is the literal left in templates for addresses that were never filled in.
const Placeholder = "0x..."

// Network names: letters, digits, hyphens and underscores, 1-64 chars
var networkNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// IsPlaceholder reports whether addr is an unfilled template value.
func IsPlaceholder(addr string) bool {
	trimmed := strings.TrimSpace(addr)
	return trimmed == Placeholder || strings.Contains(trimmed, "...")
}

// ValidateAddress validates an Ethereum address
func ValidateAddress(addr string) error {
	if addr == "" {
		return errors.New("address is empty")
	}
	if IsPlaceholder(addr) {
		return errors.New("address is a placeholder")
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return errors.New("invalid address: must start with 0x")
	}
	if !common.IsHexAddress(addr) {
		return errors.New("invalid address: must be 0x followed by 40 hex characters")
	}
	return nil
}

// ValidateContractAddress validates an address that must point at a deployed contract.
// On top of ValidateAddress it rejects the zero address.
func ValidateContractAddress(addr string) error {
	if err := ValidateAddress(addr); err != nil {
		return err
	}
	if common.HexToAddress(addr) == (common.Address{}) {
		return errors.New("address is the zero address")
	}
	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID int64) error {
	if chainID <= 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}

// ValidateNetworkName validates a network selector such as "localhost" or "passetHubTestnet"
func ValidateNetworkName(name string) error {
	if name == "" {
		return errors.New("network name cannot be empty")
	}
	if !networkNameRegex.MatchString(name) {
		return errors.New("invalid network name: must start with a letter and contain only letters, digits, '-' or '_'")
	}
	return nil
}
