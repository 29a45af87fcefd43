// Package domain runs read-only ecosystem verification on behalf of
// registry clients.
package domain

import (
	"errors"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
)

// Common errors returned by the verification service.
var (
	ErrInvalidRequest = errors.New("invalid verification request")
	ErrRPCNotAllowed  = errors.New("rpc endpoint not allowed")
	ErrUnreachable    = errors.New("rpc endpoint unreachable")
)

// VerifyRequest asks for the checks against one deployed ecosystem.
type VerifyRequest struct {
	Network string `json:"network"`
	// RPCURL may be omitted for built-in networks
	RPCURL string `json:"rpcUrl,omitempty"`
	// ChainID, when set, must match what the node reports
	ChainID        int64               `json:"chainId,omitempty"`
	Addresses      ecosystem.Addresses `json:"addresses"`
	ExpectedSector int64               `json:"expectedSector,omitempty"`
}

// VerifyResult carries the checks and their summary.
type VerifyResult struct {
	Network string                         `json:"network"`
	ChainID int64                          `json:"chainId"`
	Results []ecosystem.VerificationResult `json:"results"`
	Summary ecosystem.Summary              `json:"summary"`
}
