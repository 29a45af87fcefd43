package evm

import (
	"github.com/SrJuanF/UnitPoints-System/internal/chains"
	"github.com/SrJuanF/UnitPoints-System/internal/chains/evm/foundry"
	"github.com/SrJuanF/UnitPoints-System/internal/chains/evm/hardhat"
)

// NewFoundryBuilder creates a new Foundry builder
func NewFoundryBuilder() chains.Builder {
	return foundry.New()
}

// NewHardhatBuilder creates a new Hardhat builder
func NewHardhatBuilder() chains.Builder {
	return hardhat.New()
}
