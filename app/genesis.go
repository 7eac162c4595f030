package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// GenesisAccount is an address funded at genesis.
type GenesisAccount struct {
	Address string    `json:"address"`
	Coins   sdk.Coins `json:"coins"`
}

// GenesisDoc is the initial state of the devnet.
type GenesisDoc struct {
	ChainID     string              `json:"chain_id"`
	GenesisTime time.Time           `json:"genesis_time"`
	Accounts    []GenesisAccount    `json:"accounts"`
	Marketplace *types.GenesisState `json:"marketplace"`
}

// NewDefaultGenesis returns a genesis with default marketplace state owned by owner.
func NewDefaultGenesis(chainID string, owner sdk.AccAddress, genesisTime time.Time) *GenesisDoc {
	return &GenesisDoc{
		ChainID:     chainID,
		GenesisTime: genesisTime.UTC(),
		Accounts:    []GenesisAccount{},
		Marketplace: types.DefaultGenesis(owner.String()),
	}
}

// Validate performs basic validation of the genesis document.
func (g *GenesisDoc) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain id cannot be empty")
	}
	if g.Marketplace == nil {
		return fmt.Errorf("marketplace genesis is missing")
	}
	seen := make(map[string]bool, len(g.Accounts))
	for i, acc := range g.Accounts {
		if _, err := sdk.AccAddressFromBech32(acc.Address); err != nil {
			return fmt.Errorf("account %d: %w", i, err)
		}
		if seen[acc.Address] {
			return fmt.Errorf("duplicate genesis account %s", acc.Address)
		}
		seen[acc.Address] = true
		if err := acc.Coins.Validate(); err != nil {
			return fmt.Errorf("account %s coins: %w", acc.Address, err)
		}
	}
	return g.Marketplace.Validate()
}

// LoadGenesis reads a genesis document from path.
func LoadGenesis(path string) (*GenesisDoc, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis: %w", err)
	}
	var doc GenesisDoc
	if err := json.Unmarshal(bz, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse genesis: %w", err)
	}
	return &doc, doc.Validate()
}

// Save writes the genesis document to path.
func (g *GenesisDoc) Save(path string) error {
	bz, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, bz, 0o600)
}
