package app

import (
	"fmt"

	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

const (
	// DefaultChainID is used by `oblivd init` when no chain id is given
	DefaultChainID = "oblivion-devnet-1"
	// Bech32Prefix is the account address prefix
	Bech32Prefix = "obl"
	// FaucetModuleName is the minting module account behind the devnet faucet
	FaucetModuleName = "faucet"
)

// Config configures the node host.
type Config struct {
	ChainID string `mapstructure:"chain_id"`
	// DBBackend is "memdb" or "goleveldb".
	DBBackend string `mapstructure:"db_backend"`
	DataDir   string `mapstructure:"data_dir"`
	// InvariantCheck runs the marketplace invariants after every block.
	InvariantCheck bool `mapstructure:"invariant_check"`
	// FaucetEnabled allows minting through Fund.
	FaucetEnabled bool `mapstructure:"faucet_enabled"`
	// FaucetLimit caps a single faucet grant in base units.
	FaucetLimit int64 `mapstructure:"faucet_limit"`
}

// DefaultConfig returns a devnet configuration backed by an in-memory database.
func DefaultConfig() Config {
	return Config{
		ChainID:        DefaultChainID,
		DBBackend:      string(dbm.MemDBBackend),
		DataDir:        "data",
		InvariantCheck: true,
		FaucetEnabled:  true,
		FaucetLimit:    100_000_000,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ChainID == "" {
		return fmt.Errorf("chain id cannot be empty")
	}
	switch dbm.BackendType(c.DBBackend) {
	case dbm.MemDBBackend, dbm.GoLevelDBBackend:
	default:
		return fmt.Errorf("unsupported db backend %q", c.DBBackend)
	}
	if c.FaucetLimit < 0 {
		return fmt.Errorf("faucet limit cannot be negative")
	}
	return nil
}

// OpenDB opens the database selected by the configuration.
func (c Config) OpenDB() (dbm.DB, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return dbm.NewDB("application", dbm.BackendType(c.DBBackend), c.DataDir)
}

// SetAddressPrefixes configures the global bech32 prefixes for Oblivion
// addresses. It must run before any address is parsed.
func SetAddressPrefixes() {
	cfg := sdk.GetConfig()
	cfg.SetBech32PrefixForAccount(Bech32Prefix, Bech32Prefix+"pub")
	cfg.SetBech32PrefixForValidator(Bech32Prefix+"valoper", Bech32Prefix+"valoperpub")
	cfg.SetBech32PrefixForConsensusNode(Bech32Prefix+"valcons", Bech32Prefix+"valconspub")
}
