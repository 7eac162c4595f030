package types

const (
	// ModuleName defines the module name
	ModuleName = "marketplace"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// RouterKey is the message route for marketplace
	RouterKey = ModuleName

	// TreasuryName is the label used for forfeited stake held by the module account
	TreasuryName = "marketplace_treasury"

	// DefaultDenom is the base unit of the native token (1 OBL = 1_000_000 uobl)
	DefaultDenom = "uobl"
)
