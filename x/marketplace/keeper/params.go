package keeper

import (
	"context"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// GetParams returns the current marketplace parameters
func (k Keeper) GetParams(ctx context.Context) (types.Params, error) {
	var params types.Params
	found, err := getJSON(k.getStore(ctx), ParamsKey, &params)
	if err != nil {
		return types.Params{}, err
	}
	if !found {
		return types.DefaultParams(), nil
	}
	return params, nil
}

// SetParams sets the marketplace parameters
func (k Keeper) SetParams(ctx context.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	return setJSON(k.getStore(ctx), ParamsKey, params)
}
