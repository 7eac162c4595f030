package api

import (
	"errors"
	"net/http"

	errorsmod "cosmossdk.io/errors"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oblivion-chain/oblivion/app"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// toStatus classifies err as a gRPC status. Registered module errors report
// codes.Unknown and are classified here.
func toStatus(err error) *status.Status {
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return s
	}

	var code codes.Code
	switch {
	case errors.Is(err, types.ErrJobNotFound),
		errors.Is(err, types.ErrWorkerNotFound):
		code = codes.NotFound
	case errors.Is(err, types.ErrInvalidAddress),
		errors.Is(err, types.ErrInvalidJobType),
		errors.Is(err, types.ErrInvalidAmount),
		errors.Is(err, sdkerrors.ErrInvalidAddress),
		errors.Is(err, sdkerrors.ErrInvalidRequest),
		errors.Is(err, sdkerrors.ErrInvalidCoins),
		errors.Is(err, sdkerrors.ErrTxDecode):
		code = codes.InvalidArgument
	case errors.Is(err, app.ErrFaucetDisabled):
		code = codes.FailedPrecondition
	case errors.Is(err, app.ErrHalted),
		errors.Is(err, app.ErrNotInitialized):
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.New(code, err.Error())
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with err mapped to an HTTP status and its ABCI code.
func writeError(c *gin.Context, err error) {
	st := toStatus(err)
	resp := ErrorResponse{
		Error: st.Message(),
		Code:  st.Code().String(),
	}
	if codespace, abciCode, _ := errorsmod.ABCIInfo(err, false); codespace != errorsmod.UndefinedCodespace {
		resp.Codespace = codespace
		resp.ABCICode = abciCode
	}
	c.JSON(httpStatus(st.Code()), resp)
}

func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}
