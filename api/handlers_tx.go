package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oblivion-chain/oblivion/app/tx"
)

// handleSubmitTx delivers a signed envelope. Executed transactions return
// 200 with their receipt even when the message failed; the receipt code
// carries the failure.
func (s *Server) handleSubmitTx(c *gin.Context) {
	var env tx.Envelope
	if err := bindJSON(c, &env); err != nil {
		writeError(c, invalidArgument(err))
		return
	}

	receipt, err := s.node.DeliverTx(c.Request.Context(), &env)
	if err != nil {
		s.logger.Error("tx delivery failed", "type", env.Type, "err", err)
		writeError(c, err)
		return
	}

	result := "ok"
	if !receipt.IsOK() {
		result = "error"
	}
	NewAPIMetrics().TxSubmitted.WithLabelValues(env.Type, result).Inc()
	c.JSON(http.StatusOK, receipt)
}

// handleGetAccount returns the sequence and balances of an address
func (s *Server) handleGetAccount(c *gin.Context) {
	addr, err := ParseAddress(c.Param("address"))
	if err != nil {
		writeError(c, invalidArgument(err))
		return
	}
	account, err := s.node.Account(addr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// handleFaucet funds an address on devnets
func (s *Server) handleFaucet(c *gin.Context) {
	var req FaucetRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, invalidArgument(err))
		return
	}

	var errs FieldErrors
	addr, err := ParseAddress(req.Address)
	if err != nil {
		errs.Add("address", err)
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		errs.Add("amount", err)
	}
	if err := errs.Err(); err != nil {
		writeError(c, invalidArgument(err))
		return
	}

	if claims, ok := c.Get(claimsKey); ok {
		if !claims.(*Claims).Allows(addr.String()) {
			c.JSON(http.StatusForbidden, ErrorResponse{
				Error: "token does not allow funding this address",
				Code:  "FORBIDDEN",
			})
			return
		}
	}

	receipt, err := s.node.Fund(c.Request.Context(), addr, amount)
	if err != nil {
		writeError(c, err)
		return
	}

	NewAPIMetrics().FaucetGrants.Inc()
	c.JSON(http.StatusOK, receipt)
}
