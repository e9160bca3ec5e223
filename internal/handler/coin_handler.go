package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"bchfaucet/internal/service"
	"bchfaucet/internal/wallet"
)

// CoinHandler serves the faucet endpoints.
type CoinHandler struct {
	faucet service.FaucetService
}

func NewCoinHandler(faucet service.FaucetService) *CoinHandler {
	return &CoinHandler{faucet: faucet}
}

// BalanceResponse reports the faucet wallet balance.
type BalanceResponse struct {
	Balance    int64  `json:"balance"`
	BalanceBCH string `json:"balanceBCH"`
}

// GetBalance godoc
// @Summary Faucet balance
// @Description Confirmed plus unconfirmed satoshis held by the faucet address.
// @Tags coins
// @Produce json
// @Success 200 {object} BalanceResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /coins [get]
func (h *CoinHandler) GetBalance(c echo.Context) error {
	sats, err := h.faucet.Balance(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, BalanceResponse{
		Balance:    sats,
		BalanceBCH: wallet.SatsToBCH(sats).StringFixed(8),
	})
}

// GetCoins godoc
// @Summary Request testnet coins
// @Description Soft rejections are returned with status 200 and success=false.
// @Tags coins
// @Produce json
// @Param bchaddr path string true "Destination cash address"
// @Success 200 {object} service.PayoutResult
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /coins/{bchaddr} [get]
func (h *CoinHandler) GetCoins(c echo.Context) error {
	res, err := h.faucet.Payout(c.Request().Context(), service.PayoutRequest{
		Address: c.Param("bchaddr"),
		IP:      c.RealIP(),
		Origin:  c.Request().Header.Get(echo.HeaderOrigin),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// SweepResponse reports how many IP records were removed.
type SweepResponse struct {
	Success bool  `json:"success"`
	Deleted int64 `json:"deleted"`
}

// SweepIPs godoc
// @Summary Purge expired requester IP records now
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SweepResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /admin/ips/sweep [post]
func (h *CoinHandler) SweepIPs(c echo.Context) error {
	n, err := h.faucet.SweepIPs(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SweepResponse{Success: true, Deleted: n})
}
