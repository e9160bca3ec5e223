package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"bchfaucet/internal/service"
)

type LogHandler struct {
	svc service.LogService
}

func NewLogHandler(svc service.LogService) *LogHandler {
	return &LogHandler{svc: svc}
}

// LogRequest carries the log password.
type LogRequest struct {
	Password string `json:"password"`
}

// GetLogs godoc
// @Summary Newest entries of today's log file
// @Description A wrong password yields success=false with status 200.
// @Tags logs
// @Accept json
// @Produce json
// @Param request body LogRequest true "Log password"
// @Success 200 {object} service.LogResult
// @Failure 500 {object} errors.ErrorResponse
// @Router /logapi [post]
func (h *LogHandler) GetLogs(c echo.Context) error {
	var req LogRequest
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	res, err := h.svc.Read(c.Request().Context(), req.Password)
	if err != nil {
		return err
	}
	if !res.Success {
		return c.JSON(http.StatusOK, successResponse{Success: false})
	}
	return c.JSON(http.StatusOK, res)
}
