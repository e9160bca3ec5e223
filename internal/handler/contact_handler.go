package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"bchfaucet/internal/service"
)

// ContactHandler relays contact form submissions.
type ContactHandler struct {
	svc service.ContactService
}

func NewContactHandler(svc service.ContactService) *ContactHandler {
	return &ContactHandler{svc: svc}
}

// ContactRequest carries the form fields under obj. Unknown fields are included in the email body.
type ContactRequest struct {
	Obj map[string]interface{} `json:"obj"`
}

// SendEmail godoc
// @Summary Send a contact email
// @Tags contact
// @Accept json
// @Produce json
// @Param request body ContactRequest true "Form fields: email, formMessage, payloadTitle, subject, emailList"
// @Success 200 {object} successResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /contact/email [post]
func (h *ContactHandler) SendEmail(c echo.Context) error {
	var req ContactRequest
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	if err := h.svc.Send(c.Request().Context(), req.Obj); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}
