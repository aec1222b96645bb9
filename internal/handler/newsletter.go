package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/service"
)

type NewsletterHandler struct {
	svc *service.NewsletterService
}

func NewNewsletterHandler(svc *service.NewsletterService) *NewsletterHandler {
	return &NewsletterHandler{svc: svc}
}

type subscribeRequest struct {
	Name  string `json:"name" validate:"max=120"`
	Email string `json:"email" validate:"max=255"`
	Phone string `json:"phone" validate:"max=32"`
}

// Subscribe handles POST /api/newsletter.
func (h *NewsletterHandler) Subscribe(c echo.Context) error {
	var req subscribeRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	id, err := h.svc.Subscribe(c.Request().Context(), req.Name, req.Email, req.Phone)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Email added to newsletter", "customerId": id})
}
