package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/repository"
	"github.com/iliyamo/table-reservation/internal/service"
	"github.com/iliyamo/table-reservation/internal/timeslot"
)

// ReservationHandler exposes availability, booking and the back-office
// listing over HTTP.
type ReservationHandler struct {
	svc *service.BookingService
}

func NewReservationHandler(svc *service.BookingService) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

// guestCount accepts a JSON number or a numeric string.  Anything else
// decodes to 0 so that it is rejected as an invalid guest count.
type guestCount struct {
	n   int
	set bool
}

func (g *guestCount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	g.set = true
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	} else {
		s = string(b)
	}
	if s = strings.TrimSpace(s); s == "" {
		g.set = false
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	g.n = n
	return nil
}

func (g guestCount) ptr() *int {
	if !g.set {
		return nil
	}
	n := g.n
	return &n
}

type bookRequest struct {
	Time   string     `json:"time"`
	Guests guestCount `json:"guests"`
	Name   string     `json:"name" validate:"max=120"`
	Email  string     `json:"email" validate:"max=255"`
	Phone  string     `json:"phone" validate:"max=32"`
}

type bookResponse struct {
	ReservationID uint64        `json:"reservationId"`
	TableNumber   int           `json:"tableNumber"`
	Slot          timeslot.Slot `json:"slot"`
}

// Book handles POST /api/reservations.  A body that fails to decode is
// handed to the service rather than rejected here, so it still counts
// against the client's rate limit.
func (h *ReservationHandler) Book(c echo.Context) error {
	var req bookRequest
	decodeErr := decodeBody(c, &req)
	b, err := h.svc.Book(c.Request().Context(), service.BookingRequest{
		Client:    middleware.ClientIdentity(c),
		Time:      req.Time,
		Guests:    req.Guests.ptr(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Malformed: decodeErr,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, bookResponse{
		ReservationID: b.ReservationID,
		TableNumber:   b.TableNumber,
		Slot:          b.Slot,
	})
}

type availabilityResponse struct {
	TotalTables int           `json:"totalTables"`
	Booked      int           `json:"booked"`
	Available   int           `json:"available"`
	Slot        timeslot.Slot `json:"slot"`
}

// Availability handles GET /api/reservations/availability?time=...
func (h *ReservationHandler) Availability(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("time"))
	if raw == "" {
		return writeError(c, &service.FieldsError{Fields: []string{"time"}})
	}
	av, err := h.svc.CheckAvailability(c.Request().Context(), raw)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, availabilityResponse{
		TotalTables: av.TotalTables,
		Booked:      av.Booked,
		Available:   av.Available,
		Slot:        av.Slot,
	})
}

type listResponse struct {
	Page         int                         `json:"page"`
	PageSize     int                         `json:"pageSize"`
	Total        int                         `json:"total"`
	Reservations []repository.ReservationRow `json:"reservations"`
}

// List handles GET /api/reservations?date=YYYY-MM-DD&page=&page_size=.
// Non-numeric paging values fall back to the defaults.
func (h *ReservationHandler) List(c echo.Context) error {
	day := strings.TrimSpace(c.QueryParam("date"))
	if day == "" {
		return writeError(c, &service.FieldsError{Fields: []string{"date"}})
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))

	p, err := h.svc.ListReservations(c.Request().Context(), day, page, size)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, listResponse{
		Page:         p.Page,
		PageSize:     p.PageSize,
		Total:        p.Total,
		Reservations: p.Reservations,
	})
}
