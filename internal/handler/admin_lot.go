package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-reservation/internal/engine"
	"github.com/iliyamo/parking-lot-reservation/internal/repository"
)

// AdminHandler serves the lot registry and reporting endpoints.  Only the
// registry creates and deletes lots; it never flips spot occupancy, so the
// spot repository here is read-only context for reports.
type AdminHandler struct {
	Lots  *repository.LotRepo
	Spots *repository.SpotRepo
	Res   *repository.ReservationRepo
}

// NewAdminHandler constructs an AdminHandler.  All dependencies must be
// non-nil.
func NewAdminHandler(lots *repository.LotRepo, spots *repository.SpotRepo, res *repository.ReservationRepo) *AdminHandler {
	if lots == nil || spots == nil || res == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	return &AdminHandler{Lots: lots, Spots: spots, Res: res}
}

type lotReq struct {
	Name       string  `json:"name"`
	HourlyRate float64 `json:"hourly_rate"`
	Address    string  `json:"address"`
	PinCode    string  `json:"pin_code"`
	Capacity   uint32  `json:"capacity"`
}

type lotResp struct {
	ID         uint64  `json:"id"`
	Name       string  `json:"name"`
	HourlyRate float64 `json:"hourly_rate"`
	Address    string  `json:"address"`
	PinCode    string  `json:"pin_code"`
	Capacity   uint32  `json:"capacity"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

func toLotResp(l *repository.Lot) lotResp {
	return lotResp{
		ID:         l.ID,
		Name:       l.Name,
		HourlyRate: l.HourlyRate,
		Address:    l.Address,
		PinCode:    l.PinCode,
		Capacity:   l.Capacity,
		CreatedAt:  engine.FormatTimestamp(l.CreatedAt),
		UpdatedAt:  engine.FormatTimestamp(l.UpdatedAt),
	}
}

// CreateLot handles POST /v1/lots.  The lot is created together with
// Capacity spots, all Available, in one atomic unit.  Returns 201 with the
// stored lot.
func (h *AdminHandler) CreateLot(c echo.Context) error {
	var req lotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	lot := &repository.Lot{
		Name:       req.Name,
		HourlyRate: req.HourlyRate,
		Address:    req.Address,
		PinCode:    req.PinCode,
		Capacity:   req.Capacity,
	}
	if err := h.Lots.Create(c.Request().Context(), lot); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, address, pin_code required; hourly_rate and capacity must be positive"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create lot failed"})
	}
	return c.JSON(http.StatusCreated, toLotResp(lot))
}

// UpdateLot handles PUT /v1/lots/:id.  Only metadata changes: name, rate,
// address, pin code.  Capacity is fixed at creation and rejected here.
func (h *AdminHandler) UpdateLot(c echo.Context) error {
	lotID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot id"})
	}
	var req lotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	existing, err := h.Lots.GetByID(c.Request().Context(), lotID)
	if err != nil {
		if errors.Is(err, repository.ErrLotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if req.Capacity != 0 && req.Capacity != existing.Capacity {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity cannot be changed"})
	}

	lot := &repository.Lot{
		ID:         lotID,
		Name:       req.Name,
		HourlyRate: req.HourlyRate,
		Address:    req.Address,
		PinCode:    req.PinCode,
	}
	if err := h.Lots.Update(c.Request().Context(), lot); err != nil {
		switch {
		case errors.Is(err, repository.ErrLotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		case errors.Is(err, repository.ErrInvalidInput):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, address, pin_code required; hourly_rate must be positive"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update lot failed"})
	}
	updated, err := h.Lots.GetByID(c.Request().Context(), lotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toLotResp(updated))
}

// DeleteLot handles DELETE /v1/lots/:id.  Deletion is refused while any
// spot in the lot is occupied; reservation history is retained either way.
func (h *AdminHandler) DeleteLot(c echo.Context) error {
	lotID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot id"})
	}
	if err := h.Lots.Delete(c.Request().Context(), lotID); err != nil {
		switch {
		case errors.Is(err, repository.ErrLotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		case errors.Is(err, repository.ErrLotNotEmpty):
			return c.JSON(http.StatusConflict, echo.Map{"error": "lot has occupied spots"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete lot failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListLotReservations handles GET /v1/lots/:id/reservations: all bookings
// ever made against the lot's spots, newest first.
func (h *AdminHandler) ListLotReservations(c echo.Context) error {
	lotID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Lots.GetByID(ctx, lotID); err != nil {
		if errors.Is(err, repository.ErrLotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	details, err := h.Res.ListByLot(ctx, lotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	items := make([]reservationDetailResp, 0, len(details))
	for i := range details {
		d := &details[i]
		items = append(items, reservationDetailResp{
			reservationResp: toReservationResp(&d.Reservation),
			LotID:           d.LotID,
			LotName:         d.LotName,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// LotSummary handles GET /v1/lots/:id/summary: revenue and booking count
// for one lot.
func (h *AdminHandler) LotSummary(c echo.Context) error {
	lotID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot id"})
	}
	sum, err := h.Lots.Summary(c.Request().Context(), lotID)
	if err != nil {
		if errors.Is(err, repository.ErrLotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load summary"})
	}
	return c.JSON(http.StatusOK, sum)
}

// Dashboard handles GET /v1/dashboard: system-wide totals.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	st, err := h.Lots.Dashboard(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load dashboard"})
	}
	return c.JSON(http.StatusOK, st)
}
