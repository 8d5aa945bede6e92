package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-reservation/internal/engine"
	"github.com/iliyamo/parking-lot-reservation/internal/queue"
	"github.com/iliyamo/parking-lot-reservation/internal/repository"
	queue_publisher "github.com/iliyamo/parking-lot-reservation/internal/service"
)

// BookingHandler serves the user-facing reservation endpoints.  It delegates
// all state transitions to the engine; the handler only translates HTTP to
// engine calls and sentinel errors back to status codes.  Event publishing
// happens after commit and never fails the request.
type BookingHandler struct {
	Engine *engine.Engine
	Lots   *repository.LotRepo
	Res    *repository.ReservationRepo
}

// NewBookingHandler constructs a BookingHandler.  All dependencies must be
// non-nil.
func NewBookingHandler(eng *engine.Engine, lots *repository.LotRepo, res *repository.ReservationRepo) *BookingHandler {
	if eng == nil || lots == nil || res == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Engine: eng, Lots: lots, Res: res}
}

type allocateReq struct {
	// Optional start timestamp in "2006-01-02 15:04:05" (UTC); empty means now.
	ParkingTimestamp string `json:"parking_timestamp"`
}

type releaseReq struct {
	// Optional end timestamp in the same layout; empty means now.
	LeavingTimestamp string `json:"leaving_timestamp"`
}

type reservationResp struct {
	ID               uint64   `json:"id"`
	SpotID           uint64   `json:"spot_id"`
	UserID           uint64   `json:"user_id"`
	ParkingTimestamp string   `json:"parking_timestamp"`
	LeavingTimestamp *string  `json:"leaving_timestamp"`
	ParkingCost      *float64 `json:"parking_cost"`
}

func toReservationResp(r *repository.Reservation) reservationResp {
	out := reservationResp{
		ID:               r.ID,
		SpotID:           r.SpotID,
		UserID:           r.UserID,
		ParkingTimestamp: engine.FormatTimestamp(r.ParkingTimestamp),
		ParkingCost:      r.ParkingCost,
	}
	if r.LeavingTimestamp != nil {
		s := engine.FormatTimestamp(*r.LeavingTimestamp)
		out.LeavingTimestamp = &s
	}
	return out
}

// Allocate handles POST /v1/lots/:id/allocate.  It books one available spot
// in the lot for the current user.  Returns 201 with the open reservation,
// 404 when the lot does not exist and 409 when the lot is full.
func (h *BookingHandler) Allocate(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	lotID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot id"})
	}

	var req allocateReq
	_ = c.Bind(&req) // body is optional
	var start time.Time
	if s := strings.TrimSpace(req.ParkingTimestamp); s != "" {
		start, err = engine.ParseTimestamp(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid parking_timestamp"})
		}
	}

	ctx := c.Request().Context()
	res, err := h.Engine.Allocate(ctx, lotID, userID, start)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		case errors.Is(err, repository.ErrNoAvailableSpot):
			return c.JSON(http.StatusConflict, echo.Map{"error": "no available spot"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "allocation failed"})
	}

	// Best effort: the booking is committed, a broker outage must not undo it.
	if lot, lerr := h.Lots.GetByID(ctx, lotID); lerr == nil {
		_ = queue_publisher.PublishSpotBooked(ctx, queue.SpotBookedEvent{
			ReservationID: res.ID,
			UserID:        userID,
			LotID:         lot.ID,
			LotName:       lot.Name,
			SpotID:        res.SpotID,
			ParkedAt:      engine.FormatTimestamp(res.ParkingTimestamp),
		})
	}

	return c.JSON(http.StatusCreated, toReservationResp(res))
}

// Release handles POST /v1/reservations/:id/release.  It closes the current
// user's open reservation, computing the cost and freeing the spot.  Returns
// 200 with the closed reservation including the cost; 404 when the
// reservation does not exist, 403 when it belongs to another user, 409 when
// it is already closed and 400 when the leaving timestamp precedes parking.
func (h *BookingHandler) Release(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	var req releaseReq
	_ = c.Bind(&req)
	var end time.Time
	if s := strings.TrimSpace(req.LeavingTimestamp); s != "" {
		end, err = engine.ParseTimestamp(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid leaving_timestamp"})
		}
	}

	ctx := c.Request().Context()
	res, err := h.Engine.Release(ctx, resID, userID, end)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrNotOwner):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrAlreadyClosed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already closed"})
		case errors.Is(err, repository.ErrInvalidInterval):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "leaving_timestamp precedes parking_timestamp"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "release failed"})
	}

	if lot, lerr := h.Lots.BySpot(ctx, res.SpotID); lerr == nil {
		var cost float64
		if res.ParkingCost != nil {
			cost = *res.ParkingCost
		}
		_ = queue_publisher.PublishSpotReleased(ctx, queue.SpotReleasedEvent{
			ReservationID: res.ID,
			UserID:        userID,
			LotID:         lot.ID,
			LotName:       lot.Name,
			SpotID:        res.SpotID,
			ParkedAt:      engine.FormatTimestamp(res.ParkingTimestamp),
			LeftAt:        engine.FormatTimestamp(*res.LeavingTimestamp),
			Cost:          cost,
		})
	}

	return c.JSON(http.StatusOK, toReservationResp(res))
}

type reservationDetailResp struct {
	reservationResp
	LotID   *uint64 `json:"lot_id"`
	LotName *string `json:"lot_name"`
}

// ListMyReservations handles GET /v1/my-reservations: the current user's
// full booking history, newest first.
func (h *BookingHandler) ListMyReservations(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Res.ListByUser(c.Request().Context(), userID)
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

// MySummary handles GET /v1/my-summary: booking counts and total spend for
// the current user.
func (h *BookingHandler) MySummary(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sum, err := h.Res.SummaryByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load summary"})
	}
	return c.JSON(http.StatusOK, sum)
}
