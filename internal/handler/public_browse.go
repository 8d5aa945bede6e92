package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-reservation/internal/repository"
)

// PublicHandler serves the unauthenticated browse endpoints: lot listings
// with live availability, per-lot detail and occupancy snapshots.  These are
// the only routes behind the response cache; anything that mutates state
// never is.
type PublicHandler struct {
	Lots  *repository.LotRepo
	Spots *repository.SpotRepo
}

// NewPublicHandler constructs a PublicHandler.  Both repositories must be
// non-nil.
func NewPublicHandler(lots *repository.LotRepo, spots *repository.SpotRepo) *PublicHandler {
	if lots == nil || spots == nil {
		panic("nil repository passed to NewPublicHandler")
	}
	return &PublicHandler{Lots: lots, Spots: spots}
}

type lotListItem struct {
	lotResp
	AvailableSpots uint32 `json:"available_spots"`
	OccupiedSpots  uint32 `json:"occupied_spots"`
}

// ListLots handles GET /v1/lots: every lot with its live availability
// counts, ordered by id.
func (h *PublicHandler) ListLots(c echo.Context) error {
	lots, err := h.Lots.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load lots"})
	}
	items := make([]lotListItem, 0, len(lots))
	for i := range lots {
		la := &lots[i]
		items = append(items, lotListItem{
			lotResp:        toLotResp(&la.Lot),
			AvailableSpots: la.AvailableSpots,
			OccupiedSpots:  la.OccupiedSpots,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetLot handles GET /v1/lots/:id.
func (h *PublicHandler) GetLot(c echo.Context) error {
	lotID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot id"})
	}
	lot, err := h.Lots.GetByID(c.Request().Context(), lotID)
	if err != nil {
		if errors.Is(err, repository.ErrLotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toLotResp(lot))
}

type spotItem struct {
	ID     uint64 `json:"id"`
	LotID  uint64 `json:"lot_id"`
	Status string `json:"status"` // "A" or "O"
}

// ListSpots handles GET /v1/lots/:id/spots: the lot's spots in stable
// creation order with their current status.
func (h *PublicHandler) ListSpots(c echo.Context) error {
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
	spots, err := h.Spots.ListByLot(ctx, lotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load spots"})
	}
	items := make([]spotItem, 0, len(spots))
	for _, s := range spots {
		items = append(items, spotItem{ID: s.ID, LotID: s.LotID, Status: s.Status})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Snapshot handles GET /v1/lots/:id/snapshot: the lot's occupancy counts
// plus the ordered per-spot occupied flags, suitable for a map view.
func (h *PublicHandler) Snapshot(c echo.Context) error {
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
	snap, err := h.Spots.Snapshot(ctx, lotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to build snapshot"})
	}
	return c.JSON(http.StatusOK, snap)
}
