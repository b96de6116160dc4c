package handler

import (
	"encoding/json" // SSE payload encoding
	"fmt"
	"net/http" // HTTP status codes
	"time"

	"github.com/labstack/echo/v4" // Echo web framework
	"github.com/sirupsen/logrus"

	"github.com/kututa/railway-booking/internal/model"
	"github.com/kututa/railway-booking/internal/realtime"
	"github.com/kututa/railway-booking/internal/service"
)

// defaultKeepAlive is how often an idle seat stream sends a comment line
// so proxies keep the connection open.
const defaultKeepAlive = 25 * time.Second

// SeatHandler exposes the seat map, seat holds and the live seat change
// stream of a train on a travel date.
type SeatHandler struct {
	Locks     *service.SeatLockManager
	Feed      realtime.Feed
	Log       logrus.FieldLogger
	KeepAlive time.Duration
}

// NewSeatHandler constructs a SeatHandler.  locks and feed must be non-nil.
func NewSeatHandler(locks *service.SeatLockManager, feed realtime.Feed, log logrus.FieldLogger) *SeatHandler {
	if locks == nil || feed == nil {
		panic("nil dependency passed to NewSeatHandler")
	}
	return &SeatHandler{Locks: locks, Feed: feed, Log: log, KeepAlive: defaultKeepAlive}
}

type seatMapQuery struct {
	ClassID    string `query:"class_id" json:"class_id" validate:"required"`
	TravelDate string `query:"date" json:"date" validate:"required,travel_date"`
}

// Map handles GET /v1/trains/:id/seats?class_id=&date=.  Each seat is
// reported as available, selected (held by the caller), locked (held by
// someone else) or booked.
func (h *SeatHandler) Map(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errUnauthorized)
	}
	q := seatMapQuery{ClassID: c.QueryParam("class_id"), TravelDate: c.QueryParam("date")}
	if err := c.Validate(&q); err != nil {
		return writeError(c, err)
	}
	seats, err := h.Locks.SeatMap(c.Request().Context(), c.Param("id"), q.ClassID, q.TravelDate, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"train_id":    c.Param("id"),
		"class_id":    q.ClassID,
		"travel_date": q.TravelDate,
		"seats":       seats,
	})
}

type holdRequest struct {
	TravelDate string `json:"travel_date" validate:"required,travel_date"`
}

// Hold handles POST /v1/trains/:id/seats/:seat_id/hold.  The body carries
// the travel date.  Holding a seat the caller already holds extends the
// hold.  A seat held by another passenger or already booked answers 409.
func (h *SeatHandler) Hold(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errUnauthorized)
	}
	var body holdRequest
	if err := bindAndValidate(c, &body); err != nil {
		return writeError(c, err)
	}
	key := model.SeatKey{SeatID: c.Param("seat_id"), TrainID: c.Param("id"), TravelDate: body.TravelDate}
	hold, err := h.Locks.Acquire(c.Request().Context(), key, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"hold_token": hold.HoldToken,
		"seat_id":    hold.Key.SeatID,
		"train_id":   hold.Key.TrainID,
		"date":       hold.Key.TravelDate,
		"expires_at": hold.ExpiresAt,
	})
}

// Release handles DELETE /v1/trains/:id/seats/:seat_id/hold?date=.  It
// answers 204 whether or not the caller still held the seat.
func (h *SeatHandler) Release(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errUnauthorized)
	}
	q := holdRequest{TravelDate: c.QueryParam("date")}
	if err := c.Validate(&q); err != nil {
		return writeError(c, err)
	}
	key := model.SeatKey{SeatID: c.Param("seat_id"), TrainID: c.Param("id"), TravelDate: q.TravelDate}
	if err := h.Locks.Release(c.Request().Context(), key, userID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Stream handles GET /v1/trains/:id/seats/stream?date= as Server-Sent
// Events.  Every seat change of the train on that date is sent as a
// "seat" event until the client disconnects.
func (h *SeatHandler) Stream(c echo.Context) error {
	q := holdRequest{TravelDate: c.QueryParam("date")}
	if err := c.Validate(&q); err != nil {
		return writeError(c, err)
	}
	trainID := c.Param("id")
	ctx := c.Request().Context()
	changes, cancel, err := h.Feed.Subscribe(ctx, trainID, q.TravelDate)
	if err != nil {
		return writeError(c, &service.UpstreamError{Op: "subscribe seat changes", Err: err})
	}
	defer cancel()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	w.Flush()

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-changes:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ch)
			if err != nil {
				h.Log.WithError(err).Warn("encode seat change")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: seat\ndata: %s\n\n", data); err != nil {
				return nil
			}
			w.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
