package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/kututa/railway-booking/internal/model"
)

// TrainRepo reads the train catalog: trains with their route and
// stations, and the classes of each train.
type TrainRepo struct {
	db *sql.DB
}

// NewTrainRepo returns a new TrainRepo bound to the given database.
func NewTrainRepo(db *sql.DB) *TrainRepo { return &TrainRepo{db: db} }

const trainSelect = `SELECT t.id, t.name, t.number, t.departure_time, t.arrival_time, t.is_active,
       r.id, r.name, r.distance_km, r.duration_minutes,
       o.id, o.name, o.code, o.city,
       d.id, d.name, d.code, d.city
FROM trains t
JOIN routes r ON r.id = t.route_id
JOIN stations o ON o.id = r.origin_station_id
JOIN stations d ON d.id = r.destination_station_id`

// Search lists active trains, optionally filtered by origin and
// destination station code (case insensitive).
func (r *TrainRepo) Search(ctx context.Context, from, to string) ([]model.Train, error) {
	where := []string{"t.is_active = 1"}
	args := []any{}
	if from != "" {
		where = append(where, "UPPER(o.code) = ?")
		args = append(args, strings.ToUpper(from))
	}
	if to != "" {
		where = append(where, "UPPER(d.code) = ?")
		args = append(args, strings.ToUpper(to))
	}
	q := trainSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY t.departure_time"

	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Train
	for rows.Next() {
		t, err := scanTrain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get returns a train or ErrNotFound.
func (r *TrainRepo) Get(ctx context.Context, id string) (model.Train, error) {
	t, err := scanTrain(conn(ctx, r.db).QueryRowContext(ctx, trainSelect+" WHERE t.id = ?", id))
	if err != nil {
		return model.Train{}, notFound(err)
	}
	return t, nil
}

const classSelect = `SELECT c.id, c.train_id, c.class_type, c.total_seats, c.price_per_km, r.distance_km
FROM train_classes c
JOIN trains t ON t.id = c.train_id
JOIN routes r ON r.id = t.route_id`

// ListClasses returns the classes of a train with the route distance
// filled in so fares can be computed.
func (r *TrainRepo) ListClasses(ctx context.Context, trainID string) ([]model.TrainClass, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, classSelect+" WHERE c.train_id = ? ORDER BY c.price_per_km", trainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TrainClass
	for rows.Next() {
		var c model.TrainClass
		if err := rows.Scan(&c.ID, &c.TrainID, &c.ClassType, &c.TotalSeats, &c.PricePerKM, &c.DistanceKM); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetClass returns one class with its route distance or ErrNotFound.
func (r *TrainRepo) GetClass(ctx context.Context, classID string) (model.TrainClass, error) {
	var c model.TrainClass
	err := conn(ctx, r.db).QueryRowContext(ctx, classSelect+" WHERE c.id = ?", classID).
		Scan(&c.ID, &c.TrainID, &c.ClassType, &c.TotalSeats, &c.PricePerKM, &c.DistanceKM)
	if err != nil {
		return model.TrainClass{}, notFound(err)
	}
	return c, nil
}

func scanTrain(s rowScanner) (model.Train, error) {
	var t model.Train
	err := s.Scan(&t.ID, &t.Name, &t.Number, &t.DepartureTime, &t.ArrivalTime, &t.IsActive,
		&t.Route.ID, &t.Route.Name, &t.Route.DistanceKM, &t.Route.DurationMinutes,
		&t.Route.Origin.ID, &t.Route.Origin.Name, &t.Route.Origin.Code, &t.Route.Origin.City,
		&t.Route.Destination.ID, &t.Route.Destination.Name, &t.Route.Destination.Code, &t.Route.Destination.City,
	)
	return t, err
}
