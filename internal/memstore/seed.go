package memstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kututa/railway-booking/internal/model"
)

// AddStation inserts or replaces a station.
func (s *Store) AddStation(st model.Station) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.stations[st.ID] = st
}

// AddRoute inserts a route between two stations added earlier.
func (s *Store) AddRoute(id, name, originID, destinationID string, distanceKM float64, minutes int) model.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := model.Route{
		ID:              id,
		Name:            name,
		Origin:          s.st.stations[originID],
		Destination:     s.st.stations[destinationID],
		DistanceKM:      distanceKM,
		DurationMinutes: minutes,
	}
	s.st.routes[id] = r
	return r
}

// AddTrain inserts a train running routeID.
func (s *Store) AddTrain(t model.Train, routeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.trains[t.ID] = trainRow{train: t, routeID: routeID}
}

// AddClass inserts a train class together with its seats, numbered
// 1A, 1B, 1C, 1D, 2A... with A and D at the window.
func (s *Store) AddClass(c model.TrainClass) []model.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.classes[c.ID] = c
	seats := make([]model.Seat, 0, c.TotalSeats)
	letters := "ABCD"
	for i := 0; i < c.TotalSeats; i++ {
		letter := letters[i%4]
		number := fmt.Sprintf("%d%c", i/4+1, letter)
		seat := model.Seat{
			ID:           stableID(c.ID + "/" + number),
			TrainClassID: c.ID,
			SeatNumber:   number,
			IsWindow:     letter == 'A' || letter == 'D',
			CreatedAt:    time.Now().UTC(),
		}
		s.st.seats[seat.ID] = seat
		seats = append(seats, seat)
	}
	return seats
}

// SeedDemo loads a small catalog: the Mombasa - Nairobi and
// Nairobi - Naivasha services in both directions.
func (s *Store) SeedDemo() {
	stations := []model.Station{
		{Name: "Nairobi Terminus", Code: "NRB", City: "Nairobi"},
		{Name: "Mombasa Terminus", Code: "MSA", City: "Mombasa"},
		{Name: "Naivasha", Code: "NVS", City: "Naivasha"},
	}
	for i := range stations {
		stations[i].ID = stableID("station/" + stations[i].Code)
		s.AddStation(stations[i])
	}
	nrb, msa, nvs := stations[0].ID, stations[1].ID, stations[2].ID

	type service struct {
		number, name, from, to string
		km                     float64
		minutes                int
		dep, arr               string
	}
	services := []service{
		{"1A", "Madaraka Express", msa, nrb, 472, 300, "08:00:00", "13:00:00"},
		{"2A", "Madaraka Express", nrb, msa, 472, 300, "08:00:00", "13:00:00"},
		{"3N", "Naivasha Shuttle", nrb, nvs, 120, 135, "07:30:00", "09:45:00"},
		{"4N", "Naivasha Shuttle", nvs, nrb, 120, 135, "15:30:00", "17:45:00"},
	}
	for _, sv := range services {
		routeID := stableID("route/" + sv.number)
		r := s.AddRoute(routeID, "", sv.from, sv.to, sv.km, sv.minutes)
		s.mu.Lock()
		r.Name = r.Origin.City + " - " + r.Destination.City
		s.st.routes[routeID] = r
		s.mu.Unlock()

		trainID := stableID("train/" + sv.number)
		s.AddTrain(model.Train{
			ID:            trainID,
			Name:          sv.name,
			Number:        sv.number,
			DepartureTime: sv.dep,
			ArrivalTime:   sv.arr,
			IsActive:      true,
			CreatedAt:     time.Now().UTC(),
		}, routeID)

		s.AddClass(model.TrainClass{ID: stableID("class/" + sv.number + "/economy"), TrainID: trainID,
			ClassType: "economy", TotalSeats: 40, PricePerKM: 2.12})
		s.AddClass(model.TrainClass{ID: stableID("class/" + sv.number + "/first_class"), TrainID: trainID,
			ClassType: "first_class", TotalSeats: 24, PricePerKM: 6.36})
	}
}

// stableID derives a uuid from name so seeded ids survive restarts.
func stableID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("kututa-railway/"+name)).String()
}
