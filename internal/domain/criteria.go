package domain

import (
	"fmt"
	"strings"
	"time"
)

// Leg describes one direction of the journey being watched.
type Leg struct {
	Origin      string
	Destination string
	Departure   time.Time
}

// Route renders the leg as "Origin → Destination".
func (l Leg) Route() string {
	return fmt.Sprintf("%s → %s", l.Origin, l.Destination)
}

// Passengers holds the head count entered in the booking form.
type Passengers struct {
	Adults   int
	Children int
	Infants  int
}

// Total returns the number of travellers.
func (p Passengers) Total() int {
	return p.Adults + p.Children + p.Infants
}

// Vehicle describes the vehicle booked onto the sailing. An empty Type means foot passengers only.
type Vehicle struct {
	Type string
	Size string
}

// SearchCriteria is the fixed search a run performs against the booking site.
type SearchCriteria struct {
	Outbound   Leg
	Return     Leg
	Passengers Passengers
	Vehicle    Vehicle
}

// Validate reports the first inconsistency found in the criteria.
func (c SearchCriteria) Validate() error {
	legs := []struct {
		name string
		leg  Leg
	}{
		{name: "outbound", leg: c.Outbound},
		{name: "return", leg: c.Return},
	}
	for _, l := range legs {
		if strings.TrimSpace(l.leg.Origin) == "" {
			return fmt.Errorf("%s origin cannot be empty", l.name)
		}
		if strings.TrimSpace(l.leg.Destination) == "" {
			return fmt.Errorf("%s destination cannot be empty", l.name)
		}
		if strings.EqualFold(l.leg.Origin, l.leg.Destination) {
			return fmt.Errorf("%s origin and destination must differ", l.name)
		}
		if l.leg.Departure.IsZero() {
			return fmt.Errorf("%s departure cannot be empty", l.name)
		}
	}

	if c.Return.Departure.Before(c.Outbound.Departure) {
		return fmt.Errorf("return departure (%s) cannot precede outbound departure (%s)",
			c.Return.Departure.Format(time.RFC3339),
			c.Outbound.Departure.Format(time.RFC3339),
		)
	}

	if c.Passengers.Adults < 0 || c.Passengers.Children < 0 || c.Passengers.Infants < 0 {
		return fmt.Errorf("passenger counts cannot be negative")
	}
	if c.Passengers.Adults == 0 {
		return fmt.Errorf("at least one adult is required")
	}

	return nil
}
