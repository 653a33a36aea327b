// Package calmac holds the Caledonian MacBrayne booking site profile.
package calmac

import "github.com/sglre6355/ferry-watch/internal/usecase"

const (
	// BookingURL is the public entry point of the CalMac ticketing app.
	BookingURL = "https://ticketing.calmac.co.uk/B2C-Calmac/"
	// SearchURL opens the destination step of the booking flow directly.
	SearchURL = BookingURL + "#/desktop/step1/destinations/single"
)

// Site returns the CalMac layout. Selectors are ordered from most to least specific.
func Site() usecase.SiteLayout {
	return usecase.SiteLayout{
		Operator:   "CalMac",
		SearchURL:  SearchURL,
		BookingURL: BookingURL,
		Form: usecase.FormLayout{
			Outbound: usecase.LegLayout{
				Ready: []string{"form", ".booking-form", ".search-form"},
				JourneyType: []string{
					`input[type="radio"][value="return"]`,
					`input[name="journeyType"][value="return"]`,
					".return-journey input",
				},
				Origin: []string{
					`select[name="departurePort"]`,
					"#departurePort",
					".departure-port select",
				},
				Destination: []string{
					`select[name="arrivalPort"]`,
					"#arrivalPort",
					".arrival-port select",
				},
				Date: []string{
					`input[name="departureDate"]`,
					"#departureDate",
					".outbound-date input",
					`input[type="date"]`,
				},
				Submit: searchButtons(),
			},
			// The return ports follow from the outbound selection.
			Return: usecase.LegLayout{
				Ready: []string{
					`input[name="returnDate"]`,
					"#returnDate",
					".return-date input",
				},
				Date: []string{
					`input[name="returnDate"]`,
					"#returnDate",
					".return-date input",
					`input[type="date"]:nth-of-type(2)`,
				},
				Submit: searchButtons(),
			},
			Adults: []string{
				`input[name="adults"]`,
				"#adults",
				".adults-count input",
				`input[placeholder*="Adult"]`,
			},
			Children: []string{
				`input[name="children"]`,
				"#children",
				".children-count input",
				`input[placeholder*="Child"]`,
			},
			Infants: []string{
				`input[name="infants"]`,
				"#infants",
				".infants-count input",
				`input[placeholder*="Infant"]`,
			},
			AddVehicle:  []string{".add-vehicle", "#addVehicle"},
			VehicleType: []string{`select[name="vehicleType"]`, "#vehicleType", ".vehicle-type"},
			VehicleSize: []string{`select[name="vehicleSize"]`, "#vehicleSize", ".vehicle-size"},
		},
		Results: usecase.ResultsLayout{
			Ready: []string{
				".results",
				".ferry-results",
				".availability",
				".no-availability",
				".error-message",
			},
			Containers: []string{
				".results",
				".ferry-results",
				".availability",
			},
			AvailableSelectors: []string{
				".available",
				".booking-available",
				".ferry-available",
				`[data-available="true"]`,
				".price",
				".fare",
			},
			AvailableKeywords: []string{"book now", "select this sailing"},
			UnavailableSelectors: []string{
				".unavailable",
				".sold-out",
				".no-availability",
			},
			UnavailableKeywords: []string{"not available", "sold out", "no availability", "fully booked"},
		},
	}
}

func searchButtons() []string {
	return []string{
		`input[type="submit"]`,
		".search-button",
		"#searchButton",
		`button[type="submit"]`,
		".btn-search",
	}
}
