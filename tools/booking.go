package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/marcolabs/marco-go-sdk/core"
)

// BookFlight returns the book_flight tool. Booking spends money, so the
// tool requires approval and only executes once the user confirms.
func BookFlight() core.Tool {
	return New("book_flight").
		Description("Book a flight for the user. This charges the user's stored payment method and requires their explicit approval. Always search for flights first and confirm the selection before booking.").
		Schema(ObjectSchema(map[string]interface{}{
			"flight_number":  StringProperty("Flight number from search results (e.g., 'QF35')"),
			"departure_date": StringProperty("Departure date in YYYY-MM-DD format"),
			"passenger_name": StringProperty("Full name of the passenger as it appears on their passport"),
			"seat":           StringEnumProperty("Seat preference", "window", "aisle", "middle"),
		}, "flight_number", "departure_date", "passenger_name")).
		RequiresApproval().
		Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input struct {
				FlightNumber  string `json:"flight_number"`
				DepartureDate string `json:"departure_date"`
				PassengerName string `json:"passenger_name"`
				Seat          string `json:"seat"`
			}
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return core.Errorf("invalid input: %v", err), nil
			}
			if input.FlightNumber == "" || input.DepartureDate == "" || input.PassengerName == "" {
				return core.Errorf("flight_number, departure_date, and passenger_name are required"), nil
			}

			confirmation := fmt.Sprintf("MRC-%s", uuid.New().String()[:8])
			log.Printf("[BOOKING] Confirmed %s on %s for %s (%s)",
				input.FlightNumber, input.DepartureDate, input.PassengerName, confirmation)

			return &core.ToolResult{
				Success: true,
				Data: map[string]interface{}{
					"confirmationNumber": confirmation,
					"flightNumber":       input.FlightNumber,
					"departureDate":      input.DepartureDate,
					"passengerName":      input.PassengerName,
					"seat":               input.Seat,
					"status":             "confirmed",
					"message":            fmt.Sprintf("Flight %s booked for %s. Confirmation: %s", input.FlightNumber, input.PassengerName, confirmation),
				},
			}, nil
		}).
		MustBuild()
}
