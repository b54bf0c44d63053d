package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/marcolabs/marco-go-sdk/core"
)

// melbourne is the reference timezone for all date tools. Falls back to
// a fixed AEST offset when the tz database is unavailable.
var melbourne = func() *time.Location {
	loc, err := time.LoadLocation("Australia/Melbourne")
	if err != nil {
		return time.FixedZone("AEST", 10*60*60)
	}
	return loc
}()

// holidays2026 are major Australian public holidays used for booking
// warnings.
var holidays2026 = map[string]bool{
	"2026-01-01": true, // New Year's Day
	"2026-01-26": true, // Australia Day
	"2026-04-25": true, // ANZAC Day
	"2026-12-25": true, // Christmas Day
	"2026-12-26": true, // Boxing Day
}

func southernSeason(month time.Month) string {
	switch month {
	case time.December, time.January, time.February:
		return "Summer"
	case time.March, time.April, time.May:
		return "Autumn"
	case time.June, time.July, time.August:
		return "Winter"
	default:
		return "Spring"
	}
}

// GetCurrentDate returns the current date/time tool. The clock can be
// injected for tests; pass nil for time.Now.
func GetCurrentDate(clock func() time.Time) core.Tool {
	if clock == nil {
		clock = time.Now
	}
	return New("get_current_date").
		Description("Get the current date and time. Use this when the user mentions relative dates like 'next month', 'in 2 weeks', 'this summer', or when you need today's date for calculations.").
		Schema(ObjectSchema(map[string]interface{}{})).
		Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			now := clock().In(melbourne)
			return &core.ToolResult{
				Success: true,
				Data: map[string]interface{}{
					"currentDateTime": now.Format("2006-01-02 15:04:05"),
					"date":            now.Format("2006-01-02"),
					"dayOfWeek":       now.Weekday().String(),
					"season":          southernSeason(now.Month()),
					"year":            now.Year(),
					"month":           now.Month().String(),
					"monthNumber":     int(now.Month()),
					"day":             now.Day(),
					"timeZone":        now.Format("MST (UTC-07)"),
					"location":        "Melbourne, Australia",
					"helpfulContext": map[string]interface{}{
						"nextWeek":       now.AddDate(0, 0, 7).Format("2006-01-02"),
						"nextMonth":      now.AddDate(0, 1, 0).Format("2006-01-02"),
						"threeMonthsOut": now.AddDate(0, 3, 0).Format("2006-01-02"),
					},
				},
			}, nil
		}).
		MustBuild()
}

// CalculateDateDifference returns the day-difference tool.
func CalculateDateDifference() core.Tool {
	return New("calculate_date_difference").
		Description("Calculate the number of days between two dates. Useful for determining trip duration, booking windows, and date validations.").
		Schema(ObjectSchema(map[string]interface{}{
			"start_date": StringProperty("Start date in YYYY-MM-DD format"),
			"end_date":   StringProperty("End date in YYYY-MM-DD format"),
		}, "start_date", "end_date")).
		Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input struct {
				StartDate string `json:"start_date"`
				EndDate   string `json:"end_date"`
			}
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return core.Errorf("invalid input: %v", err), nil
			}

			start, err := time.ParseInLocation("2006-01-02", input.StartDate, melbourne)
			if err != nil {
				return core.Errorf("invalid start_date %q, expected YYYY-MM-DD", input.StartDate), nil
			}
			end, err := time.ParseInLocation("2006-01-02", input.EndDate, melbourne)
			if err != nil {
				return core.Errorf("invalid end_date %q, expected YYYY-MM-DD", input.EndDate), nil
			}

			days := int(end.Sub(start).Hours() / 24)

			var message string
			switch {
			case days < 0:
				message = "End date is before start date!"
			case days == 0:
				message = "Same-day trip (0 nights)"
			default:
				message = fmt.Sprintf("%d day trip (%d nights)", days, days-1)
			}

			return &core.ToolResult{
				Success: true,
				Data: map[string]interface{}{
					"startDate":    input.StartDate,
					"endDate":      input.EndDate,
					"totalDays":    days,
					"totalWeeks":   math.Round(float64(days)/7.0*10) / 10,
					"businessDays": businessDays(start, end),
					"isValidRange": days >= 0,
					"message":      message,
				},
			}, nil
		}).
		MustBuild()
}

// ValidateTravelDates returns the booking-window validation tool.
func ValidateTravelDates(clock func() time.Time) core.Tool {
	if clock == nil {
		clock = time.Now
	}
	return New("validate_travel_dates").
		Description("Validate if travel dates are bookable. Checks booking windows, holiday dates, and provides recommendations.").
		Schema(ObjectSchema(map[string]interface{}{
			"departure_date": StringProperty("Departure date in YYYY-MM-DD format"),
			"return_date":    StringProperty("Return date in YYYY-MM-DD format (optional, defaults to one week after departure)"),
		}, "departure_date")).
		Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input struct {
				DepartureDate string `json:"departure_date"`
				ReturnDate    string `json:"return_date"`
			}
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return core.Errorf("invalid input: %v", err), nil
			}

			departure, err := time.ParseInLocation("2006-01-02", input.DepartureDate, melbourne)
			if err != nil {
				return core.Errorf("invalid departure_date %q, expected YYYY-MM-DD", input.DepartureDate), nil
			}

			ret := departure.AddDate(0, 0, 7)
			if input.ReturnDate != "" {
				ret, err = time.ParseInLocation("2006-01-02", input.ReturnDate, melbourne)
				if err != nil {
					return core.Errorf("invalid return_date %q, expected YYYY-MM-DD", input.ReturnDate), nil
				}
			}

			now := clock().In(melbourne)
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, melbourne)

			daysUntilDeparture := int(departure.Sub(today).Hours() / 24)
			tripDuration := int(ret.Sub(departure).Hours() / 24)

			var warnings, recommendations []string

			switch {
			case daysUntilDeparture < 0:
				warnings = append(warnings, "Departure date is in the past!")
			case daysUntilDeparture < 7:
				warnings = append(warnings, "Last-minute booking (<7 days). Expect higher prices and limited availability.")
				recommendations = append(recommendations, "Consider flexible dates for better deals")
			case daysUntilDeparture < 21:
				recommendations = append(recommendations, "Booking within 3 weeks - good time to lock in prices")
			case daysUntilDeparture > 330:
				warnings = append(warnings, "Booking very far in advance (>11 months). Flight schedules may change.")
				recommendations = append(recommendations, "Consider setting a price alert instead of booking now")
			}

			switch {
			case tripDuration < 0:
				warnings = append(warnings, "Return date is before departure date!")
			case tripDuration == 0:
				recommendations = append(recommendations, "Same-day return - very short trip!")
			case tripDuration > 21:
				recommendations = append(recommendations, "Extended trip (>3 weeks) - check visa requirements")
			}

			if holidays2026[departure.Format("2006-01-02")] || holidays2026[ret.Format("2006-01-02")] {
				warnings = append(warnings, "Travel dates include major holidays - expect higher prices and crowds")
			}

			isValid := daysUntilDeparture >= 0 && tripDuration >= 0

			var window string
			switch {
			case daysUntilDeparture < 7:
				window = "Last Minute"
			case daysUntilDeparture < 21:
				window = "Short Notice"
			case daysUntilDeparture < 90:
				window = "Standard"
			case daysUntilDeparture < 180:
				window = "Advance"
			default:
				window = "Very Early"
			}

			return &core.ToolResult{
				Success: true,
				Data: map[string]interface{}{
					"isValid": isValid,
					"dates": map[string]interface{}{
						"departure":          input.DepartureDate,
						"returnDate":         ret.Format("2006-01-02"),
						"daysUntilDeparture": daysUntilDeparture,
						"tripDuration":       tripDuration,
					},
					"validation": map[string]interface{}{
						"warnings":        warnings,
						"recommendations": recommendations,
					},
					"bookingWindow": window,
				},
			}, nil
		}).
		MustBuild()
}

func businessDays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}
