package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/marcolabs/marco-go-sdk/core"
)

// fixedClock pins tools to a known Melbourne-local instant.
func fixedClock(value string) func() time.Time {
	parsed, err := time.ParseInLocation("2006-01-02 15:04:05", value, melbourne)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return parsed }
}

func runTool(t *testing.T, tool core.Tool, input string) map[string]interface{} {
	t.Helper()
	result, err := tool.Execute(context.Background(), &core.ToolParams{Input: json.RawMessage(input)})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("tool failed: %s", result.Error)
	}
	data, ok := result.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data type %T", result.Data)
	}
	return data
}

func TestGetCurrentDate(t *testing.T) {
	tool := GetCurrentDate(fixedClock("2026-07-15 09:30:00"))
	data := runTool(t, tool, `{}`)

	if data["date"] != "2026-07-15" {
		t.Errorf("date = %v", data["date"])
	}
	if data["dayOfWeek"] != "Wednesday" {
		t.Errorf("dayOfWeek = %v", data["dayOfWeek"])
	}
	if data["season"] != "Winter" {
		t.Errorf("season = %v (July is winter in Melbourne)", data["season"])
	}

	helpful, ok := data["helpfulContext"].(map[string]interface{})
	if !ok {
		t.Fatal("helpfulContext missing")
	}
	if helpful["nextWeek"] != "2026-07-22" {
		t.Errorf("nextWeek = %v", helpful["nextWeek"])
	}
	if helpful["nextMonth"] != "2026-08-15" {
		t.Errorf("nextMonth = %v", helpful["nextMonth"])
	}
}

func TestSouthernSeasons(t *testing.T) {
	cases := map[time.Month]string{
		time.January: "Summer",
		time.April:   "Autumn",
		time.July:    "Winter",
		time.October: "Spring",
	}
	for month, want := range cases {
		if got := southernSeason(month); got != want {
			t.Errorf("southernSeason(%s) = %s, want %s", month, got, want)
		}
	}
}

func TestCalculateDateDifference(t *testing.T) {
	tool := CalculateDateDifference()
	data := runTool(t, tool, `{"start_date": "2026-03-01", "end_date": "2026-03-08"}`)

	if data["totalDays"] != 7 {
		t.Errorf("totalDays = %v", data["totalDays"])
	}
	if data["isValidRange"] != true {
		t.Errorf("isValidRange = %v", data["isValidRange"])
	}
	if data["message"] != "7 day trip (6 nights)" {
		t.Errorf("message = %v", data["message"])
	}
	if data["totalWeeks"] != 1.0 {
		t.Errorf("totalWeeks = %v", data["totalWeeks"])
	}
}

func TestCalculateDateDifferenceReversed(t *testing.T) {
	tool := CalculateDateDifference()
	data := runTool(t, tool, `{"start_date": "2026-03-08", "end_date": "2026-03-01"}`)

	if data["isValidRange"] != false {
		t.Errorf("isValidRange = %v for reversed range", data["isValidRange"])
	}
	if data["message"] != "End date is before start date!" {
		t.Errorf("message = %v", data["message"])
	}
}

func TestCalculateDateDifferenceBadInput(t *testing.T) {
	tool := CalculateDateDifference()
	result, err := tool.Execute(context.Background(), &core.ToolParams{
		Input: json.RawMessage(`{"start_date": "next tuesday", "end_date": "2026-03-01"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("malformed date accepted")
	}
}

func TestValidateTravelDatesLastMinute(t *testing.T) {
	tool := ValidateTravelDates(fixedClock("2026-03-01 08:00:00"))
	data := runTool(t, tool, `{"departure_date": "2026-03-04"}`)

	if data["bookingWindow"] != "Last Minute" {
		t.Errorf("bookingWindow = %v", data["bookingWindow"])
	}
	validation := data["validation"].(map[string]interface{})
	if len(validation["warnings"].([]string)) == 0 {
		t.Error("last-minute booking produced no warnings")
	}

	dates := data["dates"].(map[string]interface{})
	if dates["returnDate"] != "2026-03-11" {
		t.Errorf("default returnDate = %v, want departure+7d", dates["returnDate"])
	}
}

func TestValidateTravelDatesPastDeparture(t *testing.T) {
	tool := ValidateTravelDates(fixedClock("2026-03-10 08:00:00"))
	data := runTool(t, tool, `{"departure_date": "2026-03-01"}`)

	if data["isValid"] != false {
		t.Errorf("isValid = %v for past departure", data["isValid"])
	}
}

func TestValidateTravelDatesHoliday(t *testing.T) {
	tool := ValidateTravelDates(fixedClock("2026-11-01 08:00:00"))
	data := runTool(t, tool, `{"departure_date": "2026-12-25", "return_date": "2027-01-05"}`)

	validation := data["validation"].(map[string]interface{})
	warnings := validation["warnings"].([]string)
	found := false
	for _, w := range warnings {
		if w == "Travel dates include major holidays - expect higher prices and crowds" {
			found = true
		}
	}
	if !found {
		t.Errorf("no holiday warning in %v", warnings)
	}
	if data["bookingWindow"] != "Standard" {
		t.Errorf("bookingWindow = %v", data["bookingWindow"])
	}
}

func TestValidateTravelDatesAdvanceWindows(t *testing.T) {
	clock := fixedClock("2026-01-01 08:00:00")
	cases := []struct {
		departure string
		window    string
	}{
		{"2026-02-15", "Standard"},
		{"2026-05-01", "Advance"},
		{"2026-09-01", "Very Early"},
	}
	for _, tc := range cases {
		tool := ValidateTravelDates(clock)
		data := runTool(t, tool, `{"departure_date": "`+tc.departure+`"}`)
		if data["bookingWindow"] != tc.window {
			t.Errorf("departure %s: bookingWindow = %v, want %s", tc.departure, data["bookingWindow"], tc.window)
		}
	}
}

func TestBusinessDays(t *testing.T) {
	// Mon 2026-03-02 through Sun 2026-03-08: five weekdays.
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, melbourne)
	end := time.Date(2026, 3, 8, 0, 0, 0, 0, melbourne)
	if got := businessDays(start, end); got != 5 {
		t.Errorf("businessDays = %d, want 5", got)
	}
	if got := businessDays(end, start); got != 0 {
		t.Errorf("businessDays reversed = %d, want 0", got)
	}
}
