package tools

import (
	"context"

	"github.com/marcolabs/marco-go-sdk/core"
)

// UserContext carries the traveler's account defaults surfaced by the
// get_user_context tool.
type UserContext struct {
	FirstName         string   `json:"firstName"`
	LastName          string   `json:"lastName"`
	Email             string   `json:"email"`
	DefaultOrigin     string   `json:"defaultOrigin"`
	TimeZone          string   `json:"timeZone"`
	PreferredCurrency string   `json:"preferredCurrency"`
	PreferredLanguage string   `json:"preferredLanguage"`
	SeatPreference    string   `json:"seatPreference"`
	MealPreference    string   `json:"mealPreference"`
	Dietary           []string `json:"dietaryRequirements"`
}

// DefaultUserContext is the demo account used when no profile service
// is wired up.
var DefaultUserContext = UserContext{
	FirstName:         "John",
	LastName:          "Doe",
	Email:             "john.doe@marcolabs.io",
	DefaultOrigin:     "Melbourne",
	TimeZone:          "Australia/Melbourne (AEDT/AEST)",
	PreferredCurrency: "AUD",
	PreferredLanguage: "English",
	SeatPreference:    "Window",
	MealPreference:    "Vegetarian",
	Dietary:           []string{"Vegetarian"},
}

// GetUserContext returns the tool that surfaces the traveler's account
// defaults, used when the user mentions travel without naming an origin.
func GetUserContext(profile UserContext) core.Tool {
	return New("get_user_context").
		Description("Retrieves the user's travel profile including home city (default departure location), timezone, name, and preferences. Call this when the user mentions travel without specifying their origin city.").
		Schema(ObjectSchema(map[string]interface{}{})).
		Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			return &core.ToolResult{
				Success: true,
				Data: map[string]interface{}{
					"userProfile": profile,
					"message":     "User's default departure city is " + profile.DefaultOrigin,
				},
			}, nil
		}).
		MustBuild()
}
