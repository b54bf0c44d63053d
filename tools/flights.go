package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/marcolabs/marco-go-sdk/core"
	"github.com/marcolabs/marco-go-sdk/memory"
)

// FlightsContainer is the store partition holding the flight catalog.
const FlightsContainer = "flights"

// Flight is one catalog entry. Profile is free text describing the
// flight's character; its embedding drives preference-ranked search.
type Flight struct {
	FlightNumber    string  `json:"flightNumber"`
	Airline         string  `json:"airline"`
	OriginCity      string  `json:"originCity"`
	OriginCode      string  `json:"originCode"`
	DestinationCity string  `json:"destinationCity"`
	DestinationCode string  `json:"destinationCode"`
	Departure       string  `json:"departure"`
	Arrival         string  `json:"arrival"`
	Price           float64 `json:"price"`
	Profile         string  `json:"flightProfile,omitempty"`
}

// FlightFinder searches the flight catalog, ranking matches by vector
// similarity to the user's stated preferences.
type FlightFinder struct {
	store    memory.Store
	embedder memory.Embedder
	scope    core.Scope
}

// NewFlightFinder creates a finder over the given store and scope.
func NewFlightFinder(store memory.Store, embedder memory.Embedder, scope core.Scope) *FlightFinder {
	return &FlightFinder{store: store, embedder: embedder, scope: scope}
}

// SeedCatalog writes the flights into the store, embedding each
// flight's profile text. Intended for startup seeding of demo data.
func (f *FlightFinder) SeedCatalog(ctx context.Context, flights []Flight) error {
	for _, flight := range flights {
		text := flight.Profile
		if text == "" {
			text = fmt.Sprintf("%s flight from %s to %s", flight.Airline, flight.OriginCity, flight.DestinationCity)
		}
		embedding, err := f.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("failed to embed flight %s: %w", flight.FlightNumber, err)
		}

		doc := memory.NewDocument(f.scope, "flight", text)
		doc.Embedding = embedding
		doc.Metadata = map[string]string{
			"flight_number":    flight.FlightNumber,
			"airline":          flight.Airline,
			"origin_city":      flight.OriginCity,
			"origin_code":      flight.OriginCode,
			"destination_city": flight.DestinationCity,
			"destination_code": flight.DestinationCode,
			"departure":        flight.Departure,
			"arrival":          flight.Arrival,
			"price":            strconv.FormatFloat(flight.Price, 'f', 2, 64),
		}
		if err := f.store.CreateDocument(ctx, FlightsContainer, doc); err != nil {
			return fmt.Errorf("failed to store flight %s: %w", flight.FlightNumber, err)
		}
	}
	log.Printf("[FLIGHTS] Seeded %d flights", len(flights))
	return nil
}

type flightMatch struct {
	Flight
	SimilarityRank int `json:"similarityRank,omitempty"`
}

// SearchTool returns the search_flights tool backed by this finder.
func (f *FlightFinder) SearchTool() core.Tool {
	return New("search_flights").
		Description("Search for available flights between two cities. Returns structured flight options with prices, times, and airline details. Supports semantic matching based on user preferences.").
		Schema(ObjectSchema(map[string]interface{}{
			"origin":           StringProperty("Departure city or airport (e.g., 'Melbourne', 'MEL')"),
			"destination":      StringProperty("Destination city or airport (e.g., 'Tokyo', 'NRT', 'Paris', 'CDG')"),
			"departure_date":   StringProperty("Departure date in YYYY-MM-DD format (optional)"),
			"return_date":      StringProperty("Return date in YYYY-MM-DD format (optional)"),
			"max_budget":       NumberProperty("Maximum budget in AUD (optional)"),
			"user_preferences": StringProperty("User preferences for flight characteristics (e.g., 'comfortable flight with entertainment', 'budget-friendly') (optional)"),
		}, "origin", "destination")).
		Handler(f.search).
		MustBuild()
}

func (f *FlightFinder) search(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
	var input struct {
		Origin          string  `json:"origin"`
		Destination     string  `json:"destination"`
		MaxBudget       float64 `json:"max_budget"`
		UserPreferences string  `json:"user_preferences"`
	}
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return core.Errorf("invalid input: %v", err), nil
	}
	if input.Origin == "" || input.Destination == "" {
		return core.Errorf("origin and destination are required"), nil
	}

	// The query embedding ranks results; preference text makes the
	// ranking meaningful, otherwise the route itself is embedded.
	queryText := input.UserPreferences
	if queryText == "" {
		queryText = fmt.Sprintf("flight from %s to %s", input.Origin, input.Destination)
	}
	embedding, err := f.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}

	docs, err := f.store.QuerySimilar(ctx, FlightsContainer, f.scope, embedding, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}

	var matches []flightMatch
	for rank, doc := range docs {
		flight := flightFromDocument(doc)
		if !matchesPlace(flight.OriginCity, flight.OriginCode, input.Origin) {
			continue
		}
		if !matchesPlace(flight.DestinationCity, flight.DestinationCode, input.Destination) {
			continue
		}
		if input.MaxBudget > 0 && flight.Price > input.MaxBudget {
			continue
		}
		m := flightMatch{Flight: flight}
		if input.UserPreferences != "" {
			m.SimilarityRank = rank + 1
		}
		matches = append(matches, m)
	}

	// Preference search keeps similarity order; otherwise cheapest first.
	if input.UserPreferences == "" {
		sort.Slice(matches, func(i, j int) bool {
			return matches[i].Price < matches[j].Price
		})
	}

	message := fmt.Sprintf("Found %d flight options for %s to %s", len(matches), input.Origin, input.Destination)
	if len(matches) == 0 {
		message = fmt.Sprintf("No flights found for %s to %s", input.Origin, input.Destination)
		if input.MaxBudget > 0 {
			message += fmt.Sprintf(" within budget of $%.2f", input.MaxBudget)
		}
	} else if input.UserPreferences != "" {
		message += " (ranked by preference match)"
	}

	return &core.ToolResult{
		Success: true,
		Data: map[string]interface{}{
			"searchCriteria": map[string]interface{}{
				"origin":                input.Origin,
				"destination":           input.Destination,
				"userPreferences":       input.UserPreferences,
				"semanticSearchEnabled": input.UserPreferences != "",
			},
			"totalResults": len(matches),
			"flights":      matches,
			"message":      message,
		},
	}, nil
}

func flightFromDocument(doc memory.Document) Flight {
	price, _ := strconv.ParseFloat(doc.Metadata["price"], 64)
	return Flight{
		FlightNumber:    doc.Metadata["flight_number"],
		Airline:         doc.Metadata["airline"],
		OriginCity:      doc.Metadata["origin_city"],
		OriginCode:      doc.Metadata["origin_code"],
		DestinationCity: doc.Metadata["destination_city"],
		DestinationCode: doc.Metadata["destination_code"],
		Departure:       doc.Metadata["departure"],
		Arrival:         doc.Metadata["arrival"],
		Price:           price,
		Profile:         doc.Content,
	}
}

func matchesPlace(city, code, query string) bool {
	query = strings.ToUpper(strings.TrimSpace(query))
	return strings.Contains(strings.ToUpper(city), query) ||
		strings.Contains(strings.ToUpper(code), query)
}

// DemoCatalog is a small set of flights for local development.
func DemoCatalog() []Flight {
	return []Flight{
		{
			FlightNumber: "QF35", Airline: "Qantas",
			OriginCity: "Melbourne", OriginCode: "MEL",
			DestinationCity: "Tokyo", DestinationCode: "NRT",
			Departure: "09:30", Arrival: "18:45", Price: 1450,
			Profile: "Full-service international flight with lie-flat business seats, premium entertainment, and included meals",
		},
		{
			FlightNumber: "JQ27", Airline: "Jetstar",
			OriginCity: "Melbourne", OriginCode: "MEL",
			DestinationCity: "Tokyo", DestinationCode: "NRT",
			Departure: "23:55", Arrival: "08:10", Price: 620,
			Profile: "Budget-friendly overnight red-eye flight, meals and baggage sold separately",
		},
		{
			FlightNumber: "QF9", Airline: "Qantas",
			OriginCity: "Melbourne", OriginCode: "MEL",
			DestinationCity: "Paris", DestinationCode: "CDG",
			Departure: "18:20", Arrival: "09:55", Price: 2380,
			Profile: "Long-haul premium flight with spacious cabin, quality dining, and extensive entertainment library",
		},
		{
			FlightNumber: "EK407", Airline: "Emirates",
			OriginCity: "Melbourne", OriginCode: "MEL",
			DestinationCity: "Paris", DestinationCode: "CDG",
			Departure: "21:40", Arrival: "13:20", Price: 1980,
			Profile: "Comfortable widebody flight via Dubai with generous baggage allowance and family-friendly service",
		},
		{
			FlightNumber: "NZ124", Airline: "Air New Zealand",
			OriginCity: "Melbourne", OriginCode: "MEL",
			DestinationCity: "Auckland", DestinationCode: "AKL",
			Departure: "07:15", Arrival: "12:30", Price: 410,
			Profile: "Short trans-Tasman hop, efficient boarding, ideal for weekend adventure trips",
		},
		{
			FlightNumber: "QF93", Airline: "Qantas",
			OriginCity: "Melbourne", OriginCode: "MEL",
			DestinationCity: "Los Angeles", DestinationCode: "LAX",
			Departure: "10:50", Arrival: "06:30", Price: 1720,
			Profile: "Direct trans-Pacific flight with premium economy available and solid in-flight entertainment",
		},
	}
}
