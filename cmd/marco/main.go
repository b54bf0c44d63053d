// Marco: a multi-agent travel assistant. A silent triage step routes
// each turn to a trip-advisor or flight-search specialist; both carry a
// memory pipeline that learns the traveler's profile and recalls
// similar past conversation.
package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/marcolabs/marco-go-sdk/core"
	"github.com/marcolabs/marco-go-sdk/llm"
	"github.com/marcolabs/marco-go-sdk/memory"
	"github.com/marcolabs/marco-go-sdk/memory/embedder/cached"
	"github.com/marcolabs/marco-go-sdk/memory/history"
	"github.com/marcolabs/marco-go-sdk/memory/profile"
	"github.com/marcolabs/marco-go-sdk/memory/store/chromem"
	"github.com/marcolabs/marco-go-sdk/router"
	"github.com/marcolabs/marco-go-sdk/server"
	"github.com/marcolabs/marco-go-sdk/tools"
)

const appID = "marco-travel"

func main() {
	// .env is optional; system env vars win.
	_ = godotenv.Load()

	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	if anthropicKey == "" {
		log.Fatal("ANTHROPIC_API_KEY environment variable is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	client := llm.NewAnthropicClient(anthropicKey)

	// Vector store: persistent when MARCO_DATA_DIR is set.
	var store *chromem.Store
	var err error
	if dir := os.Getenv("MARCO_DATA_DIR"); dir != "" {
		store, err = chromem.NewPersistent(dir + "/vectors")
	} else {
		store, err = chromem.New()
	}
	if err != nil {
		log.Fatalf("Failed to open vector store: %v", err)
	}
	defer store.Close()

	base, err := newEmbedder(os.Getenv("MARCO_EMBEDDER"))
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	embedder, err := cached.New(base, 4096)
	if err != nil {
		log.Fatalf("Failed to create embedding cache: %v", err)
	}
	defer embedder.Close()

	// Traveler profiles: SQLite when MARCO_PROFILE_DB is set, otherwise
	// in-memory.
	var profiles profile.Store
	if path := os.Getenv("MARCO_PROFILE_DB"); path != "" {
		profiles, err = profile.NewSQLiteStore(path)
		if err != nil {
			log.Fatalf("Failed to open profile store: %v", err)
		}
	} else {
		profiles = profile.NewMemoryStore()
	}
	defer profiles.Close()

	// Flight catalog shared by every conversation.
	catalogScope := core.Scope{ApplicationID: appID, AgentID: "catalog"}
	finder := tools.NewFlightFinder(store, embedder, catalogScope)
	if err := finder.SeedCatalog(context.Background(), tools.DemoCatalog()); err != nil {
		log.Fatalf("Failed to seed flight catalog: %v", err)
	}

	memoryFactory := func(scope core.Scope) (memory.Provider, error) {
		profileProvider, err := profile.New(profile.Config{
			Store:  profiles,
			Client: client,
			Scope:  scope,
		})
		if err != nil {
			return nil, err
		}
		historyProvider, err := history.New(history.Config{
			Store:      store,
			Embedder:   embedder,
			WriteScope: scope,
		})
		if err != nil {
			return nil, err
		}
		return memory.NewPipeline(profileProvider, historyProvider)
	}

	commonTools := []core.Tool{
		tools.GetUserContext(tools.DefaultUserContext),
		tools.GetCurrentDate(nil),
		tools.CalculateDateDifference(),
		tools.ValidateTravelDates(nil),
	}

	triage := &router.Definition{
		Name:         "triage_agent",
		Description:  "Routes travel requests to the appropriate specialist agent",
		Instructions: triageInstructions,
		Tools:        tools.NewRegistry(commonTools...),
	}
	tripAdvisor := &router.Definition{
		Name:         "trip_advisor_agent",
		Description:  "Provides destination recommendations and general travel advice",
		Instructions: tripAdvisorInstructions,
		Tools:        tools.NewRegistry(commonTools...),
		Memory:       memoryFactory,
	}
	flightSearch := &router.Definition{
		Name:         "flight_search_agent",
		Description:  "Searches and recommends flights for a chosen destination. Helps users compare flight options and validate travel dates.",
		Instructions: flightSearchInstructions,
		Tools: tools.NewRegistry(append(commonTools,
			finder.SearchTool(),
			tools.BookFlight(),
		)...),
		Memory: memoryFactory,
	}

	r, err := router.New(client, triage.Name,
		[]*router.Definition{triage, tripAdvisor, flightSearch},
		[]router.Edge{
			{
				From:      triage.Name,
				To:        tripAdvisor.Name,
				Condition: "User asks general travel questions (costs, best time to visit, what to see) OR asks questions about existing trips OR wants to plan a new trip.",
			},
			{
				From:      triage.Name,
				To:        flightSearch.Name,
				Condition: "User wants to search for flights, find flights, look for flights, book flights, or asks about flight options, prices, schedules, or travel dates. Includes requests like 'find flights from X to Y', 'show me flights', 'search flights'.",
			},
		},
	)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	srv, err := server.New(server.Config{
		Router:        r,
		ApplicationID: appID,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	log.Printf("Marco travel assistant listening on :%s", port)
	log.Printf("WebSocket endpoint: ws://localhost:%s/ws", port)
	log.Printf("Health check: http://localhost:%s/health", port)
	if err := srv.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
