package profile

import (
	"fmt"
	"strings"
)

// MaxInterests caps how many interests a profile accumulates.
const MaxInterests = 5

// PastTrip records a previously visited destination and an optional
// 1-5 rating of the trip.
type PastTrip struct {
	Destination string `json:"destination"`
	Rating      int    `json:"rating,omitempty"`
}

// Profile holds what the assistant has learned about a traveler.
// Fields are filled in gradually from conversation; once a scalar
// field is set it is never overwritten by later extractions.
type Profile struct {
	TravelStyle         string     `json:"travelStyle,omitempty"`
	BudgetRange         string     `json:"budgetRange,omitempty"`
	Interests           []string   `json:"interests,omitempty"`
	PastTrips           []PastTrip `json:"pastTrips,omitempty"`
	Travelers           *int       `json:"travelers,omitempty"`
	TripDuration        string     `json:"tripDuration,omitempty"`
	DietaryRequirements string     `json:"dietaryRequirements,omitempty"`
}

// Merge folds an extracted profile into p. Scalar fields keep their
// first value; interests and past trips are unioned case-insensitively.
// It reports whether p changed.
func (p *Profile) Merge(extracted *Profile) bool {
	if extracted == nil {
		return false
	}

	changed := false

	if p.TravelStyle == "" && extracted.TravelStyle != "" {
		p.TravelStyle = extracted.TravelStyle
		changed = true
	}
	if p.BudgetRange == "" && extracted.BudgetRange != "" {
		p.BudgetRange = extracted.BudgetRange
		changed = true
	}
	if p.Travelers == nil && extracted.Travelers != nil {
		v := *extracted.Travelers
		p.Travelers = &v
		changed = true
	}
	if p.TripDuration == "" && extracted.TripDuration != "" {
		p.TripDuration = extracted.TripDuration
		changed = true
	}
	if p.DietaryRequirements == "" && extracted.DietaryRequirements != "" {
		p.DietaryRequirements = extracted.DietaryRequirements
		changed = true
	}

	for _, interest := range extracted.Interests {
		interest = strings.TrimSpace(interest)
		if interest == "" {
			continue
		}
		if len(p.Interests) >= MaxInterests {
			break
		}
		if containsFold(p.Interests, interest) {
			continue
		}
		p.Interests = append(p.Interests, interest)
		changed = true
	}

	for _, trip := range extracted.PastTrips {
		trip.Destination = strings.TrimSpace(trip.Destination)
		if trip.Destination == "" {
			continue
		}
		existing := p.findTrip(trip.Destination)
		if existing == nil {
			p.PastTrips = append(p.PastTrips, trip)
			changed = true
			continue
		}
		// Only backfill a missing rating; never revise one.
		if existing.Rating == 0 && trip.Rating != 0 {
			existing.Rating = trip.Rating
			changed = true
		}
	}

	return changed
}

func (p *Profile) findTrip(destination string) *PastTrip {
	for i := range p.PastTrips {
		if strings.EqualFold(p.PastTrips[i].Destination, destination) {
			return &p.PastTrips[i]
		}
	}
	return nil
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

// Empty reports whether nothing has been learned yet.
func (p *Profile) Empty() bool {
	return p.TravelStyle == "" &&
		p.BudgetRange == "" &&
		len(p.Interests) == 0 &&
		len(p.PastTrips) == 0 &&
		p.Travelers == nil &&
		p.TripDuration == "" &&
		p.DietaryRequirements == ""
}

// Complete reports whether every field has a value. A complete profile
// stops further extraction calls.
func (p *Profile) Complete() bool {
	return p.TravelStyle != "" &&
		p.BudgetRange != "" &&
		len(p.Interests) > 0 &&
		len(p.PastTrips) > 0 &&
		p.Travelers != nil &&
		p.TripDuration != "" &&
		p.DietaryRequirements != ""
}

// Render formats the populated fields as an instruction block for the
// model. Empty fields are omitted; an empty profile renders to "".
func (p *Profile) Render() string {
	if p.Empty() {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Traveler Profile\n")
	b.WriteString("Known preferences for this traveler:\n")

	if p.TravelStyle != "" {
		fmt.Fprintf(&b, "- Travel style: %s\n", p.TravelStyle)
	}
	if p.BudgetRange != "" {
		fmt.Fprintf(&b, "- Budget range: %s\n", p.BudgetRange)
	}
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, "- Interests: %s\n", strings.Join(p.Interests, ", "))
	}
	if p.Travelers != nil {
		fmt.Fprintf(&b, "- Travelers: %d\n", *p.Travelers)
	}
	if p.TripDuration != "" {
		fmt.Fprintf(&b, "- Typical trip duration: %s\n", p.TripDuration)
	}
	if p.DietaryRequirements != "" {
		fmt.Fprintf(&b, "- Dietary requirements: %s\n", p.DietaryRequirements)
	}
	if len(p.PastTrips) > 0 {
		b.WriteString("- Past trips:\n")
		for _, trip := range p.PastTrips {
			if trip.Rating > 0 {
				fmt.Fprintf(&b, "  - %s (rated %d/5)\n", trip.Destination, trip.Rating)
			} else {
				fmt.Fprintf(&b, "  - %s\n", trip.Destination)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
