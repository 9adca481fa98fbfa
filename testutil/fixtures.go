package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/franchisehub/listingsearch/dataset"
	"github.com/stretchr/testify/require"
)

// FixtureListings returns a small, varied corpus covering several sectors,
// locations, and tags.
func FixtureListings() []dataset.Listing {
	return []dataset.Listing{
		{
			ID:              1,
			Title:           "Bean Scene Coffee",
			Sector:          "Food & Beverage",
			Description:     "Specialty coffee shop franchise with drive-thru options",
			InvestmentRange: "$150k-$300k",
			Location:        "Austin, TX",
			Tags:            []string{"coffee", "cafe", "drive-thru"},
		},
		{
			ID:              2,
			Title:           "FlexFit Gyms",
			Sector:          "Fitness",
			Description:     "24-hour access fitness club with personal training",
			InvestmentRange: "$250k-$500k",
			Location:        "Denver, CO",
			Tags:            []string{"gym", "fitness", "health"},
		},
		{
			ID:              3,
			Title:           "Brew Brothers Espresso",
			Sector:          "Food & Beverage",
			Description:     "Artisan espresso bar and roastery franchise",
			InvestmentRange: "$100k-$200k",
			Location:        "Portland, OR",
			Tags:            []string{"coffee", "espresso"},
		},
		{
			ID:              4,
			Title:           "Sparkle Clean",
			Sector:          "Services",
			Description:     "Residential and commercial cleaning services",
			InvestmentRange: "$50k-$100k",
			Location:        "Phoenix, AZ",
			Tags:            []string{"cleaning", "home-services"},
		},
		{
			ID:              5,
			Title:           "Taco Trail",
			Sector:          "Food & Beverage",
			Description:     "Fast casual taco restaurant with catering",
			InvestmentRange: "$200k-$400k",
			Location:        "Austin, TX",
			Tags:            []string{"mexican", "restaurant", "catering"},
		},
	}
}

// WriteDataset writes listings as a bare JSON array into a temp directory and
// returns the file path.
func WriteDataset(t *testing.T, listings []dataset.Listing) string {
	t.Helper()

	data, err := json.MarshalIndent(listings, "", "  ")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
