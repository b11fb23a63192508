package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalogFile(t *testing.T, data CatalogData) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.json")
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0644))
	return path
}

func testService(t *testing.T) *Service {
	t.Helper()

	path := writeCatalogFile(t, CatalogData{
		Cards: []CardEntry{
			{Type: "Amazon (Physical)", Amounts: []float64{25, 50, 100}},
			{Type: "Visa", Amounts: []float64{50, 100, 200}},
			{Type: "Walmart", Amounts: []float64{25, 50}},
			{Type: "Vanilla Prepaid", Amounts: []float64{25, 50, 100}},
			{Type: "Tesco (UK)", Amounts: []float64{25, 50}},
		},
		Categories: map[string][]string{
			"popular": {"Amazon (Physical)", "Visa"},
			"retail":  {"Walmart", "Tesco (UK)"},
			"prepaid": {"Visa", "Vanilla Prepaid"},
			"uk":      {"Tesco (UK)"},
		},
	})

	s := NewService()
	require.NoError(t, s.Load(path))
	return s
}

func cardTypes(cards []CardEntry) []string {
	types := make([]string, len(cards))
	for i, c := range cards {
		types[i] = c.Type
	}
	return types
}

func TestFilterNoCriteria(t *testing.T) {
	s := testService(t)

	got, err := s.Filter(FilterCriteria{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Amazon (Physical)", "Visa", "Walmart", "Vanilla Prepaid", "Tesco (UK)"}, cardTypes(got))

	// "all" behaves the same as no category
	all, err := s.Filter(FilterCriteria{Category: "all"})
	require.NoError(t, err)
	assert.Equal(t, cardTypes(got), cardTypes(all))
}

func TestFilterByCategory(t *testing.T) {
	s := testService(t)

	got, err := s.Filter(FilterCriteria{Category: "popular"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Amazon (Physical)", "Visa"}, cardTypes(got))
}

func TestFilterUnknownCategory(t *testing.T) {
	s := testService(t)

	_, err := s.Filter(FilterCriteria{Category: "giftcards"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestFilterSearchCaseInsensitive(t *testing.T) {
	s := testService(t)

	for _, term := range []string{"visa", "VISA", "Vis", "iSa"} {
		got, err := s.Filter(FilterCriteria{SearchTerm: term})
		require.NoError(t, err)
		assert.Equal(t, []string{"Visa"}, cardTypes(got), "term %q", term)
	}
}

func TestFilterSearchSubstring(t *testing.T) {
	s := testService(t)

	got, err := s.Filter(FilterCriteria{SearchTerm: "an"})
	require.NoError(t, err)
	// Substring match anywhere in the type, original order kept
	assert.Equal(t, []string{"Vanilla Prepaid"}, cardTypes(got))

	got, err = s.Filter(FilterCriteria{SearchTerm: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Amazon (Physical)", "Visa", "Walmart", "Vanilla Prepaid"}, cardTypes(got))
}

func TestFilterCombined(t *testing.T) {
	s := testService(t)

	got, err := s.Filter(FilterCriteria{Category: "popular", SearchTerm: "vis"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Visa"}, cardTypes(got))

	// Criteria intersect: Vanilla Prepaid matches the search but is not popular
	got, err = s.Filter(FilterCriteria{Category: "popular", SearchTerm: "van"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilterEmptyResult(t *testing.T) {
	s := testService(t)

	got, err := s.Filter(FilterCriteria{SearchTerm: "steam"})
	require.NoError(t, err)
	assert.Empty(t, got, "no match is a valid result, not an error")
}

func TestFilterSearchTrimsWhitespace(t *testing.T) {
	s := testService(t)

	got, err := s.Filter(FilterCriteria{SearchTerm: "  visa  "})
	require.NoError(t, err)
	assert.Equal(t, []string{"Visa"}, cardTypes(got))
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	s := NewService()
	require.NoError(t, s.Load(filepath.Join(t.TempDir(), "missing.json")))

	assert.NotEmpty(t, s.Cards())
	assert.NotEmpty(t, s.Categories())
}

func TestLoadRejectsBadCatalogs(t *testing.T) {
	cases := []struct {
		name string
		data CatalogData
	}{
		{
			name: "empty type",
			data: CatalogData{Cards: []CardEntry{{Type: "", Amounts: []float64{25}}}},
		},
		{
			name: "duplicate type",
			data: CatalogData{Cards: []CardEntry{
				{Type: "Visa", Amounts: []float64{25}},
				{Type: "Visa", Amounts: []float64{50}},
			}},
		},
		{
			name: "no amounts",
			data: CatalogData{Cards: []CardEntry{{Type: "Visa", Amounts: nil}}},
		},
		{
			name: "non-positive amount",
			data: CatalogData{Cards: []CardEntry{{Type: "Visa", Amounts: []float64{50, -5}}}},
		},
		{
			name: "category references unknown type",
			data: CatalogData{
				Cards:      []CardEntry{{Type: "Visa", Amounts: []float64{50}}},
				Categories: map[string][]string{"popular": {"Steam"}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewService()
			err := s.Load(writeCatalogFile(t, tc.data))
			require.Error(t, err)
		})
	}
}

func TestCategoriesSorted(t *testing.T) {
	s := testService(t)

	assert.Equal(t, []string{"popular", "prepaid", "retail", "uk"}, s.Categories())
}

func TestFindEntryAndHasAmount(t *testing.T) {
	s := testService(t)

	entry, ok := s.FindEntry("Visa")
	require.True(t, ok)
	assert.Equal(t, []float64{50, 100, 200}, entry.Amounts)

	_, ok = s.FindEntry("visa")
	assert.False(t, ok, "lookup by type is exact")

	assert.True(t, s.HasAmount("Visa", 100))
	assert.False(t, s.HasAmount("Visa", 75))
	assert.False(t, s.HasAmount("Steam", 50))
}

func TestCardsReturnsCopy(t *testing.T) {
	s := testService(t)

	cards := s.Cards()
	cards[0].Type = "Mutated"

	again := s.Cards()
	assert.Equal(t, "Amazon (Physical)", again[0].Type)
}
