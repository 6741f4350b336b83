package catalog

import (
	"testing"

	"github.com/raphaelgruber/manualdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterHomeAppliancesDemoSet(t *testing.T) {
	got := Filter(nil, "home_appliances", "es")
	require.Len(t, got, 3)

	want := []models.CatalogEntry{
		{Brand: "LG", Model: "DLEX3900W", ProductType: "Dryer", Year: "2023", Language: "es", IsDemoData: true},
		{Brand: "Samsung", Model: "WA50F9A8DSP", ProductType: "Washing Machine", Year: "2023", Language: "es", IsDemoData: true},
		{Brand: "Whirlpool", Model: "WTW8127LC", ProductType: "Washing Machine", Year: "2023", Language: "es", IsDemoData: true},
	}
	assert.Equal(t, want, got)
}

func TestFilterMatchesProductType(t *testing.T) {
	files := []models.ManualFile{
		{Name: "fridge.pdf", FileID: "1", Brand: "Samsung", Model: "RF1", ProductType: "Refrigerator", Year: "2022", Language: "ko"},
		{Name: "tv.pdf", FileID: "2", Brand: "LG", Model: "C1", ProductType: "OLED TV"},
		{Name: "washer.pdf", FileID: "3", Brand: "Bosch", Model: "W9", ProductType: "Washing Machine"},
		{Name: "untyped.pdf", FileID: "4"},
		{Name: "combo.pdf", FileID: "5", Model: "K2", ProductType: "Kitchen Machine"},
	}

	tests := []struct {
		category  string
		wantFiles []string
	}{
		{"kitchen_appliances", []string{"combo.pdf", "fridge.pdf"}},
		{"tv_video", []string{"tv.pdf"}},
		{"home_appliances", []string{"untyped.pdf", "combo.pdf", "washer.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			got := Filter(files, tt.category, "en")
			var names []string
			for _, e := range got {
				assert.False(t, e.IsDemoData)
				names = append(names, e.Filename)
			}
			assert.Equal(t, tt.wantFiles, names)
		})
	}
}

func TestFilterProjectionDefaults(t *testing.T) {
	got := Filter([]models.ManualFile{{Name: "x.pdf", FileID: "9"}}, "home_appliances", "fr")
	require.Len(t, got, 1)
	assert.Equal(t, models.CatalogEntry{
		Brand:       "Unknown",
		Model:       "Unknown",
		ProductType: "Home Appliance",
		Year:        "2023",
		Language:    "fr",
		FileID:      "9",
		Filename:    "x.pdf",
	}, got[0])
}

func TestFilterUnknownCategory(t *testing.T) {
	files := []models.ManualFile{
		{Name: "cam.pdf", Model: "Z", ProductType: "Digital Camera"},
		{Name: "gadget.pdf", Model: "G", ProductType: "Consumer Electronics"},
	}

	got := Filter(files, "digital_camera", "en")
	require.Len(t, got, 2)
	assert.Equal(t, "gadget.pdf", got[0].Filename)
	assert.Equal(t, "cam.pdf", got[1].Filename)

	demo := Filter(nil, "smart_home", "de")
	require.Len(t, demo, 3)
	for i, e := range demo {
		assert.True(t, e.IsDemoData)
		assert.Equal(t, "smart home", e.ProductType)
		assert.Equal(t, "de", e.Language)
		assert.Equal(t, []string{"Samsung", "LG", "Sony"}[i], e.Brand)
	}
}

func TestFilterSortIgnoresCase(t *testing.T) {
	files := []models.ManualFile{
		{Name: "w.pdf", Model: "W1", ProductType: "Washing Machine"},
		{Name: "d2.pdf", Model: "b-200", ProductType: "dryer"},
		{Name: "d1.pdf", Model: "A-100", ProductType: "Dryer"},
	}

	got := Filter(files, "home_appliances", "en")
	require.Len(t, got, 3)
	var names []string
	for _, e := range got {
		names = append(names, e.Filename)
	}
	assert.Equal(t, []string{"d1.pdf", "d2.pdf", "w.pdf"}, names)
}

func TestCategoryMatches(t *testing.T) {
	cat, ok := Lookup("climate")
	require.True(t, ok)
	assert.True(t, cat.Matches("Central HVAC unit"))
	assert.True(t, cat.Matches("AIR CONDITIONER"))
	assert.False(t, cat.Matches("Speaker"))
	assert.False(t, cat.Matches(""))

	_, ok = Lookup("nope")
	assert.False(t, ok)
	assert.Len(t, Categories(), 5)
}
