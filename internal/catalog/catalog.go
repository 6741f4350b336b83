// Package catalog groups manuals into the product categories shown in the
// browse screen.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/raphaelgruber/manualdesk/internal/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Category is one entry of the browse screen.
type Category struct {
	ID          string
	Name        string
	DefaultType string
	// Keywords are matched case-insensitively against a manual's product type.
	Keywords []string
	// MatchUntyped makes manuals without a product type fall into this category.
	MatchUntyped bool
	demo         []demoManual
}

type demoManual struct {
	Brand, Model, ProductType string
}

// Defaults applied when projecting a manual into a catalog entry.
const (
	defaultYear     = "2023"
	defaultLanguage = "en"
)

var categories = []Category{
	{
		ID:           "home_appliances",
		Name:         "Home Appliances",
		DefaultType:  "Home Appliance",
		Keywords:     []string{"washing", "dryer", "home appliance", "appliance", "machine"},
		MatchUntyped: true,
		demo: []demoManual{
			{"Samsung", "WA50F9A8DSP", "Washing Machine"},
			{"LG", "DLEX3900W", "Dryer"},
			{"Whirlpool", "WTW8127LC", "Washing Machine"},
		},
	},
	{
		ID:          "kitchen_appliances",
		Name:        "Kitchen Appliances",
		DefaultType: "Kitchen Appliance",
		Keywords:    []string{"kitchen", "oven", "microwave", "dishwasher", "refrigerator"},
		demo: []demoManual{
			{"Samsung", "RF23M8070SR", "Refrigerator"},
			{"KitchenAid", "KODE507ESS", "Oven"},
			{"Bosch", "SHPM65Z55N", "Dishwasher"},
		},
	},
	{
		ID:          "tv_video",
		Name:        "TV & Video",
		DefaultType: "Television",
		Keywords:    []string{"tv", "television", "video"},
		demo: []demoManual{
			{"Samsung", "QN65Q70AAFXZA", "Smart TV"},
			{"LG", "OLED55C1PUB", "OLED TV"},
			{"Sony", "XBR65X90J", "Smart TV"},
		},
	},
	{
		ID:          "audio",
		Name:        "Audio",
		DefaultType: "Audio System",
		Keywords:    []string{"audio", "speaker", "sound"},
		demo: []demoManual{
			{"Sonos", "Arc", "Soundbar"},
			{"Bose", "SoundLink Revolve", "Bluetooth Speaker"},
			{"JBL", "Charge 5", "Portable Speaker"},
		},
	},
	{
		ID:          "climate",
		Name:        "Climate Control",
		DefaultType: "Air Conditioner",
		Keywords:    []string{"air conditioner", "climate", "hvac", "heating", "cooling"},
		demo: []demoManual{
			{"Daikin", "DX18TC", "Air Conditioner"},
			{"Carrier", "24ACC636A003", "Central AC"},
			{"Nest", "T3017US", "Smart Thermostat"},
		},
	},
}

// Categories returns the known categories in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Lookup returns the category with the given ID. Unknown IDs yield a
// generic category whose keywords are derived from the ID itself.
func Lookup(id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return genericCategory(id), false
}

func genericCategory(id string) Category {
	spaced := strings.ReplaceAll(id, "_", " ")
	defaultType := spaced
	if defaultType == "" {
		defaultType = "Electronics"
	}
	c := Category{
		ID:          id,
		Name:        defaultType,
		DefaultType: defaultType,
		Keywords:    []string{"electronic", spaced},
	}
	for i, brand := range []string{"Samsung", "LG", "Sony"} {
		c.demo = append(c.demo, demoManual{brand, fmt.Sprintf("Demo-Model-%d", i+1), defaultType})
	}
	return c
}

// Matches reports whether a manual with the given product type belongs to
// the category.
func (c Category) Matches(productType string) bool {
	if strings.TrimSpace(productType) == "" {
		return c.MatchUntyped
	}
	pt := strings.ToLower(productType)
	for _, kw := range c.Keywords {
		if strings.Contains(pt, kw) {
			return true
		}
	}
	return false
}

// Filter returns the manuals of files that belong to the category, sorted by
// product type and then model. When none match, the category's demo entries
// are returned instead, marked with IsDemoData.
func Filter(files []models.ManualFile, categoryID, locale string) []models.CatalogEntry {
	if locale == "" {
		locale = defaultLanguage
	}
	cat, _ := Lookup(categoryID)

	var out []models.CatalogEntry
	for _, f := range files {
		if !cat.Matches(f.ProductType) {
			continue
		}
		out = append(out, project(f, cat, locale))
	}

	if len(out) == 0 {
		for _, d := range cat.demo {
			out = append(out, models.CatalogEntry{
				Brand:       d.Brand,
				Model:       d.Model,
				ProductType: d.ProductType,
				Year:        defaultYear,
				Language:    locale,
				IsDemoData:  true,
			})
		}
	}

	// Collators keep state and are not safe to share between calls.
	col := collate.New(language.Make(locale), collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		if c := col.CompareString(out[i].ProductType, out[j].ProductType); c != 0 {
			return c < 0
		}
		return col.CompareString(out[i].Model, out[j].Model) < 0
	})
	return out
}

func project(f models.ManualFile, cat Category, locale string) models.CatalogEntry {
	e := models.CatalogEntry{
		Brand:       models.OrUnknown(f.Brand),
		Model:       models.OrUnknown(f.Model),
		ProductType: f.ProductType,
		Year:        string(f.Year),
		Language:    f.Language,
		FileID:      f.FileID,
		Filename:    f.Name,
	}
	if e.ProductType == "" {
		e.ProductType = cat.DefaultType
	}
	if e.Year == "" {
		e.Year = defaultYear
	}
	if e.Language == "" {
		e.Language = locale
	}
	return e
}
