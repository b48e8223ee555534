// Package listing defines the vehicle listing record and where listings are
// loaded from.
package listing

import (
	"strconv"
	"strings"

	"github.com/manenim/storefront/pkg/search"
)

// Status values of a listing.
const (
	StatusAvailable = "available"
	StatusReserved  = "reserved"
	StatusSold      = "sold"
)

// Listing is one vehicle for sale.
type Listing struct {
	ID           string   `yaml:"id" json:"id"`
	Make         string   `yaml:"make" json:"make"`
	Model        string   `yaml:"model" json:"model"`
	Variant      string   `yaml:"variant" json:"variant,omitempty"`
	Year         int      `yaml:"year" json:"year"`
	Price        float64  `yaml:"price" json:"price"`
	Mileage      int      `yaml:"mileage" json:"mileage"`
	Fuel         string   `yaml:"fuel" json:"fuel"`
	Transmission string   `yaml:"transmission" json:"transmission"`
	Body         string   `yaml:"body" json:"body"`
	Color        string   `yaml:"color" json:"color"`
	Location     string   `yaml:"location" json:"location"`
	Description  string   `yaml:"description" json:"description,omitempty"`
	Status       string   `yaml:"status" json:"status"`
	Featured     bool     `yaml:"featured" json:"featured"`
	Images       []string `yaml:"images" json:"images,omitempty"`
}

// Title is the display name, such as "2020 Honda Civic EX".
func (l Listing) Title() string {
	parts := make([]string, 0, 4)
	if l.Year > 0 {
		parts = append(parts, strconv.Itoa(l.Year))
	}
	for _, p := range []string{l.Make, l.Model, l.Variant} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (l Listing) RecordID() string { return l.ID }

func (l Listing) Text(field string) string {
	switch field {
	case "make":
		return l.Make
	case "model":
		return l.Model
	case "variant":
		return l.Variant
	case "year":
		if l.Year == 0 {
			return ""
		}
		return strconv.Itoa(l.Year)
	case "fuel":
		return l.Fuel
	case "transmission":
		return l.Transmission
	case "body":
		return l.Body
	case "color":
		return l.Color
	case "location":
		return l.Location
	case "status":
		return l.Status
	case "description":
		return l.Description
	default:
		return ""
	}
}

func (l Listing) Number(field string) (float64, bool) {
	switch field {
	case "year":
		return float64(l.Year), l.Year > 0
	case "price":
		return l.Price, true
	case "mileage":
		return float64(l.Mileage), true
	default:
		return 0, false
	}
}

// Schema is how listings are searched and filtered.
func Schema() search.Schema {
	return search.Schema{
		TextFields: []string{"make", "model", "variant", "fuel", "transmission", "body", "color", "location"},
		Composites: [][]string{
			{"make", "model"},
			{"make", "model", "variant"},
			{"year", "make", "model"},
		},
		Categorical: []string{"make", "model", "fuel", "transmission", "body", "color", "location", "status"},
		Numeric:     []string{"year", "price", "mileage"},
	}
}

var _ search.Record = Listing{}
