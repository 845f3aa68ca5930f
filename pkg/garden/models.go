package garden

import (
	"slices"
	"strings"
	"time"
)

// Zone identifies a grow zone. It is a plain value used to select the subset
// of the catalog suited to that zone.
type Zone int

// PlantOrder is a custom display priority: a sequence of plant IDs, most
// important first. It is always replaced as a whole, never patched. The zero
// value means "no custom order".
type PlantOrder []string

// Plant is a catalog entry as served by the remote plant service. Plants are
// immutable once fetched; the store owns them and this package only reads.
type Plant struct {
	ID               string    `json:"plantId" db:"id"`
	Name             string    `json:"name" db:"name"`
	Description      string    `json:"description" db:"description"`
	Zone             Zone      `json:"growZoneNumber" db:"grow_zone"`
	WateringInterval int       `json:"wateringInterval" db:"watering_interval"`
	ImageURL         string    `json:"imageUrl" db:"image_url"`
	UpdatedAt        time.Time `json:"-" db:"updated_at"`
}

// Projection is a sorted snapshot of plants for one view at a point in time.
// It is derived and transient; nothing persists it.
type Projection []Plant

// ApplyOrder produces the projection of plants under order.
//
// Plants whose ID appears in order come first, in order position. Plants
// absent from order come after every present plant, sorted by name
// ascending. With a zero order everything is absent, so the projection is
// the plain alphabetical listing.
func ApplyOrder(plants []Plant, order PlantOrder) Projection {
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	out := make(Projection, len(plants))
	copy(out, plants)

	slices.SortStableFunc(out, func(a, b Plant) int {
		pa, aOK := position[a.ID]
		pb, bOK := position[b.ID]
		switch {
		case aOK && bOK:
			return pa - pb
		case aOK:
			return -1
		case bOK:
			return 1
		default:
			return strings.Compare(a.Name, b.Name)
		}
	})
	return out
}
