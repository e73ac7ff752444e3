package booking

// Intent is one decoded piece of the user's trip. The set of implementations is closed.
type Intent interface {
	intent()
}

type Destination struct {
	Name string
}

// DateRange holds calendar cell identifiers in MM/DD/YYYY form.
type DateRange struct {
	CheckIn  string
	CheckOut string
}

type GuestCounts struct {
	Adults   int
	Children int
	Infants  int
	Pets     int
}

type PlaceType string

const (
	PlaceAnyType    PlaceType = "Any type"
	PlaceRoom       PlaceType = "Room"
	PlaceEntireHome PlaceType = "Entire home"
)

var placeTypes = []PlaceType{PlaceAnyType, PlaceRoom, PlaceEntireHome}

// Filters fields are optional; nil means leave the page control unchanged.
type Filters struct {
	TypeOfPlace *PlaceType
	PriceMin    *int
	PriceMax    *int
	InstantBook *bool
}

type BookRequest struct{}

func (Destination) intent() {}
func (DateRange) intent()   {}
func (GuestCounts) intent() {}
func (Filters) intent()     {}
func (BookRequest) intent() {}

// guestCategory pairs a stepper test id with its requested count.
type guestCategory struct {
	name  string
	count int
}

func (g GuestCounts) categories() []guestCategory {
	return []guestCategory{
		{name: "adults", count: g.Adults},
		{name: "children", count: g.Children},
		{name: "infants", count: g.Infants},
		{name: "pets", count: g.Pets},
	}
}

// PendingIntents holds at most one value per intent kind.
type PendingIntents struct {
	Destination   *Destination
	Dates         *DateRange
	Guests        *GuestCounts
	Filters       *Filters
	BookRequested bool
}

func (p *PendingIntents) store(in Intent) {
	switch v := in.(type) {
	case Destination:
		p.Destination = &v
	case DateRange:
		p.Dates = &v
	case GuestCounts:
		p.Guests = &v
	case Filters:
		p.Filters = &v
	case BookRequest:
		p.BookRequested = true
	}
}

func (p *PendingIntents) searchReady() bool {
	return p.Destination != nil && p.Dates != nil && p.Guests != nil
}

type CommitFlags struct {
	SearchCommitted  bool
	FiltersCommitted bool
	BookingCommitted bool
}
