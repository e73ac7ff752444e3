package booking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"trip-agent/internal/entity"
	"trip-agent/pkg/apperr"
)

const (
	ToolSelectDestination = "selectDestination"
	ToolSelectDates       = "selectDates"
	ToolSelectGuests      = "selectGuests"
	ToolSelectFilters     = "selectFilters"
	ToolBookTopResult     = "bookTopResult"
)

type decodeFunc func(raw []byte) (Intent, error)

type tool struct {
	descriptor entity.ToolDescriptor
	decode     decodeFunc
}

// Registry maps tool names to their descriptor and argument decoder.
type Registry struct {
	tools  []tool
	byName map[string]int
}

func NewRegistry() *Registry {
	zero := 0

	tools := []tool{
		{
			descriptor: entity.ToolDescriptor{
				Name:        ToolSelectDestination,
				Description: "Select a destination from the dropdown",
				Parameters: entity.Schema{
					Type: "object",
					Properties: map[string]entity.Schema{
						"destination": {Type: "string", Description: "the destination to select"},
					},
					Required: []string{"destination"},
				},
			},
			decode: decodeDestination,
		},
		{
			descriptor: entity.ToolDescriptor{
				Name:        ToolSelectDates,
				Description: "Select the check-in and check-out dates",
				Parameters: entity.Schema{
					Type: "object",
					Properties: map[string]entity.Schema{
						"checkIn":  {Type: "string", Description: "The check-in date, formatted as MM/DD/YYYY"},
						"checkOut": {Type: "string", Description: "The check-out date, formatted as MM/DD/YYYY"},
					},
					Required: []string{"checkIn", "checkOut"},
				},
			},
			decode: decodeDates,
		},
		{
			descriptor: entity.ToolDescriptor{
				Name:        ToolSelectGuests,
				Description: "Select the number of guests",
				Parameters: entity.Schema{
					Type: "object",
					Properties: map[string]entity.Schema{
						"adults":   {Type: "integer", Description: "The number of adults", Minimum: &zero},
						"children": {Type: "integer", Description: "The number of children", Minimum: &zero},
						"infants":  {Type: "integer", Description: "The number of infants", Minimum: &zero},
						"pets":     {Type: "integer", Description: "The number of pets", Minimum: &zero},
					},
					Required: []string{"adults", "children", "infants", "pets"},
				},
			},
			decode: decodeGuests,
		},
		{
			descriptor: entity.ToolDescriptor{
				Name:        ToolSelectFilters,
				Description: "Select filters to refine search results",
				Parameters: entity.Schema{
					Type: "object",
					Properties: map[string]entity.Schema{
						"typeOfPlace": {
							Type:        "string",
							Description: "The type of place to filter by",
							Enum:        placeTypeNames(),
						},
						"priceRangeMin": {Type: "integer", Description: "The minimum price per night to filter by", Minimum: &zero},
						"priceRangeMax": {Type: "integer", Description: "The maximum price per night to filter by", Minimum: &zero},
						"instantBook":   {Type: "boolean", Description: "Whether to filter by instant book availability"},
					},
				},
			},
			decode: decodeFilters,
		},
		{
			descriptor: entity.ToolDescriptor{
				Name:        ToolBookTopResult,
				Description: "Select the top, highest ranked listing and go to the booking page",
				Parameters: entity.Schema{
					Type:       "object",
					Properties: map[string]entity.Schema{},
				},
			},
			decode: decodeBookRequest,
		},
	}

	byName := make(map[string]int, len(tools))
	for i, t := range tools {
		byName[t.descriptor.Name] = i
	}

	return &Registry{tools: tools, byName: byName}
}

// Describe returns the tool descriptors in their fixed order.
func (r *Registry) Describe() []entity.ToolDescriptor {
	out := make([]entity.ToolDescriptor, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.descriptor
	}

	return out
}

// Decode turns a tool call into an intent. matched is false for unknown tool names.
func (r *Registry) Decode(name, rawArguments string) (in Intent, matched bool, err error) {
	const op = "Decode"

	i, ok := r.byName[name]
	if !ok {
		return nil, false, nil
	}

	in, err = r.tools[i].decode([]byte(rawArguments))
	if err != nil {
		return nil, true, apperr.DecodeError(op, name, err)
	}

	return in, true, nil
}

func placeTypeNames() []string {
	names := make([]string, len(placeTypes))
	for i, p := range placeTypes {
		names[i] = string(p)
	}

	return names
}

var errEmptyArguments = errors.New("empty arguments")

func unmarshalObject(raw []byte, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return errEmptyArguments
	}

	return json.Unmarshal(raw, v)
}

func missing(field string) error {
	return fmt.Errorf("missing required field %q", field)
}

func requireText(field string, v *string) (string, error) {
	if v == nil {
		return "", missing(field)
	}

	if strings.TrimSpace(*v) == "" {
		return "", fmt.Errorf("field %q must not be empty", field)
	}

	return *v, nil
}

func requireCount(field string, v *json.Number) (int, error) {
	if v == nil {
		return 0, missing(field)
	}

	return wholeNumber(field, *v)
}

// wholeNumber accepts any JSON number with no fractional part, so 2.0 reads as 2.
func wholeNumber(field string, v json.Number) (int, error) {
	f, err := v.Float64()
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", field, err)
	}

	if f != math.Trunc(f) {
		return 0, fmt.Errorf("field %q must be a whole number, got %s", field, v)
	}

	if f < 0 {
		return 0, fmt.Errorf("field %q must not be negative, got %s", field, v)
	}

	if f > math.MaxInt32 {
		return 0, fmt.Errorf("field %q is out of range, got %s", field, v)
	}

	return int(f), nil
}

func optionalCount(field string, v *json.Number) (*int, error) {
	if v == nil {
		return nil, nil
	}

	n, err := wholeNumber(field, *v)
	if err != nil {
		return nil, err
	}

	return &n, nil
}

func decodeDestination(raw []byte) (Intent, error) {
	var args struct {
		Destination *string `json:"destination"`
	}

	if err := unmarshalObject(raw, &args); err != nil {
		return nil, err
	}

	name, err := requireText("destination", args.Destination)
	if err != nil {
		return nil, err
	}

	return Destination{Name: name}, nil
}

func decodeDates(raw []byte) (Intent, error) {
	var args struct {
		CheckIn  *string `json:"checkIn"`
		CheckOut *string `json:"checkOut"`
	}

	if err := unmarshalObject(raw, &args); err != nil {
		return nil, err
	}

	checkIn, err := requireText("checkIn", args.CheckIn)
	if err != nil {
		return nil, err
	}

	checkOut, err := requireText("checkOut", args.CheckOut)
	if err != nil {
		return nil, err
	}

	return DateRange{CheckIn: checkIn, CheckOut: checkOut}, nil
}

func decodeGuests(raw []byte) (Intent, error) {
	var args struct {
		Adults   *json.Number `json:"adults"`
		Children *json.Number `json:"children"`
		Infants  *json.Number `json:"infants"`
		Pets     *json.Number `json:"pets"`
	}

	if err := unmarshalObject(raw, &args); err != nil {
		return nil, err
	}

	var (
		guests GuestCounts
		err    error
	)

	if guests.Adults, err = requireCount("adults", args.Adults); err != nil {
		return nil, err
	}

	if guests.Children, err = requireCount("children", args.Children); err != nil {
		return nil, err
	}

	if guests.Infants, err = requireCount("infants", args.Infants); err != nil {
		return nil, err
	}

	if guests.Pets, err = requireCount("pets", args.Pets); err != nil {
		return nil, err
	}

	return guests, nil
}

func decodeFilters(raw []byte) (Intent, error) {
	var args struct {
		TypeOfPlace   *string      `json:"typeOfPlace"`
		PriceRangeMin *json.Number `json:"priceRangeMin"`
		PriceRangeMax *json.Number `json:"priceRangeMax"`
		InstantBook   *bool        `json:"instantBook"`
	}

	if err := unmarshalObject(raw, &args); err != nil {
		return nil, err
	}

	var (
		filters = Filters{InstantBook: args.InstantBook}
		err     error
	)

	if args.TypeOfPlace != nil {
		place := PlaceType(*args.TypeOfPlace)
		if !slices.Contains(placeTypes, place) {
			return nil, fmt.Errorf("field \"typeOfPlace\": unknown value %q", *args.TypeOfPlace)
		}

		filters.TypeOfPlace = &place
	}

	if filters.PriceMin, err = optionalCount("priceRangeMin", args.PriceRangeMin); err != nil {
		return nil, err
	}

	if filters.PriceMax, err = optionalCount("priceRangeMax", args.PriceRangeMax); err != nil {
		return nil, err
	}

	return filters, nil
}

// decodeBookRequest accepts empty arguments; anything else must still be a JSON object.
func decodeBookRequest(raw []byte) (Intent, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return BookRequest{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}

	return BookRequest{}, nil
}
