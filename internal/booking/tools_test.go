package booking

import (
	"errors"
	"testing"

	"trip-agent/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestAccumulator(t *testing.T, actions Actions) *Accumulator {
	return NewAccumulator(NewRegistry(), actions, zaptest.NewLogger(t))
}

func TestDescribeIsStable(t *testing.T) {
	registry := NewRegistry()

	first := registry.Describe()
	second := registry.Describe()

	names := make([]string, len(first))
	for i, d := range first {
		names[i] = d.Name
	}

	assert.Equal(t, []string{
		ToolSelectDestination,
		ToolSelectDates,
		ToolSelectGuests,
		ToolSelectFilters,
		ToolBookTopResult,
	}, names)
	assert.Equal(t, first, second)

	guests := first[2].Parameters
	assert.Equal(t, "object", guests.Type)
	assert.ElementsMatch(t, []string{"adults", "children", "infants", "pets"}, guests.Required)
	require.NotNil(t, guests.Properties["adults"].Minimum)
	assert.Equal(t, 0, *guests.Properties["adults"].Minimum)

	filters := first[3].Parameters
	assert.Equal(t, []string{"Any type", "Room", "Entire home"}, filters.Properties["typeOfPlace"].Enum)
}

func TestApplyToolCallStoresIntents(t *testing.T) {
	acc := newTestAccumulator(t, &fakeActions{})

	for _, call := range []struct{ name, args string }{
		{ToolSelectDestination, `{"destination":"Seoul"}`},
		{ToolSelectDates, `{"checkIn":"03/20/2024","checkOut":"03/22/2024"}`},
		{ToolSelectGuests, `{"adults":2,"children":1,"infants":0,"pets":0}`},
		{ToolSelectFilters, `{"typeOfPlace":"Entire home","priceRangeMin":100,"priceRangeMax":150,"instantBook":true}`},
		{ToolBookTopResult, ``},
	} {
		matched, err := acc.ApplyToolCall(call.name, call.args)
		require.NoError(t, err, call.name)
		assert.True(t, matched, call.name)
	}

	pending := acc.Pending()
	require.NotNil(t, pending.Destination)
	assert.Equal(t, "Seoul", pending.Destination.Name)
	assert.Equal(t, DateRange{CheckIn: "03/20/2024", CheckOut: "03/22/2024"}, *pending.Dates)
	assert.Equal(t, GuestCounts{Adults: 2, Children: 1}, *pending.Guests)
	require.NotNil(t, pending.Filters)
	assert.Equal(t, PlaceEntireHome, *pending.Filters.TypeOfPlace)
	assert.Equal(t, 100, *pending.Filters.PriceMin)
	assert.Equal(t, 150, *pending.Filters.PriceMax)
	assert.True(t, *pending.Filters.InstantBook)
	assert.True(t, pending.BookRequested)
}

func TestApplyToolCallLastWriteWins(t *testing.T) {
	acc := newTestAccumulator(t, &fakeActions{})

	_, err := acc.ApplyToolCall(ToolSelectGuests, `{"adults":4,"children":2,"infants":1,"pets":1}`)
	require.NoError(t, err)
	_, err = acc.ApplyToolCall(ToolSelectGuests, `{"adults":1,"children":0,"infants":0,"pets":0}`)
	require.NoError(t, err)

	assert.Equal(t, GuestCounts{Adults: 1}, *acc.Pending().Guests)
}

func TestApplyToolCallFiltersReplaceWithoutMerge(t *testing.T) {
	acc := newTestAccumulator(t, &fakeActions{})

	_, err := acc.ApplyToolCall(ToolSelectFilters, `{"priceRangeMin":50,"instantBook":true}`)
	require.NoError(t, err)
	_, err = acc.ApplyToolCall(ToolSelectFilters, `{"priceRangeMax":200}`)
	require.NoError(t, err)

	filters := acc.Pending().Filters
	require.NotNil(t, filters)
	assert.Nil(t, filters.PriceMin)
	assert.Nil(t, filters.InstantBook)
	assert.Equal(t, 200, *filters.PriceMax)
}

func TestApplyToolCallUnknownToolIsIgnored(t *testing.T) {
	acc := newTestAccumulator(t, &fakeActions{})

	_, err := acc.ApplyToolCall(ToolSelectDestination, `{"destination":"Lisbon"}`)
	require.NoError(t, err)

	before := acc.Pending()

	matched, err := acc.ApplyToolCall("selectRestaurant", `{"not":"json"`)
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Equal(t, before, acc.Pending())
}

func TestApplyToolCallDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		tool string
		args string
	}{
		{"missing pets", ToolSelectGuests, `{"adults":2,"children":0,"infants":0}`},
		{"null adults", ToolSelectGuests, `{"adults":null,"children":0,"infants":0,"pets":0}`},
		{"negative children", ToolSelectGuests, `{"adults":2,"children":-1,"infants":0,"pets":0}`},
		{"fractional adults", ToolSelectGuests, `{"adults":1.5,"children":0,"infants":0,"pets":0}`},
		{"missing checkOut", ToolSelectDates, `{"checkIn":"03/20/2024"}`},
		{"empty destination", ToolSelectDestination, `{"destination":"  "}`},
		{"empty arguments", ToolSelectDestination, ``},
		{"malformed json", ToolSelectDates, `{"checkIn":`},
		{"unknown place type", ToolSelectFilters, `{"typeOfPlace":"Castle"}`},
		{"negative price", ToolSelectFilters, `{"priceRangeMin":-5}`},
		{"fractional price", ToolSelectFilters, `{"priceRangeMax":99.5}`},
		{"negative integral float", ToolSelectGuests, `{"adults":-2.0,"children":0,"infants":0,"pets":0}`},
		{"book with garbage", ToolBookTopResult, `not json`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acc := newTestAccumulator(t, &fakeActions{})

			_, err := acc.ApplyToolCall(ToolSelectDestination, `{"destination":"Seoul"}`)
			require.NoError(t, err)
			_, err = acc.ApplyToolCall(ToolSelectDates, `{"checkIn":"03/20/2024","checkOut":"03/22/2024"}`)
			require.NoError(t, err)

			before := acc.Pending()

			matched, err := acc.ApplyToolCall(tc.tool, tc.args)
			require.Error(t, err)
			assert.True(t, matched)
			assert.True(t, apperr.HasCode(err, apperr.CodeDecode))

			var appErr *apperr.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tc.tool, appErr.Metadata[apperr.MetaTool])

			assert.Equal(t, before, acc.Pending())
		})
	}
}

func TestApplyToolCallAcceptsIntegralFloats(t *testing.T) {
	acc := newTestAccumulator(t, &fakeActions{})

	_, err := acc.ApplyToolCall(ToolSelectGuests, `{"adults":2.0,"children":1.0,"infants":0.0,"pets":0}`)
	require.NoError(t, err)
	_, err = acc.ApplyToolCall(ToolSelectFilters, `{"priceRangeMin":100.0,"priceRangeMax":1.5e2}`)
	require.NoError(t, err)

	pending := acc.Pending()
	assert.Equal(t, GuestCounts{Adults: 2, Children: 1}, *pending.Guests)
	require.NotNil(t, pending.Filters)
	assert.Equal(t, 100, *pending.Filters.PriceMin)
	assert.Equal(t, 150, *pending.Filters.PriceMax)
}

func TestBookTopResultAcceptsEmptyObject(t *testing.T) {
	acc := newTestAccumulator(t, &fakeActions{})

	matched, err := acc.ApplyToolCall(ToolBookTopResult, `{}`)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.True(t, acc.Pending().BookRequested)
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, "'Seoul'", xpathLiteral("Seoul"))
	assert.Equal(t, `"Martha's Vineyard"`, xpathLiteral("Martha's Vineyard"))
	assert.Equal(t, `concat('a"b', "'", 'c')`, xpathLiteral(`a"b'c`))
	assert.Equal(t, `div[data-testid='calendar-day-03/20/2024']`, calendarDaySelector("03/20/2024"))
}
