package booking

import (
	"context"
	"errors"
	"testing"

	"trip-agent/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applyAll(t *testing.T, acc *Accumulator, calls ...[2]string) {
	t.Helper()

	for _, c := range calls {
		_, err := acc.ApplyToolCall(c[0], c[1])
		require.NoError(t, err, c[0])
	}
}

var (
	seoulDestination = [2]string{ToolSelectDestination, `{"destination":"Seoul"}`}
	seoulDates       = [2]string{ToolSelectDates, `{"checkIn":"03/20/2024","checkOut":"03/22/2024"}`}
	twoAdults        = [2]string{ToolSelectGuests, `{"adults":2,"children":0,"infants":0,"pets":0}`}
	someFilters      = [2]string{ToolSelectFilters, `{"typeOfPlace":"Entire home","priceRangeMin":100,"priceRangeMax":150,"instantBook":true}`}
	bookTop          = [2]string{ToolBookTopResult, `{}`}
)

func TestCommitPendingWaitsForAllSearchIntents(t *testing.T) {
	partial := [][][2]string{
		{},
		{seoulDestination},
		{seoulDates},
		{twoAdults},
		{seoulDestination, seoulDates},
		{seoulDestination, twoAdults},
		{seoulDates, twoAdults},
	}

	for _, calls := range partial {
		actions := &fakeActions{}
		acc := newTestAccumulator(t, actions)
		applyAll(t, acc, calls...)

		for i := 0; i < 3; i++ {
			require.NoError(t, acc.CommitPending(context.Background(), nil))
		}

		assert.Empty(t, actions.searches)
		assert.False(t, acc.Flags().SearchCommitted)
	}
}

func TestCommitPendingSearchesOnce(t *testing.T) {
	actions := &fakeActions{}
	acc := newTestAccumulator(t, actions)

	var steps []string
	onStep := func(step string) { steps = append(steps, step) }

	applyAll(t, acc, seoulDestination, seoulDates, twoAdults)
	require.NoError(t, acc.CommitPending(context.Background(), onStep))

	require.Len(t, actions.searches, 1)
	assert.Equal(t, searchCall{
		destination: Destination{Name: "Seoul"},
		dates:       DateRange{CheckIn: "03/20/2024", CheckOut: "03/22/2024"},
		guests:      GuestCounts{Adults: 2},
	}, actions.searches[0])
	assert.Equal(t, CommitFlags{SearchCommitted: true}, acc.Flags())
	assert.Equal(t, []string{StepSearching}, steps)

	applyAll(t, acc, [2]string{ToolSelectDestination, `{"destination":"Busan"}`}, twoAdults)

	for i := 0; i < 5; i++ {
		require.NoError(t, acc.CommitPending(context.Background(), onStep))
	}

	assert.Len(t, actions.searches, 1)
	assert.Equal(t, []string{StepSearching}, steps)
}

func TestCommitPendingUsesLatestGuests(t *testing.T) {
	actions := &fakeActions{}
	acc := newTestAccumulator(t, actions)

	applyAll(t, acc,
		seoulDestination,
		seoulDates,
		[2]string{ToolSelectGuests, `{"adults":3,"children":2,"infants":0,"pets":1}`},
		[2]string{ToolSelectGuests, `{"adults":1,"children":0,"infants":1,"pets":0}`},
	)
	require.NoError(t, acc.CommitPending(context.Background(), nil))

	require.Len(t, actions.searches, 1)
	assert.Equal(t, GuestCounts{Adults: 1, Infants: 1}, actions.searches[0].guests)
}

func TestCommitPendingRunsEligibleGroupsInOrder(t *testing.T) {
	var events []string
	actions := &fakeActions{events: &events}
	acc := newTestAccumulator(t, actions)

	var steps []string
	onStep := func(step string) {
		steps = append(steps, step)
		events = append(events, "status "+step)
	}

	applyAll(t, acc, bookTop, someFilters, twoAdults, seoulDates, seoulDestination)
	require.NoError(t, acc.CommitPending(context.Background(), onStep))

	assert.Equal(t, []string{
		"status " + StepSearching, "search",
		"status " + StepFiltering, "filters",
		"status " + StepSelecting, "select",
	}, events)
	assert.Equal(t, []string{StepSearching, StepFiltering, StepSelecting}, steps)
	assert.Equal(t, CommitFlags{SearchCommitted: true, FiltersCommitted: true, BookingCommitted: true}, acc.Flags())

	require.NoError(t, acc.CommitPending(context.Background(), onStep))
	assert.Len(t, steps, 3)
}

func TestCommitPendingDoesNotBookBeforeSearch(t *testing.T) {
	actions := &fakeActions{}
	acc := newTestAccumulator(t, actions)

	applyAll(t, acc, bookTop, someFilters)
	require.NoError(t, acc.CommitPending(context.Background(), nil))

	assert.Zero(t, actions.selections)
	assert.Len(t, actions.filters, 1)
	assert.Equal(t, CommitFlags{FiltersCommitted: true}, acc.Flags())
}

func TestCommitPendingDoesNotBookBeforeFilters(t *testing.T) {
	actions := &fakeActions{}
	acc := newTestAccumulator(t, actions)

	applyAll(t, acc, seoulDestination, seoulDates, twoAdults, bookTop)
	require.NoError(t, acc.CommitPending(context.Background(), nil))

	assert.Zero(t, actions.selections)
	assert.False(t, acc.Flags().BookingCommitted)

	applyAll(t, acc, someFilters)
	require.NoError(t, acc.CommitPending(context.Background(), nil))

	assert.Equal(t, 1, actions.selections)
	assert.True(t, acc.Flags().BookingCommitted)
}

func TestCommitPendingFailureKeepsFlagUnset(t *testing.T) {
	assertion := apperr.AssertionError("increaseGuests", "adults guests do not match", nil)
	actions := &fakeActions{searchErr: assertion}
	acc := newTestAccumulator(t, actions)

	var steps []string
	applyAll(t, acc, seoulDestination, seoulDates, twoAdults, someFilters)

	err := acc.CommitPending(context.Background(), func(step string) { steps = append(steps, step) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, assertion))
	assert.True(t, apperr.HasCode(err, apperr.CodeAssertion))
	assert.Equal(t, CommitFlags{}, acc.Flags())
	assert.Equal(t, []string{StepSearching}, steps, "status is reported before the sequence runs")
	assert.Empty(t, actions.filters, "later groups do not run after a failure")

	actions.searchErr = nil
	require.NoError(t, acc.CommitPending(context.Background(), nil))
	assert.Len(t, actions.searches, 1)
	assert.True(t, acc.Flags().SearchCommitted)
	assert.True(t, acc.Flags().FiltersCommitted)
}

func TestCommitPendingFilterFailureLeavesSearchCommitted(t *testing.T) {
	actions := &fakeActions{filterErr: errors.New("panel did not open")}
	acc := newTestAccumulator(t, actions)

	applyAll(t, acc, seoulDestination, seoulDates, twoAdults, someFilters, bookTop)

	err := acc.CommitPending(context.Background(), nil)
	require.Error(t, err)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.StageFilters, appErr.Metadata[apperr.MetaStage])
	assert.Equal(t, CommitFlags{SearchCommitted: true}, acc.Flags())
	assert.Zero(t, actions.selections)
}
