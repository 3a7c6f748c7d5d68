package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionCoversEveryEdge(t *testing.T) {
	statuses := []Status{
		StatusCart, StatusPendingPayment, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled,
	}
	allowed := map[[2]Status]bool{
		{StatusCart, StatusPendingPayment}:       true,
		{StatusPendingPayment, StatusProcessing}: true,
		{StatusPendingPayment, StatusCancelled}:  true,
		{StatusProcessing, StatusShipped}:        true,
		{StatusProcessing, StatusCancelled}:      true,
		{StatusShipped, StatusDelivered}:         true,
		{StatusShipped, StatusCancelled}:         true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			got, err := Transition(from, to)
			if allowed[[2]Status{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, got)
				continue
			}
			var terr *InvalidTransitionError
			require.ErrorAs(t, err, &terr, "%s -> %s", from, to)
			assert.Equal(t, from, got, "a rejected transition must leave the status unchanged")
			assert.Equal(t, from, terr.From)
			assert.Equal(t, to, terr.To)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	for _, s := range []Status{StatusCart, StatusPendingPayment, StatusProcessing, StatusShipped} {
		assert.False(t, s.Terminal(), "%s", s)
	}
}

func TestUnknownStatusHasNoEdges(t *testing.T) {
	assert.False(t, Status("PAID").Valid())
	assert.False(t, CanTransition(Status("PAID"), StatusProcessing))
	assert.False(t, CanTransition(StatusCart, Status("PAID")))

	got, err := Transition(Status("PAID"), StatusProcessing)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, Status("PAID"), got)
}
