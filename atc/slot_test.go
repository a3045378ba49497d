package atc_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-ublox/cellular/atc"
	"github.com/go-ublox/cellular/digest"
)

func TestSlotBeginFillTake(t *testing.T) {
	s := atc.NewSlot()
	assert.Equal(t, atc.SlotEmpty, s.State())

	require.NoError(t, s.Begin())
	assert.Equal(t, atc.SlotPending, s.State())

	want := atc.Result{Outcome: digest.OutcomeOK, Lines: [][]byte{[]byte("+CESQ: 1")}}
	assert.True(t, s.Fill(want))
	assert.Equal(t, atc.SlotFilled, s.State())

	got, err := s.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, atc.SlotEmpty, s.State())
}

func TestSlotBeginWhileNotEmptyFails(t *testing.T) {
	s := atc.NewSlot()
	require.NoError(t, s.Begin())
	assert.ErrorIs(t, s.Begin(), atc.ErrSlotBusy)
}

func TestSlotFillWhenNotPendingIsDropped(t *testing.T) {
	s := atc.NewSlot()
	assert.False(t, s.Fill(atc.Result{Outcome: digest.OutcomeOK}))
	assert.Equal(t, atc.SlotEmpty, s.State())
}

func TestSlotResetForcesEmpty(t *testing.T) {
	s := atc.NewSlot()
	require.NoError(t, s.Begin())
	s.Reset()
	assert.Equal(t, atc.SlotEmpty, s.State())

	// A late Fill from a command the client already gave up on must be
	// dropped rather than delivered to the next caller.
	assert.False(t, s.Fill(atc.Result{Outcome: digest.OutcomeOK}))
}

func TestSlotTakeReturnsOnContextCancel(t *testing.T) {
	s := atc.NewSlot()
	require.NoError(t, s.Begin())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Take(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// Take never observed a Fill, so the slot is left Pending; the Client
	// is responsible for calling Reset.
	assert.Equal(t, atc.SlotPending, s.State())
}

func TestSlotStringers(t *testing.T) {
	assert.Equal(t, "Empty", atc.SlotEmpty.String())
	assert.Equal(t, "Pending", atc.SlotPending.String())
	assert.Equal(t, "Filled", atc.SlotFilled.String())
}
