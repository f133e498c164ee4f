package scheduling_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-sos/internal/app/scheduling"
	"github.com/PabloGalante/farum-sos/internal/domain"
)

var today = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func TestListAvailableGeneratesDaySlots(t *testing.T) {
	svc := scheduling.NewService(func() time.Time { return today })

	slots, err := svc.ListAvailable(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, slots, scheduling.SlotsPerDay)

	assert.Equal(t, "apt-2025-06-02-0", slots[0].ID)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "09:30", slots[0].EndTime)
	assert.Equal(t, "16:00", slots[7].StartTime)
	for _, s := range slots {
		assert.Equal(t, scheduling.DefaultPrice, s.Price)
		assert.Equal(t, "2025-06-02", s.Date)
		assert.False(t, s.Booked)
	}
}

func TestBookMarksSlot(t *testing.T) {
	svc := scheduling.NewService(func() time.Time { return today })
	ctx := context.Background()

	apt, err := svc.Book(ctx, "apt-2025-06-03-2")
	require.NoError(t, err)
	assert.True(t, apt.Booked)
	assert.Equal(t, "11:00", apt.StartTime)

	_, err = svc.Book(ctx, "apt-2025-06-03-2")
	assert.ErrorIs(t, err, domain.ErrAppointmentBooked)

	slots, err := svc.ListAvailable(ctx, today.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, slots[2].Booked)
	assert.False(t, slots[3].Booked)
}

func TestBookRejectsUnknownSlots(t *testing.T) {
	svc := scheduling.NewService(func() time.Time { return today })

	for _, id := range []string{"", "apt-", "apt-2025-06-03", "apt-2025-06-03-8", "apt-2025-13-01-0", "slot-2025-06-03-1", "apt-2025-06-01-0"} {
		_, err := svc.Book(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrAppointmentNotFound, id)
	}
}
