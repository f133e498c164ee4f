// Package scheduling lists and books counselling appointments. Slots are
// generated, not stored: eight half-hour sessions per day, one per hour from
// 09:00, at a fixed price. Payment happens elsewhere.
package scheduling

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PabloGalante/farum-sos/internal/domain"
	"github.com/PabloGalante/farum-sos/internal/observability"
)

const (
	SlotsPerDay  = 8
	FirstSlot    = 9 // hour of day
	SlotLength   = 30 * time.Minute
	DefaultPrice = 5000

	dateLayout = "2006-01-02"
	idPrefix   = "apt-"
)

type Service struct {
	price int
	now   func() time.Time

	mu     sync.Mutex
	booked map[string]bool
}

func NewService(now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		price:  DefaultPrice,
		now:    now,
		booked: make(map[string]bool),
	}
}

// ListAvailable returns the day's slots in start order. Booked slots are
// included with Booked set.
func (s *Service) ListAvailable(ctx context.Context, day time.Time) ([]domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Appointment, 0, SlotsPerDay)
	for i := range SlotsPerDay {
		apt := s.slot(day, i)
		apt.Booked = s.booked[apt.ID]
		out = append(out, apt)
	}
	return out, nil
}

// Book reserves a slot. Past days and unknown ids are not found.
func (s *Service) Book(ctx context.Context, id string) (domain.Appointment, error) {
	day, index, err := parseID(id)
	if err != nil {
		return domain.Appointment{}, err
	}

	today := s.now().Format(dateLayout)
	if day.Format(dateLayout) < today {
		return domain.Appointment{}, fmt.Errorf("%s is in the past: %w", id, domain.ErrAppointmentNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.booked[id] {
		return domain.Appointment{}, fmt.Errorf("%s: %w", id, domain.ErrAppointmentBooked)
	}
	s.booked[id] = true

	apt := s.slot(day, index)
	apt.Booked = true

	log := observability.LoggerFromContext(ctx)
	log.Info().Str("appointment_id", id).Str("start", apt.Date+" "+apt.StartTime).Msg("appointment booked")
	return apt, nil
}

func (s *Service) slot(day time.Time, i int) domain.Appointment {
	date := day.Format(dateLayout)
	start := time.Date(day.Year(), day.Month(), day.Day(), FirstSlot+i, 0, 0, 0, day.Location())
	return domain.Appointment{
		ID:        idPrefix + date + "-" + strconv.Itoa(i),
		Date:      date,
		StartTime: start.Format("15:04"),
		EndTime:   start.Add(SlotLength).Format("15:04"),
		Price:     s.price,
	}
}

// parseID splits "apt-YYYY-MM-DD-i".
func parseID(id string) (time.Time, int, error) {
	rest, ok := strings.CutPrefix(id, idPrefix)
	if !ok || len(rest) < len(dateLayout)+2 || rest[len(dateLayout)] != '-' {
		return time.Time{}, 0, fmt.Errorf("%q: %w", id, domain.ErrAppointmentNotFound)
	}

	day, err := time.Parse(dateLayout, rest[:len(dateLayout)])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%q: %w", id, domain.ErrAppointmentNotFound)
	}
	index, err := strconv.Atoi(rest[len(dateLayout)+1:])
	if err != nil || index < 0 || index >= SlotsPerDay {
		return time.Time{}, 0, fmt.Errorf("%q: %w", id, domain.ErrAppointmentNotFound)
	}
	return day, index, nil
}
