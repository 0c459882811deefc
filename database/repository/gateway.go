// database/repository/gateway.go
package repository

import (
	"context"
	"fmt"
	"time"

	gardenRepo "pawboard/database/repository/garden"
	groomingRepo "pawboard/database/repository/grooming"
	"pawboard/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// bookingStore is the part of a domain repository the gateway routes to.
type bookingStore interface {
	GetByWindow(ctx context.Context, from, to time.Time) ([]models.ServiceBooking, error)
	GetByID(ctx context.Context, id string) (*models.ServiceBooking, error)
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus) (*models.ServiceBooking, error)
	Reschedule(ctx context.Context, id string, start, end time.Time) (*models.ServiceBooking, error)
	Delete(ctx context.Context, id string) error
}

var (
	_ bookingStore = (groomingRepo.GroomingRepository)(nil)
	_ bookingStore = (*gardenRepo.GardenRepositoryImpl)(nil)
)

// BookingGateway fronts both booking stores. Each change goes to the store
// that owns the booking; the two stores never share a transaction.
type BookingGateway struct {
	Grooming bookingStore
	Garden   bookingStore
	Location *time.Location
	Logger   *zap.Logger
}

func NewBookingGateway(grooming groomingRepo.GroomingRepository, garden gardenRepo.GardenRepository, loc *time.Location, logger *zap.Logger) *BookingGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingGateway{Grooming: grooming, Garden: garden, Location: loc, Logger: logger.Named("gateway")}
}

// FetchDay loads both domains for the calendar day in the facility timezone.
func (g *BookingGateway) FetchDay(ctx context.Context, date string) (models.DaySchedule, error) {
	loc := g.Location
	if loc == nil {
		loc = time.Local
	}
	from, err := time.ParseInLocation(models.DateLayout, date, loc)
	if err != nil {
		return models.DaySchedule{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	to := from.AddDate(0, 0, 1)

	day := models.DaySchedule{Date: date}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		bookings, err := g.Grooming.GetByWindow(egCtx, from, to)
		if err != nil {
			return fmt.Errorf("grooming: %w", err)
		}
		day.Grooming = bookings
		return nil
	})
	eg.Go(func() error {
		bookings, err := g.Garden.GetByWindow(egCtx, from, to)
		if err != nil {
			return fmt.Errorf("garden: %w", err)
		}
		day.Garden = bookings
		return nil
	})
	if err := eg.Wait(); err != nil {
		return models.DaySchedule{}, fmt.Errorf("failed to fetch day %s: %w", date, err)
	}
	return day, nil
}

// Apply sends one change to the store owning the booking. Deletes return a nil
// booking.
func (g *BookingGateway) Apply(ctx context.Context, domain models.Domain, bookingID string, change models.BookingChange) (*models.ServiceBooking, error) {
	store, err := g.store(domain)
	if err != nil {
		return nil, err
	}

	switch change.Action {
	case models.ActionApprove, models.ActionDecline, models.ActionCancel:
		current, err := store.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if !transitionAllowed(current.Status, change.Status) {
			return nil, fmt.Errorf("%w: %s booking %s is already %s", models.ErrChangeRejected, domain, bookingID, current.Status)
		}
		if current.Status == change.Status {
			return current, nil
		}
		return store.UpdateStatus(ctx, bookingID, change.Status)

	case models.ActionReschedule:
		if change.StartAt.IsZero() || !change.StartAt.Before(change.EndAt) {
			return nil, fmt.Errorf("%w: start must be before end", models.ErrChangeRejected)
		}
		current, err := store.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.StatusCancelled || current.Status == models.StatusCompleted {
			return nil, fmt.Errorf("%w: %s booking %s is %s", models.ErrChangeRejected, domain, bookingID, current.Status)
		}
		return store.Reschedule(ctx, bookingID, change.StartAt, change.EndAt)

	case models.ActionDelete:
		if err := store.Delete(ctx, bookingID); err != nil {
			return nil, err
		}
		g.logger().Info("Booking deleted", zap.String("domain", string(domain)), zap.String("bookingId", bookingID))
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unsupported action %q", models.ErrChangeRejected, change.Action)
}

func (g *BookingGateway) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}

func (g *BookingGateway) store(domain models.Domain) (bookingStore, error) {
	switch domain {
	case models.DomainGrooming:
		return g.Grooming, nil
	case models.DomainGarden:
		return g.Garden, nil
	}
	return nil, fmt.Errorf("unknown domain %q", domain)
}

// transitionAllowed rejects status changes on bookings that are finished.
func transitionAllowed(from, to models.BookingStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case models.StatusCancelled, models.StatusCompleted:
		return false
	}
	return true
}
