package gardenRepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pawboard/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type GardenRepository interface {
	GetByWindow(ctx context.Context, from, to time.Time) ([]models.ServiceBooking, error)
	GetByID(ctx context.Context, id string) (*models.ServiceBooking, error)
	Create(ctx context.Context, booking *models.ServiceBooking) (string, error)
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus) (*models.ServiceBooking, error)
	Reschedule(ctx context.Context, id string, start, end time.Time) (*models.ServiceBooking, error)
	Delete(ctx context.Context, id string) error
}

type GardenRepositoryImpl struct {
	db *sqlx.DB
}

func NewGardenRepository(db *DB) *GardenRepositoryImpl {
	return &GardenRepositoryImpl{db: db.DB}
}

const selectColumns = `
	id,
	client_id,
	client_name,
	subject_id,
	subject_name,
	start_at,
	end_at,
	status,
	notes,
	updated_at`

// GetByWindow returns the bookings starting in [from, to), ordered by start.
func (r *GardenRepositoryImpl) GetByWindow(ctx context.Context, from, to time.Time) ([]models.ServiceBooking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT` + selectColumns + `
		FROM garden_bookings
		WHERE start_at >= $1 AND start_at < $2
		ORDER BY start_at ASC, id ASC`

	var bookings []models.ServiceBooking
	if err := r.db.SelectContext(ctx, &bookings, query, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("failed to query garden bookings: %w", err)
	}
	for i := range bookings {
		normalize(&bookings[i])
	}
	return bookings, nil
}

func (r *GardenRepositoryImpl) GetByID(ctx context.Context, id string) (*models.ServiceBooking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT` + selectColumns + `
		FROM garden_bookings
		WHERE id = $1`

	var booking models.ServiceBooking
	err := r.db.GetContext(ctx, &booking, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("garden booking %s: %w", id, models.ErrBookingNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query garden booking %s: %w", id, err)
	}
	normalize(&booking)
	return &booking, nil
}

func (r *GardenRepositoryImpl) Create(ctx context.Context, booking *models.ServiceBooking) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	booking.Domain = models.DomainGarden
	booking.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO garden_bookings (
			id, client_id, client_name, subject_id, subject_name,
			start_at, end_at, status, notes, updated_at
		) VALUES (
			:id, :client_id, :client_name, :subject_id, :subject_name,
			:start_at, :end_at, :status, :notes, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return "", fmt.Errorf("failed to insert garden booking: %w", err)
	}
	return booking.ID, nil
}

func (r *GardenRepositoryImpl) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) (*models.ServiceBooking, error) {
	query := `
		UPDATE garden_bookings
		SET status = $1,
			updated_at = $2
		WHERE id = $3
		RETURNING` + selectColumns
	return r.updateReturning(ctx, id, query, status, time.Now().UTC(), id)
}

func (r *GardenRepositoryImpl) Reschedule(ctx context.Context, id string, start, end time.Time) (*models.ServiceBooking, error) {
	query := `
		UPDATE garden_bookings
		SET start_at = $1,
			end_at = $2,
			updated_at = $3
		WHERE id = $4
		RETURNING` + selectColumns
	return r.updateReturning(ctx, id, query, start.UTC(), end.UTC(), time.Now().UTC(), id)
}

func (r *GardenRepositoryImpl) updateReturning(ctx context.Context, id, query string, args ...interface{}) (*models.ServiceBooking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var booking models.ServiceBooking
	err := r.db.GetContext(ctx, &booking, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("garden booking %s: %w", id, models.ErrBookingNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update garden booking %s: %w", id, err)
	}
	normalize(&booking)
	return &booking, nil
}

func (r *GardenRepositoryImpl) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM garden_bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete garden booking %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("garden booking %s: %w", id, models.ErrBookingNotFound)
	}
	return nil
}

func normalize(b *models.ServiceBooking) {
	b.Domain = models.DomainGarden
	if s, err := models.ParseBookingStatus(string(b.Status)); err == nil {
		b.Status = s
	}
}
