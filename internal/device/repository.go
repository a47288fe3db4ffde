package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the persistence operations of the bike registry.
type Repository interface {
	// GetByID retrieves a bike by id.
	// Returns ErrDeviceNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all bikes ordered by name.
	List(ctx context.Context) ([]Device, error)

	// Upsert inserts the bike or updates its metadata in place.
	// CreatedAt is preserved on update.
	Upsert(ctx context.Context, device *Device) error

	// Delete removes a bike by id.
	// Returns ErrDeviceNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The bikes table must already exist (see migrations).
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
	SELECT id, entry_id, name, manufacturer, model, serial_number, hw_version,
		created_at, updated_at
	FROM bikes`

// GetByID retrieves a bike by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying bike by id: %w", err)
	}
	return device, nil
}

// List retrieves all bikes.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying bikes: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bike: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bikes: %w", err)
	}
	return devices, nil
}

// Upsert inserts or updates a bike.
func (r *SQLiteRepository) Upsert(ctx context.Context, device *Device) error {
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	query := `
		INSERT INTO bikes (
			id, entry_id, name, manufacturer, model, serial_number, hw_version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entry_id = excluded.entry_id,
			name = excluded.name,
			manufacturer = excluded.manufacturer,
			model = excluded.model,
			serial_number = excluded.serial_number,
			hw_version = excluded.hw_version,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		device.ID,
		device.EntryID,
		device.Name,
		device.Manufacturer,
		device.Model,
		nullableString(device.SerialNumber),
		nullableString(device.HWVersion),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting bike: %w", err)
	}
	return nil
}

// Delete removes a bike by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bikes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting bike: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var serial, hw sql.NullString
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&d.ID,
		&d.EntryID,
		&d.Name,
		&d.Manufacturer,
		&d.Model,
		&serial,
		&hw,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if serial.Valid {
		d.SerialNumber = &serial.String
	}
	if hw.Valid {
		d.HWVersion = &hw.String
	}

	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &d, nil
}

// nullableString maps nil or empty to SQL NULL.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
