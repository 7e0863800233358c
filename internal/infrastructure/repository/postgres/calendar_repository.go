package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

const slotColumns = `id, slot_start, slot_end, is_available, booked_by_submission, notes, created_by, created_at`

type CalendarRepository struct {
	db *sql.DB
}

func NewCalendarRepository(db *sql.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

func scanSlot(row rowScanner) (*domain.CalendarSlot, error) {
	var s domain.CalendarSlot
	if err := row.Scan(&s.ID, &s.SlotStart, &s.SlotEnd, &s.IsAvailable, &s.BookedBySubmission, &s.Notes, &s.CreatedBy, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CalendarRepository) Create(ctx context.Context, slot *domain.CalendarSlot) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO calendar_slots (id, slot_start, slot_end, is_available, notes, created_by, created_at)
VALUES ($1,$2,$3,TRUE,$4,$5,$6)
`, slot.ID, slot.SlotStart, slot.SlotEnd, slot.Notes, slot.CreatedBy, slot.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert calendar slot: %w", err)
	}
	return nil
}

func (r *CalendarRepository) ListRange(ctx context.Context, from, to time.Time, onlyAvailable bool) ([]domain.CalendarSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM calendar_slots WHERE slot_start >= $1 AND slot_start <= $2`
	if onlyAvailable {
		query += ` AND is_available = TRUE`
	}
	query += ` ORDER BY slot_start ASC`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list calendar slots: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CalendarSlot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar slot: %w", err)
		}
		out = append(out, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calendar slots: %w", err)
	}
	return out, nil
}

func (r *CalendarRepository) FindBySubmission(ctx context.Context, submissionID string) (*domain.CalendarSlot, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM calendar_slots WHERE booked_by_submission = $1`, submissionID)
	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("find booked slot", err)
		}
		return nil, fmt.Errorf("scan calendar slot: %w", err)
	}
	return slot, nil
}

// Book claims a free future slot. Two concurrent bookings of one slot leave exactly one winner.
func (r *CalendarRepository) Book(ctx context.Context, slotID, submissionID string, now time.Time) (*domain.CalendarSlot, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE calendar_slots
SET is_available = FALSE, booked_by_submission = $2
WHERE id = $1 AND is_available = TRUE AND booked_by_submission IS NULL AND slot_start > $3
RETURNING `+slotColumns, slotID, submissionID, now)
	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missingOrConflict(ctx, "book calendar slot", slotID)
		}
		if isUniqueViolation(err, "uq_calendar_slots_booked_by") {
			return nil, domain.WrapError(domain.ErrConflict, "book calendar slot", err)
		}
		return nil, fmt.Errorf("book calendar slot: %w", err)
	}
	return slot, nil
}

// Cancel releases the slot held by submissionID.
func (r *CalendarRepository) Cancel(ctx context.Context, submissionID string) (*domain.CalendarSlot, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE calendar_slots
SET is_available = TRUE, booked_by_submission = NULL
WHERE booked_by_submission = $1
RETURNING `+slotColumns, submissionID)
	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("cancel booking", err)
		}
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	return slot, nil
}

// DeleteUnbooked removes a slot only while nobody holds it.
func (r *CalendarRepository) DeleteUnbooked(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calendar_slots WHERE id = $1 AND booked_by_submission IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete calendar slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete calendar slot rows affected: %w", err)
	}
	if affected == 0 {
		return r.missingOrConflict(ctx, "delete calendar slot", id)
	}
	return nil
}

func (r *CalendarRepository) CountAvailableFrom(ctx context.Context, from time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calendar_slots WHERE is_available = TRUE AND slot_start > $1`, from).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count available slots: %w", err)
	}
	return n, nil
}

func (r *CalendarRepository) missingOrConflict(ctx context.Context, op, id string) error {
	found, err := exists(ctx, r.db, `SELECT EXISTS (SELECT 1 FROM calendar_slots WHERE id = $1)`, id)
	if err != nil {
		return fmt.Errorf("%s: check existence: %w", op, err)
	}
	if !found {
		return notFound(op, sql.ErrNoRows)
	}
	return domain.WrapError(domain.ErrConflict, op, errors.New("slot is booked or in the past"))
}
