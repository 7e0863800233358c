package domain

import "time"

// CalendarSlot is available exactly when BookedBySubmission is nil.
type CalendarSlot struct {
	ID                 string    `json:"id"`
	SlotStart          time.Time `json:"slot_start"`
	SlotEnd            time.Time `json:"slot_end"`
	IsAvailable        bool      `json:"is_available"`
	BookedBySubmission *string   `json:"booked_by_submission"`
	Notes              *string   `json:"notes"`
	CreatedBy          *string   `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
}

type SlotInput struct {
	SlotStart time.Time `json:"slot_start"`
	SlotEnd   time.Time `json:"slot_end"`
	Notes     *string   `json:"notes"`
}

func (in SlotInput) Validate() error {
	if in.SlotStart.IsZero() || in.SlotEnd.IsZero() {
		return Fail(ErrInvalidInput, "slot_start and slot_end are required")
	}
	if !in.SlotEnd.After(in.SlotStart) {
		return Fail(ErrInvalidInput, "Slot end must be after slot start")
	}
	return nil
}

type TimeRange struct {
	From time.Time
	To   time.Time
}
