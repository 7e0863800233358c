package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
	"github.com/kirillkom/policy-upload-portal/internal/core/ports"
)

var _ ports.CalendarManager = (*CalendarService)(nil)

const (
	availableWindow  = 30 * 24 * time.Hour
	adminLookBehind  = 7 * 24 * time.Hour
	adminLookAhead   = 60 * 24 * time.Hour
	maxSlotsPerBatch = 200
)

type CalendarService struct {
	submissions ports.SubmissionRepository
	calendar    ports.CalendarRepository
	sanitizer   ports.TextSanitizer
	audit       *Auditor
	now         func() time.Time
}

func NewCalendarService(
	submissions ports.SubmissionRepository,
	calendar ports.CalendarRepository,
	sanitizer ports.TextSanitizer,
	audit *Auditor,
) *CalendarService {
	return &CalendarService{
		submissions: submissions,
		calendar:    calendar,
		sanitizer:   sanitizer,
		audit:       audit,
		now:         utcNow,
	}
}

// Available lists free future slots. The window defaults to the next 30 days.
func (s *CalendarService) Available(ctx context.Context, from, to *time.Time) ([]domain.CalendarSlot, error) {
	now := s.now()
	start, end, err := window(from, to, now, availableWindow)
	if err != nil {
		return nil, err
	}
	slots, err := s.calendar.ListRange(ctx, start, end, true)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	out := make([]domain.CalendarSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.SlotStart.After(now) {
			out = append(out, slot)
		}
	}
	return out, nil
}

// Book reserves slotID for the submission behind slug. A submission holds at most one slot.
func (s *CalendarService) Book(ctx context.Context, meta domain.RequestMeta, slug, slotID string) (*domain.CalendarSlot, error) {
	if err := domain.ValidateSlug(slug); err != nil {
		return nil, err
	}
	if err := validateID(slotID, "slot"); err != nil {
		return nil, err
	}
	sub, err := s.submissions.GetBySlug(ctx, slug)
	if err != nil {
		return nil, submissionLookupError(err)
	}

	existing, err := s.calendar.FindBySubmission(ctx, sub.ID)
	switch {
	case err == nil && existing != nil:
		return nil, domain.Fail(domain.ErrConflict, "This submission already has a booked meeting slot")
	case err != nil && !domain.IsKind(err, domain.ErrNotFound):
		return nil, fmt.Errorf("find existing booking: %w", err)
	}

	slot, err := s.calendar.Book(ctx, slotID, sub.ID, s.now())
	if err != nil {
		switch {
		case domain.IsKind(err, domain.ErrConflict):
			return nil, domain.Fail(domain.ErrConflict, "Slot is not available")
		case domain.IsKind(err, domain.ErrNotFound):
			return nil, domain.Fail(domain.ErrNotFound, "Slot not found")
		}
		return nil, fmt.Errorf("book slot: %w", err)
	}

	s.audit.Record(ctx, domain.AuditSlotBooked, domain.EntitySlot, slot.ID, publicActor(meta), map[string]any{
		"submission_id": sub.ID,
		"slot_start":    slot.SlotStart,
	})
	return slot, nil
}

func (s *CalendarService) Cancel(ctx context.Context, meta domain.RequestMeta, slug string) error {
	if err := domain.ValidateSlug(slug); err != nil {
		return err
	}
	sub, err := s.submissions.GetBySlug(ctx, slug)
	if err != nil {
		return submissionLookupError(err)
	}
	slot, err := s.calendar.Cancel(ctx, sub.ID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return domain.Fail(domain.ErrNotFound, "No booking found for this submission")
		}
		return fmt.Errorf("cancel booking: %w", err)
	}
	s.audit.Record(ctx, domain.AuditSlotCancelled, domain.EntitySlot, slot.ID, publicActor(meta),
		map[string]any{"submission_id": sub.ID})
	return nil
}

// ListAll returns every slot for admins. The window defaults to a week back and 60 days ahead.
func (s *CalendarService) ListAll(ctx context.Context, from, to *time.Time) ([]domain.CalendarSlot, error) {
	now := s.now()
	if from == nil {
		f := now.Add(-adminLookBehind)
		from = &f
	}
	if to == nil {
		t := now.Add(adminLookAhead)
		to = &t
	}
	start, end, err := window(from, to, now, adminLookAhead)
	if err != nil {
		return nil, err
	}
	slots, err := s.calendar.ListRange(ctx, start, end, false)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// CreateSlots validates the whole batch before inserting any slot.
func (s *CalendarService) CreateSlots(
	ctx context.Context,
	admin *domain.AdminIdentity,
	meta domain.RequestMeta,
	inputs []domain.SlotInput,
) ([]domain.CalendarSlot, error) {
	if len(inputs) == 0 {
		return nil, domain.Fail(domain.ErrInvalidInput, "At least one slot is required")
	}
	if len(inputs) > maxSlotsPerBatch {
		return nil, domain.Failf(domain.ErrInvalidInput, "Too many slots in one request (max %d)", maxSlotsPerBatch)
	}
	for _, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, err
		}
	}

	who := adminActor(admin, meta)
	created := make([]domain.CalendarSlot, 0, len(inputs))
	for _, in := range inputs {
		slot := domain.CalendarSlot{
			ID:          uuid.NewString(),
			SlotStart:   in.SlotStart.UTC(),
			SlotEnd:     in.SlotEnd.UTC(),
			IsAvailable: true,
			Notes:       s.cleanOptional(in.Notes),
			CreatedBy:   optionalString(who.id),
			CreatedAt:   s.now(),
		}
		if err := s.calendar.Create(ctx, &slot); err != nil {
			return nil, fmt.Errorf("create slot: %w", err)
		}
		s.audit.Record(ctx, domain.AuditSlotCreated, domain.EntitySlot, slot.ID, who, map[string]any{
			"slot_start": slot.SlotStart,
			"slot_end":   slot.SlotEnd,
		})
		created = append(created, slot)
	}
	return created, nil
}

// DeleteSlot refuses booked slots. The booking has to be cancelled first.
func (s *CalendarService) DeleteSlot(ctx context.Context, admin *domain.AdminIdentity, meta domain.RequestMeta, id string) error {
	if err := validateID(id, "slot"); err != nil {
		return err
	}
	if err := s.calendar.DeleteUnbooked(ctx, id); err != nil {
		switch {
		case domain.IsKind(err, domain.ErrConflict):
			return domain.Fail(domain.ErrConflict, "Cannot delete a booked slot. Cancel the booking first")
		case domain.IsKind(err, domain.ErrNotFound):
			return domain.Fail(domain.ErrNotFound, "Slot not found")
		}
		return fmt.Errorf("delete slot: %w", err)
	}
	s.audit.Record(ctx, domain.AuditSlotDeleted, domain.EntitySlot, id, adminActor(admin, meta), nil)
	return nil
}

func (s *CalendarService) cleanOptional(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	if s.sanitizer != nil {
		out = s.sanitizer.Clean(out)
	}
	if out == "" {
		return nil
	}
	return &out
}

func window(from, to *time.Time, now time.Time, span time.Duration) (time.Time, time.Time, error) {
	start := now
	if from != nil {
		start = from.UTC()
	}
	end := start.Add(span)
	if to != nil {
		end = to.UTC()
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, domain.Fail(domain.ErrInvalidInput, "'to' must be after 'from'")
	}
	return start, end, nil
}
