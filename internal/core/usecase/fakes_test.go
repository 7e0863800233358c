package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

var errFake = errors.New("fake failure")

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedNow
}

func notFoundErr(op string) error {
	return domain.WrapError(domain.ErrNotFound, op, errors.New("no rows"))
}

type submissionStoreFake struct {
	mu        sync.Mutex
	byID      map[string]*domain.Submission
	collide   int
	createErr error
}

func newSubmissionStoreFake() *submissionStoreFake {
	return &submissionStoreFake{byID: map[string]*domain.Submission{}}
}

func (f *submissionStoreFake) put(sub domain.Submission) *domain.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := sub
	f.byID[sub.ID] = &cp
	return &cp
}

func (f *submissionStoreFake) findSlug(slug string) *domain.Submission {
	for _, s := range f.byID {
		if s.Slug == slug {
			return s
		}
	}
	return nil
}

func (f *submissionStoreFake) Create(_ context.Context, sub *domain.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.collide > 0 {
		f.collide--
		return domain.WrapError(domain.ErrSlugTaken, "insert submission", errFake)
	}
	if f.findSlug(sub.Slug) != nil {
		return domain.WrapError(domain.ErrSlugTaken, "insert submission", errFake)
	}
	cp := *sub
	f.byID[sub.ID] = &cp
	return nil
}

func (f *submissionStoreFake) GetBySlug(_ context.Context, slug string) (*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s := f.findSlug(slug); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, notFoundErr("get submission by slug")
}

func (f *submissionStoreFake) GetByID(_ context.Context, id string) (*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byID[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, notFoundErr("get submission by id")
}

func (f *submissionStoreFake) FindBySlugAndEmail(_ context.Context, slug, email string) (*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if strings.ToLower(s.Slug) == slug && s.SubmitterEmail != nil && strings.ToLower(*s.SubmitterEmail) == email {
			cp := *s
			return &cp, nil
		}
	}
	return nil, notFoundErr("find submission")
}

func (f *submissionStoreFake) UpdateDraft(_ context.Context, slug string, patch domain.SubmissionPatch, at time.Time) (*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.findSlug(slug)
	if s == nil {
		return nil, notFoundErr("update draft")
	}
	if s.Status != domain.StatusDraft {
		return nil, domain.WrapError(domain.ErrConflict, "update draft", errFake)
	}
	if patch.SubmitterName != nil {
		s.SubmitterName = *patch.SubmitterName
	}
	if patch.SubmitterEmail != nil {
		s.SubmitterEmail = patch.SubmitterEmail
	}
	if patch.Organization != nil {
		s.Organization = *patch.Organization
	}
	if patch.OrganizationDepartment != nil {
		s.OrganizationDepartment = patch.OrganizationDepartment
	}
	s.UpdatedAt = at
	cp := *s
	return &cp, nil
}

func (f *submissionStoreFake) Submit(_ context.Context, slug string, at time.Time) (*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.findSlug(slug)
	if s == nil {
		return nil, notFoundErr("submit")
	}
	if s.Status != domain.StatusDraft {
		return nil, domain.WrapError(domain.ErrConflict, "submit", errFake)
	}
	s.Status = domain.StatusSubmitted
	s.SubmittedAt = &at
	s.UpdatedAt = at
	cp := *s
	return &cp, nil
}

func (f *submissionStoreFake) SetStatus(_ context.Context, id string, status domain.SubmissionStatus, notes *string, at time.Time) (*domain.Submission, domain.SubmissionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, "", notFoundErr("set status")
	}
	prev := s.Status
	s.Status = status
	if notes != nil {
		s.Notes = notes
	}
	s.UpdatedAt = at
	cp := *s
	return &cp, prev, nil
}

func (f *submissionStoreFake) Forward(_ context.Context, id, forwardTo string, notes *string, at time.Time) (*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, notFoundErr("forward")
	}
	if !s.Status.Forwardable() {
		return nil, domain.WrapError(domain.ErrConflict, "forward", errFake)
	}
	s.Status = domain.StatusForwarded
	s.ForwardedTo = &forwardTo
	s.ForwardedAt = &at
	if notes != nil {
		s.Notes = notes
	}
	cp := *s
	return &cp, nil
}

func (f *submissionStoreFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return notFoundErr("delete")
	}
	delete(f.byID, id)
	return nil
}

func (f *submissionStoreFake) DeleteDraftsCreatedBefore(_ context.Context, cutoff time.Time) ([]domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Submission
	for id, s := range f.byID {
		if s.Status == domain.StatusDraft && s.CreatedAt.Before(cutoff) {
			out = append(out, *s)
			delete(f.byID, id)
		}
	}
	return out, nil
}

func (f *submissionStoreFake) List(_ context.Context, filter domain.SubmissionFilter) ([]domain.Submission, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.Submission
	for _, s := range f.byID {
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		all = append(all, *s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Slug < all[j].Slug })
	start := filter.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (f *submissionStoreFake) CountByStatus(context.Context) (map[domain.SubmissionStatus]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[domain.SubmissionStatus]int64{}
	for _, s := range f.byID {
		out[s.Status]++
	}
	return out, nil
}

type documentStoreFake struct {
	mu        sync.Mutex
	docs      []domain.Document
	createErr error
}

func (f *documentStoreFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.docs = append(f.docs, *doc)
	return nil
}

func (f *documentStoreFake) ListBySubmission(_ context.Context, submissionID string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Document{}
	for _, d := range f.docs {
		if d.SubmissionID == submissionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *documentStoreFake) GetForSubmission(_ context.Context, submissionID, documentID string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == documentID && d.SubmissionID == submissionID {
			cp := d
			return &cp, nil
		}
	}
	return nil, notFoundErr("get document")
}

func (f *documentStoreFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.docs {
		if d.ID == id {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			return nil
		}
	}
	return notFoundErr("delete document")
}

func (f *documentStoreFake) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.docs)), nil
}

type adminUserStoreFake struct {
	users   map[string]*domain.AdminUser
	touched []string
}

func (f *adminUserStoreFake) GetActiveByUsername(_ context.Context, username string) (*domain.AdminUser, error) {
	for _, u := range f.users {
		if u.Username == username && u.IsActive {
			cp := *u
			return &cp, nil
		}
	}
	return nil, notFoundErr("get admin")
}

func (f *adminUserStoreFake) GetActiveByID(_ context.Context, id string) (*domain.AdminUser, error) {
	if u, ok := f.users[id]; ok && u.IsActive {
		cp := *u
		return &cp, nil
	}
	return nil, notFoundErr("get admin by id")
}

func (f *adminUserStoreFake) ExistsByUsername(_ context.Context, username string) (bool, error) {
	for _, u := range f.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *adminUserStoreFake) Create(_ context.Context, user *domain.AdminUser) error {
	if f.users == nil {
		f.users = map[string]*domain.AdminUser{}
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *adminUserStoreFake) TouchLastLogin(_ context.Context, id string, _ time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

type adminSessionStoreFake struct {
	mu       sync.Mutex
	sessions map[string]domain.AdminSession
}

func (f *adminSessionStoreFake) Create(_ context.Context, s *domain.AdminSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessions == nil {
		f.sessions = map[string]domain.AdminSession{}
	}
	f.sessions[s.TokenHash] = *s
	return nil
}

func (f *adminSessionStoreFake) GetValid(_ context.Context, tokenHash string, now time.Time) (*domain.AdminSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[tokenHash]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, notFoundErr("get admin session")
	}
	return &s, nil
}

func (f *adminSessionStoreFake) Delete(_ context.Context, tokenHash string) (*domain.AdminSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[tokenHash]
	if !ok {
		return nil, notFoundErr("delete admin session")
	}
	delete(f.sessions, tokenHash)
	return &s, nil
}

func (f *adminSessionStoreFake) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, s := range f.sessions {
		if !s.ExpiresAt.After(now) {
			delete(f.sessions, k)
			n++
		}
	}
	return n, nil
}

type uploaderSessionStoreFake struct {
	mu       sync.Mutex
	sessions map[string]domain.UploaderSession
	err      error
}

func (f *uploaderSessionStoreFake) Create(_ context.Context, s *domain.UploaderSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessions == nil {
		f.sessions = map[string]domain.UploaderSession{}
	}
	f.sessions[s.TokenHash] = *s
	return nil
}

func (f *uploaderSessionStoreFake) GetValid(_ context.Context, tokenHash string, now time.Time) (*domain.UploaderSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[tokenHash]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, notFoundErr("get uploader session")
	}
	return &s, nil
}

func (f *uploaderSessionStoreFake) Delete(_ context.Context, tokenHash string) (*domain.UploaderSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[tokenHash]
	if !ok {
		return nil, notFoundErr("delete uploader session")
	}
	delete(f.sessions, tokenHash)
	return &s, nil
}

func (f *uploaderSessionStoreFake) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, s := range f.sessions {
		if !s.ExpiresAt.After(now) {
			delete(f.sessions, k)
			n++
		}
	}
	return n, nil
}

// calendarStoreFake serializes Book under a mutex the way a conditional UPDATE serializes in the database.
type calendarStoreFake struct {
	mu    sync.Mutex
	slots map[string]*domain.CalendarSlot
}

func newCalendarStoreFake(slots ...domain.CalendarSlot) *calendarStoreFake {
	f := &calendarStoreFake{slots: map[string]*domain.CalendarSlot{}}
	for i := range slots {
		cp := slots[i]
		f.slots[cp.ID] = &cp
	}
	return f
}

func (f *calendarStoreFake) Create(_ context.Context, slot *domain.CalendarSlot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *slot
	f.slots[slot.ID] = &cp
	return nil
}

func (f *calendarStoreFake) ListRange(_ context.Context, from, to time.Time, onlyAvailable bool) ([]domain.CalendarSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CalendarSlot
	for _, s := range f.slots {
		if s.SlotStart.Before(from) || s.SlotStart.After(to) {
			continue
		}
		if onlyAvailable && !s.IsAvailable {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStart.Before(out[j].SlotStart) })
	return out, nil
}

func (f *calendarStoreFake) FindBySubmission(_ context.Context, submissionID string) (*domain.CalendarSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.slots {
		if s.BookedBySubmission != nil && *s.BookedBySubmission == submissionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, notFoundErr("find booking")
}

func (f *calendarStoreFake) Book(_ context.Context, slotID, submissionID string, now time.Time) (*domain.CalendarSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[slotID]
	if !ok {
		return nil, notFoundErr("book")
	}
	if !s.IsAvailable || s.BookedBySubmission != nil || !s.SlotStart.After(now) {
		return nil, domain.WrapError(domain.ErrConflict, "book", errFake)
	}
	s.IsAvailable = false
	sub := submissionID
	s.BookedBySubmission = &sub
	cp := *s
	return &cp, nil
}

func (f *calendarStoreFake) Cancel(_ context.Context, submissionID string) (*domain.CalendarSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.slots {
		if s.BookedBySubmission != nil && *s.BookedBySubmission == submissionID {
			s.IsAvailable = true
			s.BookedBySubmission = nil
			cp := *s
			return &cp, nil
		}
	}
	return nil, notFoundErr("cancel")
}

func (f *calendarStoreFake) DeleteUnbooked(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return notFoundErr("delete slot")
	}
	if s.BookedBySubmission != nil {
		return domain.WrapError(domain.ErrConflict, "delete slot", errFake)
	}
	delete(f.slots, id)
	return nil
}

func (f *calendarStoreFake) CountAvailableFrom(_ context.Context, from time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.slots {
		if s.IsAvailable && s.SlotStart.After(from) {
			n++
		}
	}
	return n, nil
}

type rateLimitStoreFake struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	pruned   int64
}

func (f *rateLimitStoreFake) RecordIfUnder(_ context.Context, ip, endpoint string, at, since time.Time, limit int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countLocked(ip, endpoint, since) >= limit {
		return false, nil
	}
	if f.attempts == nil {
		f.attempts = map[string][]time.Time{}
	}
	key := ip + "|" + endpoint
	f.attempts[key] = append(f.attempts[key], at)
	return true, nil
}

func (f *rateLimitStoreFake) CountSince(_ context.Context, ip, endpoint string, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countLocked(ip, endpoint, since), nil
}

func (f *rateLimitStoreFake) countLocked(ip, endpoint string, since time.Time) int64 {
	var n int64
	for _, at := range f.attempts[ip+"|"+endpoint] {
		if at.After(since) {
			n++
		}
	}
	return n
}

func (f *rateLimitStoreFake) DeleteBefore(context.Context, time.Time) (int64, error) {
	return f.pruned, nil
}

type auditStoreFake struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (f *auditStoreFake) Append(_ context.Context, entry domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *auditStoreFake) ListForEntity(_ context.Context, entityType, entityID string) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range f.entries {
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *auditStoreFake) actions() []domain.AuditAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

func (f *auditStoreFake) last() domain.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[len(f.entries)-1]
}

type storageFake struct {
	mu         sync.Mutex
	files      map[string][]byte
	removed    []string
	removedDir []string
	saveErr    error
}

func newStorageFake() *storageFake {
	return &storageFake{files: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, dir, name string, data io.Reader, maxBytes int64) (string, int64, error) {
	if f.saveErr != nil {
		return "", 0, f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", 0, err
	}
	if maxBytes > 0 && int64(len(raw)) > maxBytes {
		return "", 0, domain.Fail(domain.ErrInvalidInput, "File too large")
	}
	key := dir + "/" + name
	f.mu.Lock()
	f.files[key] = raw
	f.mu.Unlock()
	return key, int64(len(raw)), nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.files[key]
	if !ok {
		return nil, notFoundErr("open")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	f.removed = append(f.removed, key)
	return nil
}

func (f *storageFake) RemoveDir(_ context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.files {
		if strings.HasPrefix(k, dir+"/") {
			delete(f.files, k)
		}
	}
	f.removedDir = append(f.removedDir, dir)
	return nil
}

type tokensFake struct {
	mu sync.Mutex
	n  int
}

func (f *tokensFake) Generate() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("token-%d", f.n), nil
}

func (f *tokensFake) Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// hasherFake stores "plain:<password>" and treats anything else as malformed.
type hasherFake struct{}

func (hasherFake) Hash(plain string) (string, error) {
	return "plain:" + plain, nil
}

func (hasherFake) Verify(plain, encoded string) (bool, error) {
	stored, ok := strings.CutPrefix(encoded, "plain:")
	if !ok {
		return false, errors.New("malformed hash")
	}
	return stored == plain, nil
}

type sanitizerFake struct{}

func (sanitizerFake) Clean(s string) string {
	s = strings.ReplaceAll(s, "<b>", "")
	s = strings.ReplaceAll(s, "</b>", "")
	return strings.TrimSpace(s)
}

type notifierFake struct {
	events []domain.ForwardEvent
	err    error
}

func (f *notifierFake) PublishSubmissionForwarded(_ context.Context, event domain.ForwardEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type inspectorFake struct {
	pages int
	err   error
}

func (f inspectorFake) Inspect(context.Context, string, string) (domain.FileInspection, error) {
	if f.err != nil {
		return domain.FileInspection{}, f.err
	}
	n := f.pages
	return domain.FileInspection{PageCount: &n}, nil
}

func newTestAuditor(store *auditStoreFake) *Auditor {
	a := NewAuditor(store)
	a.now = fixedClock
	return a
}

func newTestLimiter(store *rateLimitStoreFake) *RateLimiter {
	l := NewRateLimiter(store, DefaultRateLimitPolicy())
	l.now = fixedClock
	return l
}

func strPtr(s string) *string {
	return &s
}

var testMeta = domain.RequestMeta{ClientIP: "203.0.113.7", UserAgent: "test-agent"}
