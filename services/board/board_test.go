package board

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"pawboard/models"
)

const testDate = "2025-05-01"

var serverTime = time.Date(2025, time.May, 1, 6, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return time.Date(2025, time.May, 1, hour, min, 0, 0, time.UTC)
}

func bk(id, subject string, start, end time.Time) models.ServiceBooking {
	return models.ServiceBooking{
		ID:        id,
		ClientID:  "client-" + subject,
		SubjectID: subject,
		StartAt:   start,
		EndAt:     end,
		Status:    models.StatusPending,
	}
}

// G1 and D1 merge into one visit for rex; G2 stands alone.
func testDay() models.DaySchedule {
	return models.DaySchedule{
		Date: testDate,
		Grooming: []models.ServiceBooking{
			bk("G1", "rex", at(10, 0), at(11, 0)),
			bk("G2", "bo", at(13, 0), at(14, 0)),
		},
		Garden: []models.ServiceBooking{
			bk("D1", "rex", at(9, 0), at(17, 0)),
		},
	}
}

type fakeFetcher struct {
	mu          sync.Mutex
	days        map[string]models.DaySchedule
	calls       int
	invalidated []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{days: map[string]models.DaySchedule{testDate: testDay()}}
}

func (f *fakeFetcher) FetchDay(_ context.Context, date string) (models.DaySchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	d := f.days[date]
	return models.DaySchedule{
		Date:     date,
		Grooming: append([]models.ServiceBooking(nil), d.Grooming...),
		Garden:   append([]models.ServiceBooking(nil), d.Garden...),
	}, nil
}

func (f *fakeFetcher) InvalidateDay(_ context.Context, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, date)
	return nil
}

// apply mirrors a confirmed change so later fetches see it.
func (f *fakeFetcher) apply(bookingID string, change models.BookingChange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for date, d := range f.days {
		d.Grooming = applyChange(d.Grooming, bookingID, change)
		d.Garden = applyChange(d.Garden, bookingID, change)
		f.days[date] = d
	}
}

func applyChange(list []models.ServiceBooking, bookingID string, change models.BookingChange) []models.ServiceBooking {
	out := make([]models.ServiceBooking, 0, len(list))
	for _, bk := range list {
		if bk.ID == bookingID {
			if change.Action == models.ActionDelete {
				continue
			}
			if change.Status != "" {
				bk.Status = change.Status
			}
			if !change.StartAt.IsZero() {
				bk.StartAt, bk.EndAt = change.StartAt, change.EndAt
			}
			bk.UpdatedAt = serverTime
		}
		out = append(out, bk)
	}
	return out
}

func (f *fakeFetcher) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type applyCall struct {
	domain    models.Domain
	bookingID string
	change    models.BookingChange
}

// fakeMutator answers every Apply once gate is closed (immediately when gate
// is nil). Bookings listed in fail are rejected with that error. Accepted
// changes are written through to store when set.
type fakeMutator struct {
	mu      sync.Mutex
	calls   []applyCall
	fail    map[string]error
	gate    chan struct{}
	started chan struct{}
	store   *fakeFetcher
}

func newFakeMutator(gated bool) *fakeMutator {
	m := &fakeMutator{fail: map[string]error{}, started: make(chan struct{}, 16)}
	if gated {
		m.gate = make(chan struct{})
	}
	return m
}

func (m *fakeMutator) Apply(_ context.Context, domain models.Domain, bookingID string, change models.BookingChange) (*models.ServiceBooking, error) {
	m.mu.Lock()
	m.calls = append(m.calls, applyCall{domain, bookingID, change})
	err := m.fail[bookingID]
	gate, store := m.gate, m.store
	m.mu.Unlock()
	m.started <- struct{}{}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if store != nil {
		store.apply(bookingID, change)
	}
	return &models.ServiceBooking{ID: bookingID, Domain: domain, Status: change.Status, UpdatedAt: serverTime}, nil
}

func (m *fakeMutator) release() {
	close(m.gate)
}

func (m *fakeMutator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *fakeMutator) waitStarted(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-m.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d remote calls started", i, n)
		}
	}
}

type recordingHook struct {
	mu        sync.Mutex
	mutations []models.PendingMutation
}

func (h *recordingHook) AfterCommit(_ context.Context, _ models.ScheduleEntry, m models.PendingMutation) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mutations = append(h.mutations, m)
	return nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	tags []string
}

func (p *recordingPublisher) Publish(_ context.Context, tags ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tags = append(p.tags, tags...)
	return nil
}

func newTestBoard(t *testing.T, deps Dependencies) *Board {
	t.Helper()
	if m, ok := deps.Mutator.(*fakeMutator); ok {
		if f, ok := deps.Fetcher.(*fakeFetcher); ok {
			m.store = f
		}
	}
	b := NewBoard(deps, Config{Location: time.UTC, DayStartHour: 7, DayEndHour: 20}, nil)
	if err := b.Load(context.Background(), testDate); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(b.Drain)
	return b
}

func waitTicket(t *testing.T, tk *Ticket) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := tk.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("mutation never settled")
	}
	return err
}

func mustResolve(t *testing.T, b *Board, id string) models.ScheduleEntry {
	t.Helper()
	e, err := b.Resolve(id)
	if err != nil {
		t.Fatalf("resolve %s: %v", id, err)
	}
	return e
}

func TestLoadMergesDay(t *testing.T) {
	b := newTestBoard(t, Dependencies{Fetcher: newFakeFetcher(), Mutator: newFakeMutator(false)})
	entries := b.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	rex := mustResolve(t, b, "G1")
	if rex.Kind != models.KindBoth || !rex.StartAt.Equal(at(9, 0)) || !rex.EndAt.Equal(at(17, 0)) {
		t.Errorf("unexpected merged entry %+v", rex)
	}
}

func TestDispatchAppliesBeforeConfirmation(t *testing.T) {
	mut := newFakeMutator(true)
	b := newTestBoard(t, Dependencies{Fetcher: newFakeFetcher(), Mutator: mut})

	tk, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionApprove})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got := mustResolve(t, b, "G2").Status; got != models.StatusApproved {
		t.Errorf("optimistic status = %q, want approved", got)
	}
	if !b.Pending("G2") {
		t.Error("entry should be pending while the call is in flight")
	}

	mut.release()
	if err := waitTicket(t, tk); err != nil {
		t.Fatalf("settle: %v", err)
	}
	e := mustResolve(t, b, "G2")
	if e.Status != models.StatusApproved {
		t.Errorf("status after commit = %q", e.Status)
	}
	if !e.Parts[0].UpdatedAt.Equal(serverTime) {
		t.Errorf("server timestamp not folded in: %v", e.Parts[0].UpdatedAt)
	}
	if b.Pending("G2") {
		t.Error("pending mutation not cleared")
	}
}

func TestDispatchRollbackRestoresExactSnapshot(t *testing.T) {
	mut := newFakeMutator(true)
	mut.fail["D1"] = errors.New("garden store unavailable")
	b := newTestBoard(t, Dependencies{Fetcher: newFakeFetcher(), Mutator: mut})

	before := b.Entries()
	tk, err := b.Dispatch(context.Background(), Intent{
		EntryID: "G1",
		Action:  models.ActionReschedule,
		Domain:  models.DomainGarden,
		StartAt: at(10, 0),
		EndAt:   at(12, 0),
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	optimistic := mustResolve(t, b, "G1")
	if !optimistic.StartAt.Equal(at(10, 0)) || !optimistic.EndAt.Equal(at(12, 0)) {
		t.Errorf("optimistic union = %v-%v, want 10:00-12:00", optimistic.StartAt, optimistic.EndAt)
	}

	mut.release()
	err = waitTicket(t, tk)
	var merr *MutationError
	if !errors.As(err, &merr) {
		t.Fatalf("expected *MutationError, got %v", err)
	}
	if merr.Domain != models.DomainGarden || merr.BookingID != "D1" {
		t.Errorf("error names %s/%s", merr.Domain, merr.BookingID)
	}
	if !reflect.DeepEqual(before, b.Entries()) {
		t.Errorf("cache not restored:\nbefore %+v\nafter  %+v", before, b.Entries())
	}
}

func TestDeleteRollbackReinsertsEntry(t *testing.T) {
	mut := newFakeMutator(true)
	mut.fail["G2"] = models.ErrChangeRejected
	b := newTestBoard(t, Dependencies{Fetcher: newFakeFetcher(), Mutator: mut})

	before := b.Entries()
	tk, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionDelete})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := b.Resolve("G2"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("deleted entry still resolvable: %v", err)
	}
	mut.release()
	if err := waitTicket(t, tk); err == nil {
		t.Fatal("expected failure")
	}
	if !reflect.DeepEqual(before, b.Entries()) {
		t.Error("deleted entry not restored at its place")
	}
}

func TestDispatchRejectsSecondMutationWhileInFlight(t *testing.T) {
	mut := newFakeMutator(true)
	b := newTestBoard(t, Dependencies{Fetcher: newFakeFetcher(), Mutator: mut})

	tk, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionApprove})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	mut.waitStarted(t, 1)
	during := b.Entries()

	_, err = b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionCancel})
	if !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("expected ErrMutationInFlight, got %v", err)
	}
	if !reflect.DeepEqual(during, b.Entries()) {
		t.Error("rejected intent changed the cache")
	}
	if n := mut.callCount(); n != 1 {
		t.Errorf("remote calls = %d, want 1", n)
	}
	mut.release()
	_ = waitTicket(t, tk)
}

func TestApprovingGroomingHalfLeavesVisitPending(t *testing.T) {
	b := newTestBoard(t, Dependencies{Fetcher: newFakeFetcher(), Mutator: newFakeMutator(false)})

	tk, err := b.Dispatch(context.Background(), Intent{EntryID: "G1", Action: models.ActionApprove, Domain: models.DomainGrooming})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := waitTicket(t, tk); err != nil {
		t.Fatalf("settle: %v", err)
	}
	e := mustResolve(t, b, "G1")
	if e.Status != models.StatusPending {
		t.Errorf("aggregate = %q, want pending", e.Status)
	}
	if e.Part(models.DomainGrooming).Status != models.StatusApproved {
		t.Error("grooming part not approved")
	}
}

func TestMergedEntryNeedsDomain(t *testing.T) {
	b := newTestBoard(t, Dependencies{Fetcher: newFakeFetcher(), Mutator: newFakeMutator(false)})
	_, err := b.Dispatch(context.Background(), Intent{EntryID: "G1", Action: models.ActionApprove})
	if !errors.Is(err, ErrConstituentRequired) {
		t.Fatalf("expected ErrConstituentRequired, got %v", err)
	}
}

func TestDispatchValidatesReschedule(t *testing.T) {
	b := newTestBoard(t, Dependencies{Fetcher: newFakeFetcher(), Mutator: newFakeMutator(false)})
	_, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionReschedule, StartAt: at(15, 0), EndAt: at(14, 0)})
	if !errors.Is(err, ErrInvalidReschedule) {
		t.Fatalf("expected ErrInvalidReschedule, got %v", err)
	}
	if _, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionBulkApprove}); !errors.Is(err, ErrBulkAction) {
		t.Fatalf("expected ErrBulkAction, got %v", err)
	}
}

func TestResolveAcceptsBookingAndLegacyIDs(t *testing.T) {
	b := newTestBoard(t, Dependencies{Fetcher: newFakeFetcher(), Mutator: newFakeMutator(false)})
	for _, id := range []string{"G1", "D1", "both|G1|D1", "G1|D1"} {
		if e := mustResolve(t, b, id); e.ID != "G1" {
			t.Errorf("%s resolved to %s", id, e.ID)
		}
	}
	if _, err := b.Resolve("G9"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestSettleAfterDayChangeIsIgnored(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.days["2025-05-02"] = models.DaySchedule{
		Grooming: []models.ServiceBooking{bk("G7", "max", at(10, 0).AddDate(0, 0, 1), at(11, 0).AddDate(0, 0, 1))},
	}
	mut := newFakeMutator(true)
	mut.fail["G2"] = errors.New("boom")
	b := newTestBoard(t, Dependencies{Fetcher: fetcher, Mutator: mut})

	tk, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionApprove})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := b.Load(context.Background(), "2025-05-02"); err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded := b.Entries()

	mut.release()
	_ = waitTicket(t, tk)
	if !reflect.DeepEqual(loaded, b.Entries()) {
		t.Error("settle of the previous day leaked into the new day")
	}
}

func TestInFlightLockSurvivesDayReload(t *testing.T) {
	mut := newFakeMutator(true)
	b := newTestBoard(t, Dependencies{Fetcher: newFakeFetcher(), Mutator: mut})

	tk, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionApprove})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	mut.waitStarted(t, 1)
	for _, date := range []string{"2025-05-02", testDate} {
		if err := b.Load(context.Background(), date); err != nil {
			t.Fatalf("load %s: %v", date, err)
		}
	}

	if !b.Pending("G2") {
		t.Error("reloaded entry should still report its mutation in flight")
	}
	if _, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionCancel}); !errors.Is(err, ErrMutationInFlight) {
		t.Errorf("dispatch after reload: expected ErrMutationInFlight, got %v", err)
	}
	if _, err := b.Bulk(context.Background(), BulkIntent{EntryID: "G2", Action: models.ActionBulkCancel}); !errors.Is(err, ErrMutationInFlight) {
		t.Errorf("bulk after reload: expected ErrMutationInFlight, got %v", err)
	}
	if _, err := b.BeginInteraction("G2", "", ModeMove); !errors.Is(err, ErrMutationInFlight) {
		t.Errorf("interaction after reload: expected ErrMutationInFlight, got %v", err)
	}
	if n := mut.callCount(); n != 1 {
		t.Errorf("remote calls = %d, want 1", n)
	}

	mut.release()
	if err := waitTicket(t, tk); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if b.Pending("G2") {
		t.Error("lock not released once the earlier mutation settled")
	}
	next, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionCancel})
	if err != nil {
		t.Fatalf("dispatch after settle: %v", err)
	}
	_ = waitTicket(t, next)
}

func TestStatusCommitRefreshesDay(t *testing.T) {
	fetcher := newFakeFetcher()
	b := newTestBoard(t, Dependencies{Fetcher: fetcher, Mutator: newFakeMutator(false)})

	tk, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionApprove})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := waitTicket(t, tk); err != nil {
		t.Fatalf("settle: %v", err)
	}
	b.Drain()
	if n := fetcher.fetches(); n != 2 {
		t.Errorf("fetches = %d, want a reload after the approve", n)
	}
	if b.Stale() {
		t.Error("board still stale after the reload")
	}
	if got := mustResolve(t, b, "G2").Status; got != models.StatusApproved {
		t.Errorf("status after reload = %q", got)
	}
}

func TestRescheduleCommitRefreshIsOptional(t *testing.T) {
	for _, refresh := range []bool{false, true} {
		fetcher := newFakeFetcher()
		b := NewBoard(Dependencies{Fetcher: fetcher, Mutator: newFakeMutator(false)},
			Config{Location: time.UTC, DayStartHour: 7, DayEndHour: 20, RefreshOnCommit: refresh}, nil)
		if err := b.Load(context.Background(), testDate); err != nil {
			t.Fatalf("load: %v", err)
		}
		tk, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionReschedule, StartAt: at(15, 0), EndAt: at(16, 0)})
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if err := waitTicket(t, tk); err != nil {
			t.Fatalf("settle: %v", err)
		}
		b.Drain()

		want := 1
		if refresh {
			want = 2
		}
		if n := fetcher.fetches(); n != want {
			t.Errorf("RefreshOnCommit=%v: fetches = %d, want %d", refresh, n, want)
		}
	}
}

func TestRefreshKeepsOptimisticValue(t *testing.T) {
	fetcher := newFakeFetcher()
	mut := newFakeMutator(true)
	b := newTestBoard(t, Dependencies{Fetcher: fetcher, Mutator: mut})

	tk, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionApprove})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := b.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := mustResolve(t, b, "G2").Status; got != models.StatusApproved {
		t.Errorf("refresh overwrote optimistic status with %q", got)
	}
	if len(fetcher.invalidated) != 1 {
		t.Errorf("refresh should drop the read-through cache once, got %v", fetcher.invalidated)
	}
	mut.release()
	_ = waitTicket(t, tk)
}

func TestInvalidateOnlyMatchingDay(t *testing.T) {
	fetcher := newFakeFetcher()
	b := newTestBoard(t, Dependencies{Fetcher: fetcher, Mutator: newFakeMutator(false)})

	if b.Invalidate(DomainTag(models.DomainGarden, "2025-05-02")) {
		t.Error("tag for another day invalidated the board")
	}
	if !b.Invalidate(DomainTag(models.DomainGarden, testDate)) {
		t.Fatal("matching tag ignored")
	}
	b.Drain()
	if n := fetcher.fetches(); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
	if b.Stale() {
		t.Error("board still stale after refresh")
	}
}

func TestCommitRunsHookAndPublishesTags(t *testing.T) {
	hook := &recordingHook{}
	pub := &recordingPublisher{}
	b := newTestBoard(t, Dependencies{Fetcher: newFakeFetcher(), Mutator: newFakeMutator(false), Hook: hook, Publisher: pub})

	tk, err := b.Dispatch(context.Background(), Intent{EntryID: "G2", Action: models.ActionApprove})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := waitTicket(t, tk); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(hook.mutations) != 1 || hook.mutations[0].TargetEntryID != "G2" {
		t.Errorf("hook calls = %+v", hook.mutations)
	}
	got := strings.Join(pub.tags, ",")
	if got != "schedule:2025-05-01,grooming:2025-05-01" {
		t.Errorf("published tags = %s", got)
	}
}

func TestMutationErrorUserMessage(t *testing.T) {
	e := &MutationError{Domain: models.DomainGarden, Action: models.ActionCancel, Err: models.ErrBookingNotFound}
	if msg := e.UserMessage(); !strings.Contains(msg, "cancel the garden booking") {
		t.Errorf("message = %q", msg)
	}
}
