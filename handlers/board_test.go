package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pawboard/models"
	"pawboard/services/board"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const day = "2025-05-01"

func at(hour int) time.Time {
	return time.Date(2025, time.May, 1, hour, 0, 0, 0, time.UTC)
}

// stubStore serves a fixed day and remembers the statuses it accepted, so a
// reload after a commit sees the change.
type stubStore struct {
	mu       sync.Mutex
	fail     map[string]error
	statuses map[string]models.BookingStatus
}

func (s *stubStore) FetchDay(_ context.Context, date string) (models.DaySchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bk := func(id, subject string, start, end int) models.ServiceBooking {
		status := models.StatusPending
		if st, ok := s.statuses[id]; ok {
			status = st
		}
		return models.ServiceBooking{ID: id, SubjectID: subject, ClientID: "c-" + subject, StartAt: at(start), EndAt: at(end), Status: status}
	}
	return models.DaySchedule{
		Date:     date,
		Grooming: []models.ServiceBooking{bk("G1", "rex", 10, 11), bk("G2", "bo", 13, 14)},
		Garden:   []models.ServiceBooking{bk("D1", "rex", 9, 17)},
	}, nil
}

func (s *stubStore) Apply(_ context.Context, domain models.Domain, bookingID string, change models.BookingChange) (*models.ServiceBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[bookingID]; err != nil {
		return nil, err
	}
	if change.Status != "" {
		s.statuses[bookingID] = change.Status
	}
	return &models.ServiceBooking{ID: bookingID, Domain: domain, Status: change.Status, UpdatedAt: time.Now()}, nil
}

func newTestRouter(t *testing.T, fail map[string]error) (*gin.Engine, *board.Board) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := &stubStore{fail: fail, statuses: map[string]models.BookingStatus{}}
	b := board.NewBoard(board.Dependencies{
		Fetcher: store,
		Mutator: store,
	}, board.Config{Location: time.UTC, DayStartHour: 7, DayEndHour: 20}, zap.NewNop())
	t.Cleanup(b.Drain)

	h := NewBoardHandler(b, time.UTC)
	r := gin.New()
	api := r.Group("/api/board")
	api.GET("/days/:date", h.GetDayHandler)
	api.GET("/days/:date/calendar.ics", h.CalendarHandler)
	api.GET("/entries/:id", h.GetEntryHandler)
	api.POST("/entries/:id/intents", h.DispatchIntentHandler)
	api.POST("/entries/:id/bulk", h.BulkHandler)
	api.PATCH("/entries/:id/state", h.UpdateEntryStateHandler)
	return r, b
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func loadDay(t *testing.T, r *gin.Engine) {
	t.Helper()
	if w := do(r, http.MethodGet, "/api/board/days/"+day, nil); w.Code != http.StatusOK {
		t.Fatalf("load day: %d %s", w.Code, w.Body.String())
	}
}

func TestGetDayReturnsMergedPlacements(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	w := do(r, http.MethodGet, "/api/board/days/"+day+"?zoom=compact", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Date    string             `json:"date"`
		Entries []models.Placement `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(resp.Entries))
	}
}

func TestGetDayRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	if w := do(r, http.MethodGet, "/api/board/days/not-a-date", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad date: got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/board/days/"+day+"?zoom=huge", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad zoom: got %d", w.Code)
	}
}

func TestDispatchAndWait(t *testing.T) {
	r, b := newTestRouter(t, nil)
	loadDay(t, r)

	w := do(r, http.MethodPost, "/api/board/entries/G2/intents", gin.H{"action": "approve", "wait": true})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	e, err := b.Resolve("G2")
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != models.StatusApproved {
		t.Errorf("status = %s, want approved", e.Status)
	}

	b.Drain()
	if e, _ := b.Resolve("G2"); e.Status != models.StatusApproved {
		t.Errorf("status after reload = %s, want approved", e.Status)
	}
}

func TestDispatchErrors(t *testing.T) {
	r, _ := newTestRouter(t, map[string]error{"G2": models.ErrBookingConflict})
	loadDay(t, r)

	cases := []struct {
		name string
		path string
		body gin.H
		want int
	}{
		{"merged needs domain", "/api/board/entries/G1/intents", gin.H{"action": "approve"}, http.StatusBadRequest},
		{"unknown action", "/api/board/entries/G1/intents", gin.H{"action": "shred"}, http.StatusBadRequest},
		{"unknown entry", "/api/board/entries/nope/intents", gin.H{"action": "approve"}, http.StatusNotFound},
		{"bulk through intents", "/api/board/entries/G1/intents", gin.H{"action": "bulk-approve"}, http.StatusBadRequest},
		{"remote conflict", "/api/board/entries/G2/intents", gin.H{"action": "approve", "wait": true}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, tc.path, tc.body)
			if w.Code != tc.want {
				t.Errorf("got %d, want %d: %s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestBulkEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, map[string]error{"D1": models.ErrChangeRejected})
	loadDay(t, r)

	w := do(r, http.MethodPost, "/api/board/entries/G1/bulk", gin.H{"action": "bulk-approve"})
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Outcome string `json:"outcome"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Outcome != string(board.OutcomePartialFailure) {
		t.Errorf("outcome = %s", resp.Outcome)
	}
	if !strings.Contains(resp.Message, "garden") {
		t.Errorf("message does not name the failed side: %s", resp.Message)
	}
}

func TestBulkEndpointStatusByOutcome(t *testing.T) {
	cases := []struct {
		name string
		fail map[string]error
		want int
	}{
		{"full success", nil, http.StatusOK},
		{"partial failure", map[string]error{"G1": models.ErrChangeRejected}, http.StatusMultiStatus},
		{"full failure", map[string]error{"G1": models.ErrChangeRejected, "D1": models.ErrChangeRejected}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestRouter(t, tc.fail)
			loadDay(t, r)
			w := do(r, http.MethodPost, "/api/board/entries/G1/bulk", gin.H{"action": "bulk-cancel"})
			if w.Code != tc.want {
				t.Errorf("got %d, want %d: %s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestCalendarExport(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	w := do(r, http.MethodGet, "/api/board/days/"+day+"/calendar.ics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type %q", ct)
	}
	if !strings.Contains(w.Body.String(), "BEGIN:VCALENDAR") {
		t.Errorf("not a calendar:\n%s", w.Body.String())
	}
}

func TestEntryStateByBookingID(t *testing.T) {
	r, b := newTestRouter(t, nil)
	loadDay(t, r)

	w := do(r, http.MethodPatch, "/api/board/entries/D1/state", gin.H{"menuOpen": true})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if !b.State().Get("G1").MenuOpen {
		t.Error("menu state not stored on the merged entry")
	}
}
