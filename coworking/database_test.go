package coworking

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recordingLog struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingLog) LogOperation(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, msg)
}

func (r *recordingLog) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) == 0 {
		return ""
	}
	return r.lines[len(r.lines)-1]
}

func newDB(t *testing.T) (*Database, *recordingLog) {
	t.Helper()
	log := &recordingLog{}
	return NewDatabase(WithOperationLog(log)), log
}

// seed adds one member, one workspace and one booking.
func seed(t *testing.T, db *Database) (memberID, workspaceID, bookingID int) {
	t.Helper()
	var err error
	if memberID, err = db.AddMember("Alice", "alice@example.com"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if workspaceID, err = db.AddWorkspace("Desk", "Floor 1", 1, 2500); err != nil {
		t.Fatalf("add workspace: %v", err)
	}
	if bookingID, err = db.AddBooking(memberID, workspaceID, "2024-01-01T09:00", "2024-01-01T17:00", "Confirmed"); err != nil {
		t.Fatalf("add booking: %v", err)
	}
	return
}

func TestAddMemberAssignsSequentialIDs(t *testing.T) {
	db, log := newDB(t)
	id1, err := db.AddMember("Alice", "a@x.com")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id2, err := db.AddMember("Bob", "b@x.com")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id1 != 1 || id2 != 2 {
		t.Fatalf("ids = %d,%d want 1,2", id1, id2)
	}
	if got := log.last(); got != "Added Member ID 2 (Bob)" {
		t.Fatalf("log = %q", got)
	}
	if db.IndexedMembers() != 2 {
		t.Fatalf("indexed = %d", db.IndexedMembers())
	}
}

func TestAddMemberDuplicateEmail(t *testing.T) {
	db, log := newDB(t)
	if _, err := db.AddMember("Alice", "a@x.com"); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := db.AddMember("Alicia", "a@x.com")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
	if got := len(db.ListMembers()); got != 1 {
		t.Fatalf("members = %d, want 1", got)
	}
	if len(log.lines) != 1 {
		t.Fatalf("failed add must not log, got %v", log.lines)
	}
	// the id is not consumed by the failed attempt
	if db.NextIDs().Member != 2 {
		t.Fatalf("next member = %d", db.NextIDs().Member)
	}
}

func TestCleanField(t *testing.T) {
	long := ""
	for i := 0; i < 120; i++ {
		long += "x"
	}
	cases := []struct {
		name    string
		in      string
		limit   int
		want    string
		invalid bool
	}{
		{"trims", "  Alice  ", MaxNameLen, "Alice", false},
		{"truncates", long, MaxNameLen, long[:MaxNameLen], false},
		{"multibyte cut", "ééééé", 5, "éé", false},
		{"empty", "   ", MaxNameLen, "", true},
		{"comma", "a,b", MaxNameLen, "", true},
		{"newline", "a\nb", MaxNameLen, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := cleanField("name", tc.in, tc.limit)
			if tc.invalid {
				if !errors.Is(err, ErrInvalidField) {
					t.Fatalf("want ErrInvalidField, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("clean: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestGetMemberAfterDelete(t *testing.T) {
	db, log := newDB(t)
	id, _ := db.AddMember("Alice", "a@x.com")
	if err := db.DeleteMember(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := log.last(); got != "Deleted Member ID 1" {
		t.Fatalf("log = %q", got)
	}
	if _, err := db.GetMember(id); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("want ErrMemberNotFound, got %v", err)
	}
	if db.IndexedMembers() != 0 {
		t.Fatalf("index not emptied")
	}
	// ids are never reused
	id2, _ := db.AddMember("Bob", "b@x.com")
	if id2 != 2 {
		t.Fatalf("id = %d, want 2", id2)
	}
}

func TestUpdateMember(t *testing.T) {
	db, log := newDB(t)
	id, _ := db.AddMember("Alice", "a@x.com")

	if err := db.UpdateMember(id, "Alice Smith"); err != nil {
		t.Fatalf("update: %v", err)
	}
	m, _ := db.GetMember(id)
	if m.Name != "Alice Smith" || m.Email != "a@x.com" {
		t.Fatalf("member = %+v", m)
	}
	if got := log.last(); got != "Updated Member ID 1" {
		t.Fatalf("log = %q", got)
	}

	if err := db.UpdateMember(id, ""); err != nil {
		t.Fatalf("update keep: %v", err)
	}
	if m, _ = db.GetMember(id); m.Name != "Alice Smith" {
		t.Fatalf("empty name should keep current, got %q", m.Name)
	}

	if err := db.UpdateMember(99, "X"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteUnknownIDs(t *testing.T) {
	db, log := newDB(t)
	cases := []struct {
		name string
		del  func(int) error
		want error
	}{
		{"member", db.DeleteMember, ErrMemberNotFound},
		{"workspace", db.DeleteWorkspace, ErrWorkspaceNotFound},
		{"booking", db.DeleteBooking, ErrBookingNotFound},
		{"payment", db.DeletePayment, ErrPaymentNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.del(42); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
	if len(log.lines) != 0 {
		t.Fatalf("unexpected log lines %v", log.lines)
	}
}

func TestWorkspaceCRUD(t *testing.T) {
	db, log := newDB(t)
	id, err := db.AddWorkspace("Meeting Room", "Floor 2", 8, 10000)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := log.last(); got != "Added Workspace ID 1 (Meeting Room)" {
		t.Fatalf("log = %q", got)
	}
	if err := db.UpdateWorkspace(id, 10, 12000); err != nil {
		t.Fatalf("update: %v", err)
	}
	w, err := db.GetWorkspace(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.Capacity != 10 || w.PriceCents != 12000 || w.Type != "Meeting Room" {
		t.Fatalf("workspace = %+v", w)
	}
	if err := db.DeleteWorkspace(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(db.ListWorkspaces()) != 0 {
		t.Fatalf("workspace still listed")
	}
}

func TestAddBookingChecksReferences(t *testing.T) {
	db, log := newDB(t)
	memberID, workspaceID, bookingID := seed(t, db)
	if bookingID != 1 {
		t.Fatalf("booking id = %d", bookingID)
	}
	if got := log.last(); got != "Added Booking ID 1 (Mem: 1, WS: 1)" {
		t.Fatalf("log = %q", got)
	}

	if _, err := db.AddBooking(99, workspaceID, "a", "b", "c"); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("want ErrMemberNotFound, got %v", err)
	}
	if _, err := db.AddBooking(memberID, 99, "a", "b", "c"); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Fatalf("want ErrWorkspaceNotFound, got %v", err)
	}
	if got := len(db.ListBookings()); got != 1 {
		t.Fatalf("bookings = %d, want 1", got)
	}
	if db.NextIDs().Booking != 2 {
		t.Fatalf("failed adds consumed ids: next = %d", db.NextIDs().Booking)
	}
}

func TestDeleteDoesNotCascade(t *testing.T) {
	db, _ := newDB(t)
	memberID, _, bookingID := seed(t, db)
	if _, err := db.AddPayment(bookingID, 2500, "2024-01-01", "Paid"); err != nil {
		t.Fatalf("add payment: %v", err)
	}
	if err := db.DeleteMember(memberID); err != nil {
		t.Fatalf("delete member: %v", err)
	}
	if err := db.DeleteBooking(bookingID); err != nil {
		t.Fatalf("delete booking: %v", err)
	}
	if got := len(db.ListPayments()); got != 1 {
		t.Fatalf("payments = %d, want 1", got)
	}
}

func TestBookingAndPaymentUpdates(t *testing.T) {
	db, log := newDB(t)
	_, _, bookingID := seed(t, db)

	if err := db.UpdateBooking(bookingID, "Cancelled"); err != nil {
		t.Fatalf("update booking: %v", err)
	}
	if got := log.last(); got != "Updated Booking ID 1 status to Cancelled" {
		t.Fatalf("log = %q", got)
	}
	b, _ := db.GetBooking(bookingID)
	if b.Status != "Cancelled" || b.MemberID != 1 || b.WorkspaceID != 1 {
		t.Fatalf("booking = %+v", b)
	}

	pid, err := db.AddPayment(bookingID, 5000, "2024-01-01", "Paid")
	if err != nil {
		t.Fatalf("add payment: %v", err)
	}
	if got := log.last(); got != "Added Payment ID 1 for Booking 1" {
		t.Fatalf("log = %q", got)
	}
	if err := db.UpdatePayment(pid, "Refunded"); err != nil {
		t.Fatalf("update payment: %v", err)
	}
	if got := log.last(); got != "Updated Payment ID 1 status" {
		t.Fatalf("log = %q", got)
	}
	p, _ := db.GetPayment(pid)
	if p.Status != "Refunded" || p.AmountCents != 5000 {
		t.Fatalf("payment = %+v", p)
	}
	if err := db.DeletePayment(pid); err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	if got := log.last(); got != "Deleted Payment ID 1" {
		t.Fatalf("log = %q", got)
	}
}

func TestAddPaymentUnknownBooking(t *testing.T) {
	db, _ := newDB(t)
	if _, err := db.AddPayment(7, 100, "2024-01-01", "Paid"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("want ErrBookingNotFound, got %v", err)
	}
	if len(db.ListPayments()) != 0 {
		t.Fatalf("payment stored")
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	db, _ := newDB(t)
	for i := 1; i <= 5; i++ {
		if _, err := db.AddMember(fmt.Sprintf("M%d", i), fmt.Sprintf("m%d@x.com", i)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := db.DeleteMember(3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var ids []int
	for _, m := range db.ListMembers() {
		ids = append(ids, m.ID)
	}
	if fmt.Sprint(ids) != "[1 2 4 5]" {
		t.Fatalf("order = %v", ids)
	}
}

func TestConcurrentAddsAndReads(t *testing.T) {
	db, _ := newDB(t)
	_, workspaceID, _ := seed(t, db)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id, err := db.AddMember(fmt.Sprintf("M%d", i), fmt.Sprintf("m%d@x.com", i))
			if err != nil {
				t.Errorf("add member: %v", err)
				return
			}
			if _, err := db.AddBooking(id, workspaceID, "s", "e", "Confirmed"); err != nil {
				t.Errorf("add booking: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			_ = db.ListMembers()
			_, _ = db.GetMember(1)
		}()
	}
	wg.Wait()

	c := db.Counts()
	if c.Members != 21 || c.Bookings != 21 {
		t.Fatalf("counts = %+v", c)
	}
	if db.IndexedMembers() != c.Members {
		t.Fatalf("index size %d != members %d", db.IndexedMembers(), c.Members)
	}
	seen := map[int]bool{}
	for _, m := range db.ListMembers() {
		if seen[m.ID] {
			t.Fatalf("duplicate id %d", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	db := NewDatabase(WithMetrics(m))
	if _, err := db.AddMember("Alice", "a@x.com"); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, _ = db.AddMember("Again", "a@x.com")

	if got := testutil.ToFloat64(m.ops.WithLabelValues("members", "add", "ok")); got != 1 {
		t.Fatalf("ok adds = %v", got)
	}
	if got := testutil.ToFloat64(m.ops.WithLabelValues("members", "add", "error")); got != 1 {
		t.Fatalf("failed adds = %v", got)
	}
	if got := testutil.ToFloat64(m.records.WithLabelValues("members")); got != 1 {
		t.Fatalf("records gauge = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	db := NewDatabase(WithMetrics(nil), WithOperationLog(nil))
	if _, err := db.AddMember("Alice", "a@x.com"); err != nil {
		t.Fatalf("add: %v", err)
	}
}

// waitReadHeld spins until some goroutine holds a read lock on mu.
func waitReadHeld(t *testing.T, mu *sync.RWMutex) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for mu.TryLock() {
		mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatalf("read lock never taken")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAddBookingBlocksMemberDelete(t *testing.T) {
	db, _ := newDB(t)
	memberID, _ := db.AddMember("Alice", "a@x.com")
	workspaceID, _ := db.AddWorkspace("Desk", "Floor 1", 1, 2500)

	// stall AddBooking after its member check
	db.workspacesMu.Lock()
	added := make(chan error, 1)
	go func() {
		_, err := db.AddBooking(memberID, workspaceID, "s", "e", "Confirmed")
		added <- err
	}()
	waitReadHeld(t, &db.membersMu)

	deleted := make(chan error, 1)
	go func() { deleted <- db.DeleteMember(memberID) }()

	select {
	case err := <-deleted:
		db.workspacesMu.Unlock()
		t.Fatalf("member deleted while a booking for it was being created: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	db.workspacesMu.Unlock()

	if err := <-added; err != nil {
		t.Fatalf("add booking: %v", err)
	}
	if err := <-deleted; err != nil {
		t.Fatalf("delete member: %v", err)
	}
	bs := db.ListBookings()
	if len(bs) != 1 || bs[0].MemberID != memberID {
		t.Fatalf("bookings = %+v", bs)
	}
}

func TestAddPaymentBlocksBookingDelete(t *testing.T) {
	db, _ := newDB(t)
	_, _, bookingID := seed(t, db)

	// stall AddPayment after its booking check
	db.paymentsMu.Lock()
	added := make(chan error, 1)
	go func() {
		_, err := db.AddPayment(bookingID, 2500, "2024-01-01", "Paid")
		added <- err
	}()
	waitReadHeld(t, &db.bookingsMu)

	deleted := make(chan error, 1)
	go func() { deleted <- db.DeleteBooking(bookingID) }()

	select {
	case err := <-deleted:
		db.paymentsMu.Unlock()
		t.Fatalf("booking deleted while a payment for it was being created: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	db.paymentsMu.Unlock()

	if err := <-added; err != nil {
		t.Fatalf("add payment: %v", err)
	}
	if err := <-deleted; err != nil {
		t.Fatalf("delete booking: %v", err)
	}
	ps := db.ListPayments()
	if len(ps) != 1 || ps[0].BookingID != bookingID {
		t.Fatalf("payments = %+v", ps)
	}
}
