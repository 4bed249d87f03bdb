package coworking

import (
	"fmt"
	"sync"
	"time"
)

// Database owns the four record lists, the member identity index, the id
// counters and one reader/writer lock per entity.
//
// Lock order is members, workspaces, bookings, payments. Paths that hold more
// than one lock (booking and payment creation) acquire them in that order.
type Database struct {
	membersMu   sync.RWMutex
	members     RecordList[Member]
	memberIndex *Index[int, *Entry[Member]]
	nextMember  int

	workspacesMu  sync.RWMutex
	workspaces    RecordList[Workspace]
	nextWorkspace int

	bookingsMu  sync.RWMutex
	bookings    RecordList[Booking]
	nextBooking int

	paymentsMu  sync.RWMutex
	payments    RecordList[Payment]
	nextPayment int

	oplog   OperationLogger
	metrics *Metrics
}

// Option configures a Database.
type Option func(*databaseOptions)

type databaseOptions struct {
	oplog   OperationLogger
	metrics *Metrics
	buckets int
}

// WithOperationLog sets the sink notified after each successful mutation.
func WithOperationLog(l OperationLogger) Option {
	return func(o *databaseOptions) { o.oplog = l }
}

// WithMetrics records operation outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(o *databaseOptions) { o.metrics = m }
}

// WithIndexBuckets overrides the member index bucket count.
func WithIndexBuckets(n int) Option {
	return func(o *databaseOptions) { o.buckets = n }
}

// NewDatabase returns an empty database with every counter at 1.
func NewDatabase(opts ...Option) *Database {
	o := databaseOptions{oplog: NopOperationLog{}, buckets: DefaultIndexBuckets}
	for _, opt := range opts {
		opt(&o)
	}
	if o.oplog == nil {
		o.oplog = NopOperationLog{}
	}
	return &Database{
		memberIndex:   NewIndex[int, *Entry[Member]](o.buckets),
		nextMember:    1,
		nextWorkspace: 1,
		nextBooking:   1,
		nextPayment:   1,
		oplog:         o.oplog,
		metrics:       o.metrics,
	}
}

func (d *Database) logf(format string, args ...any) {
	d.oplog.LogOperation(fmt.Sprintf(format, args...))
}

// track starts an operation timer; the returned func records the outcome
// stored in *err when deferred.
func (d *Database) track(e Entity, op string, err *error) func() {
	start := time.Now()
	return func() { d.metrics.observe(e, op, start, *err) }
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// AddMember registers a member. Emails are unique across members.
func (d *Database) AddMember(name, email string) (id int, err error) {
	defer d.track(EntityMember, "add", &err)()

	if name, err = cleanField("name", name, MaxNameLen); err != nil {
		return 0, err
	}
	if email, err = cleanField("email", email, MaxEmailLen); err != nil {
		return 0, err
	}

	d.membersMu.Lock()
	defer d.membersMu.Unlock()

	if d.members.Find(func(m *Member) bool { return m.Email == email }) != nil {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
	}

	id = d.nextMember
	d.nextMember++
	e := d.members.Append(Member{ID: id, Name: name, Email: email})
	d.memberIndex.Insert(id, e)
	d.metrics.setRecords(EntityMember, d.members.Len())

	d.logf("Added Member ID %d (%s)", id, name)
	return id, nil
}

// findMember resolves id through the identity index. Caller holds membersMu.
func (d *Database) findMember(id int) *Entry[Member] {
	e, ok := d.memberIndex.Lookup(id)
	if !ok {
		return nil
	}
	return e
}

// GetMember looks a member up by id in constant expected time.
func (d *Database) GetMember(id int) (m Member, err error) {
	defer d.track(EntityMember, "get", &err)()

	d.membersMu.RLock()
	defer d.membersMu.RUnlock()

	e := d.findMember(id)
	if e == nil {
		return Member{}, notFound(ErrMemberNotFound, id)
	}
	return e.Value, nil
}

// ListMembers returns every member in insertion order.
func (d *Database) ListMembers() []Member {
	var err error
	defer d.track(EntityMember, "list", &err)()

	d.membersMu.RLock()
	defer d.membersMu.RUnlock()
	return d.members.Values()
}

// UpdateMember renames a member. An empty name keeps the current one.
func (d *Database) UpdateMember(id int, name string) (err error) {
	defer d.track(EntityMember, "update", &err)()

	keep := name == ""
	if !keep {
		if name, err = cleanField("name", name, MaxNameLen); err != nil {
			return err
		}
	}

	d.membersMu.Lock()
	defer d.membersMu.Unlock()

	e := d.findMember(id)
	if e == nil {
		return notFound(ErrMemberNotFound, id)
	}
	if !keep {
		e.Value.Name = name
	}
	d.logf("Updated Member ID %d", id)
	return nil
}

// DeleteMember removes a member from the index and the list in one critical
// section. Bookings that reference the member are left untouched.
func (d *Database) DeleteMember(id int) (err error) {
	defer d.track(EntityMember, "delete", &err)()

	d.membersMu.Lock()
	defer d.membersMu.Unlock()

	e := d.findMember(id)
	if e == nil {
		return notFound(ErrMemberNotFound, id)
	}
	d.memberIndex.Remove(id)
	d.members.Remove(e)
	d.metrics.setRecords(EntityMember, d.members.Len())

	d.logf("Deleted Member ID %d", id)
	return nil
}

// ---------------------------------------------------------------------------
// Workspaces
// ---------------------------------------------------------------------------

func (d *Database) AddWorkspace(kind, location string, capacity, priceCents int) (id int, err error) {
	defer d.track(EntityWorkspace, "add", &err)()

	if kind, err = cleanField("type", kind, MaxTypeLen); err != nil {
		return 0, err
	}
	if location, err = cleanField("location", location, MaxLocationLen); err != nil {
		return 0, err
	}

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	id = d.nextWorkspace
	d.nextWorkspace++
	d.workspaces.Append(Workspace{ID: id, Type: kind, Location: location, Capacity: capacity, PriceCents: priceCents})
	d.metrics.setRecords(EntityWorkspace, d.workspaces.Len())

	d.logf("Added Workspace ID %d (%s)", id, kind)
	return id, nil
}

// findWorkspace scans linearly. Caller holds workspacesMu.
func (d *Database) findWorkspace(id int) *Entry[Workspace] {
	return d.workspaces.Find(func(w *Workspace) bool { return w.ID == id })
}

func (d *Database) GetWorkspace(id int) (w Workspace, err error) {
	defer d.track(EntityWorkspace, "get", &err)()

	d.workspacesMu.RLock()
	defer d.workspacesMu.RUnlock()

	e := d.findWorkspace(id)
	if e == nil {
		return Workspace{}, notFound(ErrWorkspaceNotFound, id)
	}
	return e.Value, nil
}

func (d *Database) ListWorkspaces() []Workspace {
	var err error
	defer d.track(EntityWorkspace, "list", &err)()

	d.workspacesMu.RLock()
	defer d.workspacesMu.RUnlock()
	return d.workspaces.Values()
}

// UpdateWorkspace replaces capacity and price.
func (d *Database) UpdateWorkspace(id, capacity, priceCents int) (err error) {
	defer d.track(EntityWorkspace, "update", &err)()

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	e := d.findWorkspace(id)
	if e == nil {
		return notFound(ErrWorkspaceNotFound, id)
	}
	e.Value.Capacity = capacity
	e.Value.PriceCents = priceCents
	d.logf("Updated Workspace ID %d", id)
	return nil
}

func (d *Database) DeleteWorkspace(id int) (err error) {
	defer d.track(EntityWorkspace, "delete", &err)()

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	e := d.findWorkspace(id)
	if e == nil {
		return notFound(ErrWorkspaceNotFound, id)
	}
	d.workspaces.Remove(e)
	d.metrics.setRecords(EntityWorkspace, d.workspaces.Len())

	d.logf("Deleted Workspace ID %d", id)
	return nil
}

// ---------------------------------------------------------------------------
// Bookings
// ---------------------------------------------------------------------------

// AddBooking creates a booking for an existing member and workspace. Both read
// locks stay held until the booking is appended, so neither parent can be
// deleted in between.
func (d *Database) AddBooking(memberID, workspaceID int, start, end, status string) (id int, err error) {
	defer d.track(EntityBooking, "add", &err)()

	if start, err = cleanField("start time", start, MaxTimeLen); err != nil {
		return 0, err
	}
	if end, err = cleanField("end time", end, MaxTimeLen); err != nil {
		return 0, err
	}
	if status, err = cleanField("status", status, MaxStatusLen); err != nil {
		return 0, err
	}

	d.membersMu.RLock()
	defer d.membersMu.RUnlock()
	if d.findMember(memberID) == nil {
		return 0, notFound(ErrMemberNotFound, memberID)
	}

	d.workspacesMu.RLock()
	defer d.workspacesMu.RUnlock()
	if d.findWorkspace(workspaceID) == nil {
		return 0, notFound(ErrWorkspaceNotFound, workspaceID)
	}

	d.bookingsMu.Lock()
	defer d.bookingsMu.Unlock()

	id = d.nextBooking
	d.nextBooking++
	d.bookings.Append(Booking{
		ID:          id,
		MemberID:    memberID,
		WorkspaceID: workspaceID,
		StartTime:   start,
		EndTime:     end,
		Status:      status,
	})
	d.metrics.setRecords(EntityBooking, d.bookings.Len())

	d.logf("Added Booking ID %d (Mem: %d, WS: %d)", id, memberID, workspaceID)
	return id, nil
}

// findBooking scans linearly. Caller holds bookingsMu.
func (d *Database) findBooking(id int) *Entry[Booking] {
	return d.bookings.Find(func(b *Booking) bool { return b.ID == id })
}

func (d *Database) GetBooking(id int) (b Booking, err error) {
	defer d.track(EntityBooking, "get", &err)()

	d.bookingsMu.RLock()
	defer d.bookingsMu.RUnlock()

	e := d.findBooking(id)
	if e == nil {
		return Booking{}, notFound(ErrBookingNotFound, id)
	}
	return e.Value, nil
}

func (d *Database) ListBookings() []Booking {
	var err error
	defer d.track(EntityBooking, "list", &err)()

	d.bookingsMu.RLock()
	defer d.bookingsMu.RUnlock()
	return d.bookings.Values()
}

// UpdateBooking changes the status; ids and foreign keys are immutable.
func (d *Database) UpdateBooking(id int, status string) (err error) {
	defer d.track(EntityBooking, "update", &err)()

	if status, err = cleanField("status", status, MaxStatusLen); err != nil {
		return err
	}

	d.bookingsMu.Lock()
	defer d.bookingsMu.Unlock()

	e := d.findBooking(id)
	if e == nil {
		return notFound(ErrBookingNotFound, id)
	}
	e.Value.Status = status
	d.logf("Updated Booking ID %d status to %s", id, status)
	return nil
}

// DeleteBooking removes a booking. Its payments are kept.
func (d *Database) DeleteBooking(id int) (err error) {
	defer d.track(EntityBooking, "delete", &err)()

	d.bookingsMu.Lock()
	defer d.bookingsMu.Unlock()

	e := d.findBooking(id)
	if e == nil {
		return notFound(ErrBookingNotFound, id)
	}
	d.bookings.Remove(e)
	d.metrics.setRecords(EntityBooking, d.bookings.Len())

	d.logf("Deleted Booking ID %d", id)
	return nil
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

// AddPayment records a payment against an existing booking, holding the
// booking read lock until the payment is appended.
func (d *Database) AddPayment(bookingID, amountCents int, date, status string) (id int, err error) {
	defer d.track(EntityPayment, "add", &err)()

	if date, err = cleanField("payment date", date, MaxDateLen); err != nil {
		return 0, err
	}
	if status, err = cleanField("status", status, MaxStatusLen); err != nil {
		return 0, err
	}

	d.bookingsMu.RLock()
	defer d.bookingsMu.RUnlock()
	if d.findBooking(bookingID) == nil {
		return 0, notFound(ErrBookingNotFound, bookingID)
	}

	d.paymentsMu.Lock()
	defer d.paymentsMu.Unlock()

	id = d.nextPayment
	d.nextPayment++
	d.payments.Append(Payment{
		ID:          id,
		BookingID:   bookingID,
		AmountCents: amountCents,
		PaymentDate: date,
		Status:      status,
	})
	d.metrics.setRecords(EntityPayment, d.payments.Len())

	d.logf("Added Payment ID %d for Booking %d", id, bookingID)
	return id, nil
}

// findPayment scans linearly. Caller holds paymentsMu.
func (d *Database) findPayment(id int) *Entry[Payment] {
	return d.payments.Find(func(p *Payment) bool { return p.ID == id })
}

func (d *Database) GetPayment(id int) (p Payment, err error) {
	defer d.track(EntityPayment, "get", &err)()

	d.paymentsMu.RLock()
	defer d.paymentsMu.RUnlock()

	e := d.findPayment(id)
	if e == nil {
		return Payment{}, notFound(ErrPaymentNotFound, id)
	}
	return e.Value, nil
}

func (d *Database) ListPayments() []Payment {
	var err error
	defer d.track(EntityPayment, "list", &err)()

	d.paymentsMu.RLock()
	defer d.paymentsMu.RUnlock()
	return d.payments.Values()
}

func (d *Database) UpdatePayment(id int, status string) (err error) {
	defer d.track(EntityPayment, "update", &err)()

	if status, err = cleanField("status", status, MaxStatusLen); err != nil {
		return err
	}

	d.paymentsMu.Lock()
	defer d.paymentsMu.Unlock()

	e := d.findPayment(id)
	if e == nil {
		return notFound(ErrPaymentNotFound, id)
	}
	e.Value.Status = status
	d.logf("Updated Payment ID %d status", id)
	return nil
}

func (d *Database) DeletePayment(id int) (err error) {
	defer d.track(EntityPayment, "delete", &err)()

	d.paymentsMu.Lock()
	defer d.paymentsMu.Unlock()

	e := d.findPayment(id)
	if e == nil {
		return notFound(ErrPaymentNotFound, id)
	}
	d.payments.Remove(e)
	d.metrics.setRecords(EntityPayment, d.payments.Len())

	d.logf("Deleted Payment ID %d", id)
	return nil
}
