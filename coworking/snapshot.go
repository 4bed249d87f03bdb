package coworking

import "iter"

// NextIDs holds the id each entity will assign next.
type NextIDs struct {
	Member    int `json:"member"`
	Workspace int `json:"workspace"`
	Booking   int `json:"booking"`
	Payment   int `json:"payment"`
}

// Counts holds the number of live records per entity.
type Counts struct {
	Members    int `json:"members"`
	Workspaces int `json:"workspaces"`
	Bookings   int `json:"bookings"`
	Payments   int `json:"payments"`
}

// NextIDs reports every counter, taking each entity's read lock in turn.
func (d *Database) NextIDs() NextIDs {
	var n NextIDs
	d.membersMu.RLock()
	n.Member = d.nextMember
	d.membersMu.RUnlock()
	d.workspacesMu.RLock()
	n.Workspace = d.nextWorkspace
	d.workspacesMu.RUnlock()
	d.bookingsMu.RLock()
	n.Booking = d.nextBooking
	d.bookingsMu.RUnlock()
	d.paymentsMu.RLock()
	n.Payment = d.nextPayment
	d.paymentsMu.RUnlock()
	return n
}

func (d *Database) Counts() Counts {
	var c Counts
	d.membersMu.RLock()
	c.Members = d.members.Len()
	d.membersMu.RUnlock()
	d.workspacesMu.RLock()
	c.Workspaces = d.workspaces.Len()
	d.workspacesMu.RUnlock()
	d.bookingsMu.RLock()
	c.Bookings = d.bookings.Len()
	d.bookingsMu.RUnlock()
	d.paymentsMu.RLock()
	c.Payments = d.payments.Len()
	d.paymentsMu.RUnlock()
	return c
}

// IndexedMembers reports the identity index size; it always equals the
// member count.
func (d *Database) IndexedMembers() int {
	d.membersMu.RLock()
	defer d.membersMu.RUnlock()
	return d.memberIndex.Len()
}

// ---------------------------------------------------------------------------
// Bulk replace (load path)
// ---------------------------------------------------------------------------

// nextAfter returns max(id)+1, or 1 for no records, raised to floor when a
// persisted counter is larger.
func nextAfter(maxID, floor int) int {
	n := maxID + 1
	if floor > n {
		n = floor
	}
	return n
}

// ReplaceMembers discards current members and installs ms in order,
// rebuilding the identity index. floor, when larger than max(id)+1, becomes
// the next id.
func (d *Database) ReplaceMembers(ms []Member, floor int) {
	d.membersMu.Lock()
	defer d.membersMu.Unlock()

	d.members.reset()
	d.memberIndex.reset()
	maxID := 0
	for _, m := range ms {
		e := d.members.Append(m)
		d.memberIndex.Insert(m.ID, e)
		maxID = max(maxID, m.ID)
	}
	d.nextMember = nextAfter(maxID, floor)
	d.metrics.setRecords(EntityMember, d.members.Len())
}

func (d *Database) ReplaceWorkspaces(ws []Workspace, floor int) {
	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	d.workspaces.reset()
	maxID := 0
	for _, w := range ws {
		d.workspaces.Append(w)
		maxID = max(maxID, w.ID)
	}
	d.nextWorkspace = nextAfter(maxID, floor)
	d.metrics.setRecords(EntityWorkspace, d.workspaces.Len())
}

func (d *Database) ReplaceBookings(bs []Booking, floor int) {
	d.bookingsMu.Lock()
	defer d.bookingsMu.Unlock()

	d.bookings.reset()
	maxID := 0
	for _, b := range bs {
		d.bookings.Append(b)
		maxID = max(maxID, b.ID)
	}
	d.nextBooking = nextAfter(maxID, floor)
	d.metrics.setRecords(EntityBooking, d.bookings.Len())
}

func (d *Database) ReplacePayments(ps []Payment, floor int) {
	d.paymentsMu.Lock()
	defer d.paymentsMu.Unlock()

	d.payments.reset()
	maxID := 0
	for _, p := range ps {
		d.payments.Append(p)
		maxID = max(maxID, p.ID)
	}
	d.nextPayment = nextAfter(maxID, floor)
	d.metrics.setRecords(EntityPayment, d.payments.Len())
}

// ---------------------------------------------------------------------------
// Read-locked views (save path)
// ---------------------------------------------------------------------------

func values[T any](l *RecordList[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for e := range l.All() {
			if !yield(e.Value) {
				return
			}
		}
	}
}

// ViewMembers calls fn with the members in order and the next member id while
// holding the member read lock.
func (d *Database) ViewMembers(fn func(seq iter.Seq[Member], next int) error) error {
	d.membersMu.RLock()
	defer d.membersMu.RUnlock()
	return fn(values(&d.members), d.nextMember)
}

func (d *Database) ViewWorkspaces(fn func(seq iter.Seq[Workspace], next int) error) error {
	d.workspacesMu.RLock()
	defer d.workspacesMu.RUnlock()
	return fn(values(&d.workspaces), d.nextWorkspace)
}

func (d *Database) ViewBookings(fn func(seq iter.Seq[Booking], next int) error) error {
	d.bookingsMu.RLock()
	defer d.bookingsMu.RUnlock()
	return fn(values(&d.bookings), d.nextBooking)
}

func (d *Database) ViewPayments(fn func(seq iter.Seq[Payment], next int) error) error {
	d.paymentsMu.RLock()
	defer d.paymentsMu.RUnlock()
	return fn(values(&d.payments), d.nextPayment)
}
