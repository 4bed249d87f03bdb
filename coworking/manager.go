package coworking

import (
	"context"

	"github.com/sirupsen/logrus"
)

// SaveHook runs after a save that wrote every entity.
type SaveHook func(ctx context.Context) error

// Manager is a thin façade over the Database and its Gateway, keeping CLI code
// simple.
type Manager struct {
	db    *Database
	gw    Gateway
	log   logrus.FieldLogger
	hooks []SaveHook
}

// NewManager pairs db with the gateway that loads and saves it.
func NewManager(db *Database, gw Gateway, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = discardLogger()
	}
	return &Manager{db: db, gw: gw, log: log}
}

// DB exposes the underlying database.
func (m *Manager) DB() *Database { return m.db }

// OnSave registers fn to run after each successful save.
func (m *Manager) OnSave(fn SaveHook) { m.hooks = append(m.hooks, fn) }

// ------------------ Persistence ------------------

// LoadData replaces the in-memory state from the gateway.
func (m *Manager) LoadData(ctx context.Context) error {
	if err := m.gw.Load(ctx, m.db); err != nil {
		return err
	}
	c := m.db.Counts()
	m.log.WithFields(logrus.Fields{
		"members": c.Members, "workspaces": c.Workspaces, "bookings": c.Bookings, "payments": c.Payments,
	}).Info("all data loaded")
	return nil
}

// SaveData flushes the in-memory state. Save failures are logged and returned
// for reporting; hooks only run when every entity was written.
func (m *Manager) SaveData(ctx context.Context) error {
	if err := m.gw.Save(ctx, m.db); err != nil {
		m.log.WithError(err).Warn("save incomplete")
		return err
	}
	for _, h := range m.hooks {
		if err := h(ctx); err != nil {
			m.log.WithError(err).Warn("post-save hook failed")
		}
	}
	return nil
}

// ------------------ Member helpers ------------------

func (m *Manager) AddMember(name, email string) (int, error) { return m.db.AddMember(name, email) }
func (m *Manager) GetMember(id int) (Member, error)          { return m.db.GetMember(id) }
func (m *Manager) ListMembers() []Member                     { return m.db.ListMembers() }
func (m *Manager) UpdateMember(id int, name string) error    { return m.db.UpdateMember(id, name) }
func (m *Manager) DeleteMember(id int) error                 { return m.db.DeleteMember(id) }

// ------------------ Workspace helpers ------------------

func (m *Manager) AddWorkspace(kind, location string, capacity, priceCents int) (int, error) {
	return m.db.AddWorkspace(kind, location, capacity, priceCents)
}
func (m *Manager) GetWorkspace(id int) (Workspace, error) { return m.db.GetWorkspace(id) }
func (m *Manager) ListWorkspaces() []Workspace            { return m.db.ListWorkspaces() }
func (m *Manager) UpdateWorkspace(id, capacity, priceCents int) error {
	return m.db.UpdateWorkspace(id, capacity, priceCents)
}
func (m *Manager) DeleteWorkspace(id int) error { return m.db.DeleteWorkspace(id) }

// ------------------ Booking helpers ------------------

func (m *Manager) AddBooking(memberID, workspaceID int, start, end, status string) (int, error) {
	return m.db.AddBooking(memberID, workspaceID, start, end, status)
}
func (m *Manager) GetBooking(id int) (Booking, error)       { return m.db.GetBooking(id) }
func (m *Manager) ListBookings() []Booking                  { return m.db.ListBookings() }
func (m *Manager) UpdateBooking(id int, status string) error { return m.db.UpdateBooking(id, status) }
func (m *Manager) DeleteBooking(id int) error               { return m.db.DeleteBooking(id) }

// ------------------ Payment helpers ------------------

func (m *Manager) AddPayment(bookingID, amountCents int, date, status string) (int, error) {
	return m.db.AddPayment(bookingID, amountCents, date, status)
}
func (m *Manager) GetPayment(id int) (Payment, error)       { return m.db.GetPayment(id) }
func (m *Manager) ListPayments() []Payment                  { return m.db.ListPayments() }
func (m *Manager) UpdatePayment(id int, status string) error { return m.db.UpdatePayment(id, status) }
func (m *Manager) DeletePayment(id int) error               { return m.db.DeletePayment(id) }
