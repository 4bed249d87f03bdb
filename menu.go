package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"coworking-dbms/coworking"

	"golang.org/x/term"
)

// prompter reads answers line by line. Prompts are only echoed when stdin is
// a terminal, so piped scripts produce clean output. Lines are read on a
// separate goroutine so a cancelled context ends the session even while the
// user has not typed anything.
type prompter struct {
	ctx   context.Context
	lines <-chan string
	out   io.Writer
	echo  bool
}

func newPrompter(ctx context.Context, in io.Reader, out io.Writer) *prompter {
	echo := false
	if f, ok := in.(*os.File); ok {
		echo = term.IsTerminal(int(f.Fd()))
	}
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return &prompter{ctx: ctx, lines: lines, out: out, echo: echo}
}

func (p *prompter) prompt(s string) {
	if p.echo {
		fmt.Fprint(p.out, s)
	}
}

// next returns the next raw line; ok is false at end of input or once the
// context is cancelled.
func (p *prompter) next() (string, bool) {
	if p.ctx.Err() != nil {
		return "", false
	}
	select {
	case <-p.ctx.Done():
		return "", false
	case s, ok := <-p.lines:
		return s, ok
	}
}

// line returns the next trimmed line.
func (p *prompter) line(prompt string) (string, bool) {
	p.prompt(prompt)
	s, ok := p.next()
	return strings.TrimSpace(s), ok
}

// number re-asks until it reads an integer.
func (p *prompter) number(prompt string) (int, bool) {
	p.prompt(prompt)
	for {
		s, ok := p.next()
		if !ok {
			return 0, false
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
		fmt.Fprint(p.out, "Invalid input. Please enter a number: ")
	}
}

const menuText = `
========================================
  Co-Working Space DBMS (Indexed)
========================================
--- Members ---
  1. Add Member        2. Display Members
  3. Update Member     4. Delete Member
--- Workspaces ---
  5. Add Workspace     6. Display Workspaces
  7. Update Workspace  8. Delete Workspace
--- Bookings ---
  9. Add Booking       10. Display Bookings
  11. Update Booking   12. Delete Booking
--- Payments ---
  13. Add Payment      14. Display Payments
  15. Update Payment   16. Delete Payment
----------------------------------------
  88. RUN CONCURRENCY TEST (Demo)
  99. Save & Exit
========================================
`

// runMenu loads the data, serves menu choices until 99 or end of input, and
// saves on 99. End of input and interruption exit without saving.
func (a *app) runMenu(ctx context.Context, in io.Reader, out io.Writer) error {
	a.oplog.LogOperation("System Started")
	if err := a.mgr.LoadData(ctx); err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	fmt.Fprintln(out, "All data loaded from files.")

	p := newPrompter(ctx, in, out)
	for {
		p.prompt(menuText + "> ")
		s, ok := p.line("")
		if !ok {
			if ctx.Err() != nil {
				fmt.Fprintln(out, "\nInterrupted. Exiting without saving.")
			}
			return nil
		}
		choice, err := strconv.Atoi(s)
		if err != nil {
			choice = 0
		}

		switch choice {
		case 1:
			a.handleAddMember(p, out)
		case 2:
			a.handleListMembers(out)
		case 3:
			a.handleUpdateMember(p, out)
		case 4:
			a.handleDelete(p, out, "member", a.mgr.DeleteMember)
		case 5:
			a.handleAddWorkspace(p, out)
		case 6:
			a.handleListWorkspaces(out)
		case 7:
			a.handleUpdateWorkspace(p, out)
		case 8:
			a.handleDelete(p, out, "workspace", a.mgr.DeleteWorkspace)
		case 9:
			a.handleAddBooking(p, out)
		case 10:
			a.handleListBookings(out)
		case 11:
			a.handleUpdateStatus(p, out, "booking", "Enter new status (e.g., Cancelled): ", a.mgr.UpdateBooking)
		case 12:
			a.handleDelete(p, out, "booking", a.mgr.DeleteBooking)
		case 13:
			a.handleAddPayment(p, out)
		case 14:
			a.handleListPayments(out)
		case 15:
			a.handleUpdateStatus(p, out, "payment", "Enter new status (e.g., Refunded): ", a.mgr.UpdatePayment)
		case 16:
			a.handleDelete(p, out, "payment", a.mgr.DeletePayment)
		case 88:
			demo := &coworking.LockDemo{DB: a.mgr.DB(), Hold: a.cfg.DemoHold, Stagger: a.cfg.DemoStagger, Out: out}
			if _, err := demo.Run(ctx); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
		case 99:
			// the save must finish even if an interrupt arrives meanwhile
			err := a.mgr.SaveData(context.WithoutCancel(ctx))
			a.oplog.LogOperation("System Shutdown")
			if err != nil {
				fmt.Fprintf(out, "Warning: some data could not be saved: %v\n", err)
				fmt.Fprintln(out, "Exiting ...")
				return nil
			}
			fmt.Fprintln(out, "All data saved. Exiting ...")
			return nil
		default:
			fmt.Fprintln(out, "Invalid choice. Please try again.")
		}
	}
}

// describe turns store errors into the messages shown to the user.
func describe(err error) string {
	switch {
	case errors.Is(err, coworking.ErrDuplicateEmail):
		return "Error: Email already exists."
	case errors.Is(err, coworking.ErrInvalidField):
		return fmt.Sprintf("Error: %v", err)
	case errors.Is(err, coworking.ErrMemberNotFound):
		return "Member not found."
	case errors.Is(err, coworking.ErrWorkspaceNotFound):
		return "Workspace not found."
	case errors.Is(err, coworking.ErrBookingNotFound):
		return "Booking not found."
	case errors.Is(err, coworking.ErrPaymentNotFound):
		return "Payment not found."
	}
	return fmt.Sprintf("Error: %v", err)
}

// ------------------ Members ------------------

func (a *app) handleAddMember(p *prompter, out io.Writer) {
	name, ok := p.line("Enter name: ")
	if !ok {
		return
	}
	email, ok := p.line("Enter email: ")
	if !ok {
		return
	}
	id, err := a.mgr.AddMember(name, email)
	if err != nil {
		fmt.Fprintln(out, describe(err))
		return
	}
	fmt.Fprintf(out, "Member added with ID %d.\n", id)
}

func (a *app) handleListMembers(out io.Writer) {
	fmt.Fprintf(out, "\n--- All Members ---\n%-5s | %-20s | %s\n", "ID", "Name", "Email")
	fmt.Fprintln(out, "------|----------------------|----------------------")
	for _, m := range a.mgr.ListMembers() {
		fmt.Fprintf(out, "%-5d | %-20s | %s\n", m.ID, m.Name, m.Email)
	}
}

func (a *app) handleUpdateMember(p *prompter, out io.Writer) {
	id, ok := p.number("Enter ID of member to update: ")
	if !ok {
		return
	}
	m, err := a.mgr.GetMember(id)
	if err != nil {
		fmt.Fprintln(out, describe(err))
		return
	}
	fmt.Fprintf(out, "Updating Member ID %d (Name: %s)\n", id, m.Name)
	name, ok := p.line("Enter new name (or Enter to skip): ")
	if !ok {
		return
	}
	if err := a.mgr.UpdateMember(id, name); err != nil {
		fmt.Fprintln(out, describe(err))
		return
	}
	fmt.Fprintf(out, "Member ID %d updated.\n", id)
}

// ------------------ Workspaces ------------------

func (a *app) handleAddWorkspace(p *prompter, out io.Writer) {
	kind, ok := p.line("Enter type: ")
	if !ok {
		return
	}
	location, ok := p.line("Enter location: ")
	if !ok {
		return
	}
	capacity, ok := p.number("Enter capacity: ")
	if !ok {
		return
	}
	price, ok := p.number("Enter price (in cents): ")
	if !ok {
		return
	}
	id, err := a.mgr.AddWorkspace(kind, location, capacity, price)
	if err != nil {
		fmt.Fprintln(out, describe(err))
		return
	}
	fmt.Fprintf(out, "Workspace added with ID %d.\n", id)
}

func (a *app) handleListWorkspaces(out io.Writer) {
	fmt.Fprintf(out, "\n--- All Workspaces ---\n%-5s | %-20s | %-20s | %-10s | %s\n", "ID", "Type", "Location", "Capacity", "Price (cents)")
	fmt.Fprintln(out, "------|----------------------|----------------------|------------|--------------")
	for _, w := range a.mgr.ListWorkspaces() {
		fmt.Fprintf(out, "%-5d | %-20s | %-20s | %-10d | %d\n", w.ID, w.Type, w.Location, w.Capacity, w.PriceCents)
	}
}

func (a *app) handleUpdateWorkspace(p *prompter, out io.Writer) {
	id, ok := p.number("Enter ID of workspace to update: ")
	if !ok {
		return
	}
	w, err := a.mgr.GetWorkspace(id)
	if err != nil {
		fmt.Fprintln(out, describe(err))
		return
	}
	fmt.Fprintf(out, "Updating Workspace ID %d (Type: %s)\n", id, w.Type)
	capacity, ok := p.number("Enter new capacity: ")
	if !ok {
		return
	}
	price, ok := p.number("Enter new price (in cents): ")
	if !ok {
		return
	}
	if err := a.mgr.UpdateWorkspace(id, capacity, price); err != nil {
		fmt.Fprintln(out, describe(err))
		return
	}
	fmt.Fprintf(out, "Workspace ID %d updated.\n", id)
}

// ------------------ Bookings ------------------

func (a *app) handleAddBooking(p *prompter, out io.Writer) {
	memberID, ok := p.number("Enter Member ID: ")
	if !ok {
		return
	}
	workspaceID, ok := p.number("Enter Workspace ID: ")
	if !ok {
		return
	}
	// Fail fast before asking for the remaining fields; AddBooking checks again.
	if _, err := a.mgr.GetMember(memberID); err != nil {
		fmt.Fprintf(out, "Error: Member ID %d does not exist. Cannot create booking.\n", memberID)
		return
	}
	if _, err := a.mgr.GetWorkspace(workspaceID); err != nil {
		fmt.Fprintf(out, "Error: Workspace ID %d does not exist. Cannot create booking.\n", workspaceID)
		return
	}
	start, ok := p.line("Enter Start Time (YYYY-MM-DDTHH:MM): ")
	if !ok {
		return
	}
	end, ok := p.line("Enter End Time (YYYY-MM-DDTHH:MM): ")
	if !ok {
		return
	}
	status, ok := p.line("Enter Status (e.g., Confirmed): ")
	if !ok {
		return
	}
	id, err := a.mgr.AddBooking(memberID, workspaceID, start, end, status)
	if err != nil {
		fmt.Fprintln(out, describe(err))
		return
	}
	fmt.Fprintf(out, "Booking added with ID %d.\n", id)
}

func (a *app) handleListBookings(out io.Writer) {
	fmt.Fprintf(out, "\n--- All Bookings ---\n%-5s | %-10s | %-12s | %-18s | %-18s | %s\n", "ID", "Member ID", "Workspace ID", "Start Time", "End Time", "Status")
	fmt.Fprintln(out, "------|------------|--------------|--------------------|--------------------|----------")
	for _, b := range a.mgr.ListBookings() {
		fmt.Fprintf(out, "%-5d | %-10d | %-12d | %-18s | %-18s | %s\n", b.ID, b.MemberID, b.WorkspaceID, b.StartTime, b.EndTime, b.Status)
	}
}

// ------------------ Payments ------------------

func (a *app) handleAddPayment(p *prompter, out io.Writer) {
	bookingID, ok := p.number("Enter Booking ID: ")
	if !ok {
		return
	}
	if _, err := a.mgr.GetBooking(bookingID); err != nil {
		fmt.Fprintf(out, "Error: Booking ID %d does not exist. Cannot create payment.\n", bookingID)
		return
	}
	amount, ok := p.number("Enter amount (in cents): ")
	if !ok {
		return
	}
	date, ok := p.line("Enter Payment Date (YYYY-MM-DD): ")
	if !ok {
		return
	}
	status, ok := p.line("Enter Status (e.g., Paid): ")
	if !ok {
		return
	}
	id, err := a.mgr.AddPayment(bookingID, amount, date, status)
	if err != nil {
		fmt.Fprintln(out, describe(err))
		return
	}
	fmt.Fprintf(out, "Payment added with ID %d.\n", id)
}

func (a *app) handleListPayments(out io.Writer) {
	fmt.Fprintf(out, "\n--- All Payments ---\n%-5s | %-10s | %-15s | %-12s | %s\n", "ID", "Booking ID", "Amount (cents)", "Date", "Status")
	fmt.Fprintln(out, "------|------------|-----------------|--------------|----------")
	for _, pm := range a.mgr.ListPayments() {
		fmt.Fprintf(out, "%-5d | %-10d | %-15d | %-12s | %s\n", pm.ID, pm.BookingID, pm.AmountCents, pm.PaymentDate, pm.Status)
	}
}

// ------------------ Shared ------------------

func (a *app) handleUpdateStatus(p *prompter, out io.Writer, kind, prompt string, update func(int, string) error) {
	id, ok := p.number(fmt.Sprintf("Enter ID of %s to update: ", kind))
	if !ok {
		return
	}
	status, ok := p.line(prompt)
	if !ok {
		return
	}
	if err := update(id, status); err != nil {
		fmt.Fprintln(out, describe(err))
		return
	}
	fmt.Fprintf(out, "%s ID %d updated.\n", strings.ToUpper(kind[:1])+kind[1:], id)
}

func (a *app) handleDelete(p *prompter, out io.Writer, kind string, del func(int) error) {
	id, ok := p.number(fmt.Sprintf("Enter ID of %s to delete: ", kind))
	if !ok {
		return
	}
	if err := del(id); err != nil {
		fmt.Fprintln(out, describe(err))
		return
	}
	fmt.Fprintf(out, "%s ID %d deleted.\n", strings.ToUpper(kind[:1])+kind[1:], id)
}
