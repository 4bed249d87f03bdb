package coworking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Data file names inside the data directory.
const (
	MembersFile    = "members.csv"
	WorkspacesFile = "workspaces.csv"
	BookingsFile   = "bookings.csv"
	PaymentsFile   = "payments.csv"
)

// DataFiles lists the data files in entity order.
var DataFiles = []string{MembersFile, WorkspacesFile, BookingsFile, PaymentsFile}

// CSVGateway stores each entity as comma-delimited lines in its own file.
// Fields are not escaped; the store rejects values containing commas.
type CSVGateway struct {
	dir string
	log logrus.FieldLogger
}

var _ Gateway = (*CSVGateway)(nil)

// NewCSVGateway reads and writes data files under dir.
func NewCSVGateway(dir string, log logrus.FieldLogger) *CSVGateway {
	if log == nil {
		log = discardLogger()
	}
	return &CSVGateway{dir: dir, log: log}
}

// Dir returns the data directory.
func (g *CSVGateway) Dir() string { return g.dir }

func (g *CSVGateway) path(name string) string { return filepath.Join(g.dir, name) }

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func (g *CSVGateway) Load(_ context.Context, db *Database) error {
	ms, err := loadFile(g, MembersFile, parseMember)
	if err != nil {
		return err
	}
	ws, err := loadFile(g, WorkspacesFile, parseWorkspace)
	if err != nil {
		return err
	}
	bs, err := loadFile(g, BookingsFile, parseBooking)
	if err != nil {
		return err
	}
	ps, err := loadFile(g, PaymentsFile, parsePayment)
	if err != nil {
		return err
	}
	db.ReplaceMembers(ms, 0)
	db.ReplaceWorkspaces(ws, 0)
	db.ReplaceBookings(bs, 0)
	db.ReplacePayments(ps, 0)
	return nil
}

// loadFile parses name line by line. A missing file is an empty store. The
// first malformed line ends the file; records before it are kept.
func loadFile[T any](g *CSVGateway, name string, parse func(string) (T, error)) ([]T, error) {
	path := g.path(name)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		g.log.WithField("path", path).Debug("data file missing, starting empty")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	out, err := readRecords(f, parse)
	if err != nil {
		var pe *parseError
		if !errors.As(err, &pe) {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		g.log.WithFields(logrus.Fields{"path": path, "line": pe.line}).
			Debugf("stopped at malformed line: %v", pe.err)
	}
	g.log.WithFields(logrus.Fields{"path": path, "count": len(out)}).Debug("loaded data file")
	return out, nil
}

type parseError struct {
	line int
	err  error
}

func (e *parseError) Error() string { return fmt.Sprintf("line %d: %v", e.line, e.err) }
func (e *parseError) Unwrap() error { return e.err }

// readRecords returns the records parsed before the first bad line together
// with a *parseError describing it.
func readRecords[T any](r io.Reader, parse func(string) (T, error)) ([]T, error) {
	var out []T
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := parse(line)
		if err != nil {
			return out, &parseError{line: n, err: err}
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}

// splitFields splits line into exactly n fields; the last one keeps any
// remaining commas.
func splitFields(line string, n int) ([]string, error) {
	f := strings.SplitN(line, ",", n)
	if len(f) != n {
		return nil, fmt.Errorf("want %d fields, got %d", n, len(f))
	}
	return f, nil
}

func atoi(s string) (int, error) { return strconv.Atoi(strings.TrimSpace(s)) }

func textField(s string, limit int) (string, error) {
	if s == "" {
		return "", errors.New("empty field")
	}
	if len(s) > limit {
		return "", fmt.Errorf("field longer than %d bytes", limit)
	}
	return s, nil
}

func parseMember(line string) (Member, error) {
	f, err := splitFields(line, 3)
	if err != nil {
		return Member{}, err
	}
	var m Member
	if m.ID, err = atoi(f[0]); err != nil {
		return Member{}, err
	}
	if m.Name, err = textField(f[1], MaxNameLen); err != nil {
		return Member{}, err
	}
	if m.Email, err = textField(f[2], MaxEmailLen); err != nil {
		return Member{}, err
	}
	return m, nil
}

func parseWorkspace(line string) (Workspace, error) {
	f, err := splitFields(line, 5)
	if err != nil {
		return Workspace{}, err
	}
	var w Workspace
	if w.ID, err = atoi(f[0]); err != nil {
		return Workspace{}, err
	}
	if w.Type, err = textField(f[1], MaxTypeLen); err != nil {
		return Workspace{}, err
	}
	if w.Location, err = textField(f[2], MaxLocationLen); err != nil {
		return Workspace{}, err
	}
	if w.Capacity, err = atoi(f[3]); err != nil {
		return Workspace{}, err
	}
	if w.PriceCents, err = atoi(f[4]); err != nil {
		return Workspace{}, err
	}
	return w, nil
}

func parseBooking(line string) (Booking, error) {
	f, err := splitFields(line, 6)
	if err != nil {
		return Booking{}, err
	}
	var b Booking
	if b.ID, err = atoi(f[0]); err != nil {
		return Booking{}, err
	}
	if b.MemberID, err = atoi(f[1]); err != nil {
		return Booking{}, err
	}
	if b.WorkspaceID, err = atoi(f[2]); err != nil {
		return Booking{}, err
	}
	if b.StartTime, err = textField(f[3], MaxTimeLen); err != nil {
		return Booking{}, err
	}
	if b.EndTime, err = textField(f[4], MaxTimeLen); err != nil {
		return Booking{}, err
	}
	if b.Status, err = textField(f[5], MaxStatusLen); err != nil {
		return Booking{}, err
	}
	return b, nil
}

func parsePayment(line string) (Payment, error) {
	f, err := splitFields(line, 5)
	if err != nil {
		return Payment{}, err
	}
	var p Payment
	if p.ID, err = atoi(f[0]); err != nil {
		return Payment{}, err
	}
	if p.BookingID, err = atoi(f[1]); err != nil {
		return Payment{}, err
	}
	if p.AmountCents, err = atoi(f[2]); err != nil {
		return Payment{}, err
	}
	if p.PaymentDate, err = textField(f[3], MaxDateLen); err != nil {
		return Payment{}, err
	}
	if p.Status, err = textField(f[4], MaxStatusLen); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

// Save rewrites every data file. A file that cannot be written is skipped and
// the others are still saved; the skipped ones are reported in the returned
// error.
func (g *CSVGateway) Save(_ context.Context, db *Database) error {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		g.log.WithError(err).WithField("path", g.dir).Warn("cannot create data dir")
	}
	var errs []error
	record := func(name string, err error) {
		if err != nil {
			g.log.WithError(err).WithField("path", g.path(name)).Warn("skipped saving data file")
			errs = append(errs, fmt.Errorf("save %s: %w", name, err))
		}
	}

	record(MembersFile, saveFile(g, MembersFile, db.ViewMembers, func(w io.Writer, m Member) error {
		_, err := fmt.Fprintf(w, "%d,%s,%s\n", m.ID, m.Name, m.Email)
		return err
	}))
	record(WorkspacesFile, saveFile(g, WorkspacesFile, db.ViewWorkspaces, func(w io.Writer, ws Workspace) error {
		_, err := fmt.Fprintf(w, "%d,%s,%s,%d,%d\n", ws.ID, ws.Type, ws.Location, ws.Capacity, ws.PriceCents)
		return err
	}))
	record(BookingsFile, saveFile(g, BookingsFile, db.ViewBookings, func(w io.Writer, b Booking) error {
		_, err := fmt.Fprintf(w, "%d,%d,%d,%s,%s,%s\n", b.ID, b.MemberID, b.WorkspaceID, b.StartTime, b.EndTime, b.Status)
		return err
	}))
	record(PaymentsFile, saveFile(g, PaymentsFile, db.ViewPayments, func(w io.Writer, p Payment) error {
		_, err := fmt.Fprintf(w, "%d,%d,%d,%s,%s\n", p.ID, p.BookingID, p.AmountCents, p.PaymentDate, p.Status)
		return err
	}))
	return errors.Join(errs...)
}

// saveFile truncates name and writes one line per record under the entity's
// read lock.
func saveFile[T any](
	g *CSVGateway,
	name string,
	view func(func(iter.Seq[T], int) error) error,
	write func(io.Writer, T) error,
) error {
	f, err := os.Create(g.path(name))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	n := 0
	err = view(func(seq iter.Seq[T], _ int) error {
		for rec := range seq {
			if err := write(bw, rec); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		g.log.WithFields(logrus.Fields{"path": g.path(name), "count": n}).Debug("saved data file")
	}
	return err
}
