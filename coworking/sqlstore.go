package coworking

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLGateway snapshots the database into four tables. Save replaces every row
// in one transaction; a seq column keeps insertion order.
type SQLGateway struct {
	db      *sql.DB
	dialect dialect
	log     logrus.FieldLogger
}

var _ Gateway = (*SQLGateway)(nil)

type dialect struct {
	name string
	// numbered placeholders ($1) instead of ?
	numbered bool
	upsert   string
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		upsert: `INSERT INTO meta(key,value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
	}
	postgresDialect = dialect{
		name:     "postgres",
		numbered: true,
		upsert:   `INSERT INTO meta(key,value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value`,
	}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// OpenSQLite opens (or creates) the snapshot database at path and applies the
// schema.
func OpenSQLite(path string, log logrus.FieldLogger) (*SQLGateway, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	// WAL improves concurrent readers of the snapshot file.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	return newSQLGateway(context.Background(), db, sqliteDialect, log)
}

// OpenPostgres connects through the pgx driver and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, log logrus.FieldLogger) (*SQLGateway, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLGateway(ctx, db, postgresDialect, log)
}

func newSQLGateway(ctx context.Context, db *sql.DB, d dialect, log logrus.FieldLogger) (*SQLGateway, error) {
	if log == nil {
		log = discardLogger()
	}
	g := &SQLGateway{db: db, dialect: d, log: log.WithField("backend", d.name)}
	if err := g.applyMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return g, nil
}

// Close closes the underlying database.
func (g *SQLGateway) Close() error { return g.db.Close() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func (g *SQLGateway) applyMigrations(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return fmt.Errorf("create meta: %w", err)
	}

	var current int
	_ = g.db.QueryRowContext(ctx, g.dialect.rebind(`SELECT value FROM meta WHERE key=?`), "schema_version").Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS members (
            seq INTEGER NOT NULL,
            id INTEGER NOT NULL,
            name TEXT NOT NULL,
            email TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS workspaces (
            seq INTEGER NOT NULL,
            id INTEGER NOT NULL,
            type TEXT NOT NULL,
            location TEXT NOT NULL,
            capacity INTEGER NOT NULL,
            price_cents INTEGER NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            seq INTEGER NOT NULL,
            id INTEGER NOT NULL,
            member_id INTEGER NOT NULL,
            workspace_id INTEGER NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            status TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS payments (
            seq INTEGER NOT NULL,
            id INTEGER NOT NULL,
            booking_id INTEGER NOT NULL,
            amount_cents INTEGER NOT NULL,
            payment_date TEXT NOT NULL,
            status TEXT NOT NULL
        )`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, g.dialect.rebind(g.dialect.upsert), "schema_version", strconv.Itoa(schemaVersion)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// Load installs the snapshot. Unlike the CSV files, the snapshot keeps the
// id counters, so a next id may exceed max(id)+1 when tail records were deleted.
func (g *SQLGateway) Load(ctx context.Context, db *Database) error {
	floors, err := g.readCounters(ctx)
	if err != nil {
		return err
	}

	ms, err := queryAll(ctx, g, `SELECT id,name,email FROM members ORDER BY seq`, func(rows *sql.Rows) (Member, error) {
		var m Member
		err := rows.Scan(&m.ID, &m.Name, &m.Email)
		return m, err
	})
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	ws, err := queryAll(ctx, g, `SELECT id,type,location,capacity,price_cents FROM workspaces ORDER BY seq`, func(rows *sql.Rows) (Workspace, error) {
		var w Workspace
		err := rows.Scan(&w.ID, &w.Type, &w.Location, &w.Capacity, &w.PriceCents)
		return w, err
	})
	if err != nil {
		return fmt.Errorf("load workspaces: %w", err)
	}
	bs, err := queryAll(ctx, g, `SELECT id,member_id,workspace_id,start_time,end_time,status FROM bookings ORDER BY seq`, func(rows *sql.Rows) (Booking, error) {
		var b Booking
		err := rows.Scan(&b.ID, &b.MemberID, &b.WorkspaceID, &b.StartTime, &b.EndTime, &b.Status)
		return b, err
	})
	if err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}
	ps, err := queryAll(ctx, g, `SELECT id,booking_id,amount_cents,payment_date,status FROM payments ORDER BY seq`, func(rows *sql.Rows) (Payment, error) {
		var p Payment
		err := rows.Scan(&p.ID, &p.BookingID, &p.AmountCents, &p.PaymentDate, &p.Status)
		return p, err
	})
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}

	db.ReplaceMembers(ms, floors.Member)
	db.ReplaceWorkspaces(ws, floors.Workspace)
	db.ReplaceBookings(bs, floors.Booking)
	db.ReplacePayments(ps, floors.Payment)
	g.log.WithFields(logrus.Fields{
		"members": len(ms), "workspaces": len(ws), "bookings": len(bs), "payments": len(ps),
	}).Info("loaded snapshot")
	return nil
}

func queryAll[T any](ctx context.Context, g *SQLGateway, q string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := g.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

var counterKeys = [...]string{"next_member_id", "next_workspace_id", "next_booking_id", "next_payment_id"}

func (g *SQLGateway) readCounters(ctx context.Context) (NextIDs, error) {
	var n NextIDs
	targets := [...]*int{&n.Member, &n.Workspace, &n.Booking, &n.Payment}
	for i, key := range counterKeys {
		var v string
		err := g.db.QueryRowContext(ctx, g.dialect.rebind(`SELECT value FROM meta WHERE key=?`), key).Scan(&v)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return NextIDs{}, fmt.Errorf("read %s: %w", key, err)
		}
		if *targets[i], err = strconv.Atoi(v); err != nil {
			return NextIDs{}, fmt.Errorf("read %s: %w", key, err)
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

// Save replaces the snapshot. Each entity is read under its own read lock.
func (g *SQLGateway) Save(ctx context.Context, db *Database) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next NextIDs
	err = db.ViewMembers(func(seq iter.Seq[Member], n int) error {
		next.Member = n
		return insertAll(ctx, g, tx, EntityMember, `INSERT INTO members(seq,id,name,email) VALUES(?,?,?,?)`, seq,
			func(m Member) []any { return []any{m.ID, m.Name, m.Email} })
	})
	if err != nil {
		return err
	}
	err = db.ViewWorkspaces(func(seq iter.Seq[Workspace], n int) error {
		next.Workspace = n
		return insertAll(ctx, g, tx, EntityWorkspace, `INSERT INTO workspaces(seq,id,type,location,capacity,price_cents) VALUES(?,?,?,?,?,?)`, seq,
			func(w Workspace) []any { return []any{w.ID, w.Type, w.Location, w.Capacity, w.PriceCents} })
	})
	if err != nil {
		return err
	}
	err = db.ViewBookings(func(seq iter.Seq[Booking], n int) error {
		next.Booking = n
		return insertAll(ctx, g, tx, EntityBooking, `INSERT INTO bookings(seq,id,member_id,workspace_id,start_time,end_time,status) VALUES(?,?,?,?,?,?,?)`, seq,
			func(b Booking) []any { return []any{b.ID, b.MemberID, b.WorkspaceID, b.StartTime, b.EndTime, b.Status} })
	})
	if err != nil {
		return err
	}
	err = db.ViewPayments(func(seq iter.Seq[Payment], n int) error {
		next.Payment = n
		return insertAll(ctx, g, tx, EntityPayment, `INSERT INTO payments(seq,id,booking_id,amount_cents,payment_date,status) VALUES(?,?,?,?,?,?)`, seq,
			func(p Payment) []any { return []any{p.ID, p.BookingID, p.AmountCents, p.PaymentDate, p.Status} })
	})
	if err != nil {
		return err
	}

	for i, v := range [...]int{next.Member, next.Workspace, next.Booking, next.Payment} {
		if _, err := tx.ExecContext(ctx, g.dialect.rebind(g.dialect.upsert), counterKeys[i], strconv.Itoa(v)); err != nil {
			return fmt.Errorf("save %s: %w", counterKeys[i], err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	g.log.Info("saved snapshot")
	return nil
}

func insertAll[T any](ctx context.Context, g *SQLGateway, tx *sql.Tx, table Entity, insert string, seq iter.Seq[T], args func(T) []any) error {
	// table comes from the Entity constants, never from input.
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+string(table)); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, g.dialect.rebind(insert))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", table, err)
	}
	defer stmt.Close()

	i := 0
	for rec := range seq {
		i++
		if _, err := stmt.ExecContext(ctx, append([]any{i}, args(rec)...)...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}
