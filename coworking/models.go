package coworking

import (
	"strings"
	"unicode/utf8"
)

// Field limits mirror the fixed-width columns of the data files.
const (
	MaxNameLen     = 99
	MaxEmailLen    = 99
	MaxTypeLen     = 49
	MaxLocationLen = 99
	MaxTimeLen     = 19
	MaxStatusLen   = 19
	MaxDateLen     = 10
)

// Member represents a registered co-working member.
type Member struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Workspace is a bookable desk, room or office.
type Workspace struct {
	ID         int    `json:"id"`
	Type       string `json:"type"`
	Location   string `json:"location"`
	Capacity   int    `json:"capacity"`
	PriceCents int    `json:"price_cents"`
}

// Booking reserves a workspace for a member between two free-form timestamps.
type Booking struct {
	ID          int    `json:"id"`
	MemberID    int    `json:"member_id"`
	WorkspaceID int    `json:"workspace_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
}

// Payment settles (part of) a booking.
type Payment struct {
	ID          int    `json:"id"`
	BookingID   int    `json:"booking_id"`
	AmountCents int    `json:"amount_cents"`
	PaymentDate string `json:"payment_date"`
	Status      string `json:"status"`
}

// Entity names one of the four record types. It doubles as the metric label
// and the snapshot table name.
type Entity string

const (
	EntityMember    Entity = "members"
	EntityWorkspace Entity = "workspaces"
	EntityBooking   Entity = "bookings"
	EntityPayment   Entity = "payments"
)

// Entities lists every entity in lock order.
var Entities = []Entity{EntityMember, EntityWorkspace, EntityBooking, EntityPayment}

// cleanField trims surrounding whitespace, truncates to limit bytes and rejects
// values the unescaped file format cannot carry.
func cleanField(field, value string, limit int) (string, error) {
	v := strings.TrimSpace(value)
	if len(v) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(v[cut]) {
			cut--
		}
		v = strings.TrimSpace(v[:cut])
	}
	if v == "" {
		return "", invalidField(field, "must not be empty")
	}
	if strings.ContainsAny(v, ",\r\n") {
		return "", invalidField(field, "must not contain commas or line breaks")
	}
	return v, nil
}
