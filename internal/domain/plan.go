package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Plan represents one calendar month scheduling cycle. Locked is an
// administrative override: while true, no gardener mutation is accepted for
// this month regardless of individual submission status.
type Plan struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Year      int                `bson:"year" json:"year"`
	Month     int                `bson:"month" json:"month"` // 1..12
	Locked    bool               `bson:"locked" json:"locked"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Key returns the canonical "YYYY-MM" form of the plan's month.
func (p Plan) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

var (
	planKeyRe        = regexp.MustCompile(`^(\d{4})-(0[1-9]|1[0-2])$`)
	planKeyCompactRe = regexp.MustCompile(`^(\d{4})(0[1-9]|1[0-2])$`)
)

// ParsePlanKey parses a plan identifier in either "YYYY-MM" or compact
// "YYYYMM" form. The two forms are equivalent.
func ParsePlanKey(s string) (year, month int, ok bool) {
	m := planKeyRe.FindStringSubmatch(s)
	if m == nil {
		m = planKeyCompactRe.FindStringSubmatch(s)
	}
	if m == nil {
		return 0, 0, false
	}
	year, _ = strconv.Atoi(m[1])
	month, _ = strconv.Atoi(m[2])
	return year, month, true
}

// PrevMonth returns the year and month immediately before (year, month).
func PrevMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}

// NormalizeWorkDate truncates a timestamp to a date-only value in UTC.
// Assignments are keyed by day; the time component must be zero before any
// storage match, otherwise identical days would not collide on the unique
// index.
func NormalizeWorkDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// InMonth reports whether t (normalized to a date) falls inside the given
// plan month.
func InMonth(t time.Time, year, month int) bool {
	d := NormalizeWorkDate(t)
	return d.Year() == year && int(d.Month()) == month
}
