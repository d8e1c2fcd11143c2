package model

import (
	"strings"
	"time"
)

type ExclusionTag string

const (
	TagDealer   ExclusionTag = "dealer"
	TagVendor   ExclusionTag = "vendor"
	TagInternal ExclusionTag = "internal"
	TagOther    ExclusionTag = "other"
)

func (t ExclusionTag) String() string { return string(t) }

func (t ExclusionTag) Valid() bool {
	return t == TagDealer || t == TagVendor || t == TagInternal || t == TagOther
}

// ParseExclusionTag normalizes input; empty => other.
func ParseExclusionTag(s string) (ExclusionTag, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "other":
		return TagOther, true
	case "dealer":
		return TagDealer, true
	case "vendor":
		return TagVendor, true
	case "internal":
		return TagInternal, true
	default:
		return TagOther, false
	}
}

// ExcludedNumber suppresses all automated sends to a phone while present and
// not expired. Messages may still be recorded for the number.
type ExcludedNumber struct {
	ID          int64        `db:"id" json:"id"`
	Phone       string       `db:"phone" json:"phone"`
	Tag         ExclusionTag `db:"tag" json:"tag"`
	Reason      string       `db:"reason" json:"reason"`
	IsTemporary bool         `db:"is_temporary" json:"is_temporary"`
	ExpiresAt   *time.Time   `db:"expires_at" json:"expires_at,omitempty"` // set iff temporary
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// Active reports whether the exclusion still suppresses sends at the given time.
func (e ExcludedNumber) Active(now time.Time) bool {
	if !e.IsTemporary {
		return true
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}
