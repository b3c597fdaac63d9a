package coupons

import (
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle label shown next to a coupon. Only Inactive is stored;
// Upcoming and Expired come from the dates.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
	StatusUpcoming Status = "Upcoming"
	StatusExpired  Status = "Expired"
)

// DeriveStatus labels c at now.
func DeriveStatus(c Coupon, now time.Time) Status {
	switch {
	case !c.Active:
		return StatusInactive
	case !c.StartDate.IsZero() && c.StartDate.After(now):
		return StatusUpcoming
	case !c.EndDate.IsZero() && c.EndDate.Before(now):
		return StatusExpired
	default:
		return StatusActive
	}
}

// FilterStatus selects coupons in the admin list.
type FilterStatus string

const (
	FilterAll          FilterStatus = "all"
	FilterActive       FilterStatus = "active"
	FilterInactive     FilterStatus = "inactive"
	FilterExpired      FilterStatus = "expired"
	FilterUpcoming     FilterStatus = "upcoming"
	FilterFirstTime    FilterStatus = "first-time"
	FilterFreeShipping FilterStatus = "free-shipping"
)

// ParseFilterStatus accepts the filter names case-insensitively; empty means all.
func ParseFilterStatus(s string) (FilterStatus, error) {
	f := FilterStatus(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterActive, FilterInactive, FilterExpired, FilterUpcoming, FilterFirstTime, FilterFreeShipping:
		return f, nil
	}
	return "", ErrUnknownFilter
}

// Filter narrows a coupon list by free text over code and description, and by status.
type Filter struct {
	Search string
	Status FilterStatus
}

func (f Filter) matches(c Coupon, now time.Time) bool {
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		if !strings.Contains(strings.ToLower(c.Code), term) &&
			!strings.Contains(strings.ToLower(c.Description), term) {
			return false
		}
	}
	switch f.Status {
	case FilterActive:
		return c.Active
	case FilterInactive:
		return !c.Active
	case FilterExpired:
		return !c.EndDate.IsZero() && c.EndDate.Before(now)
	case FilterUpcoming:
		return !c.StartDate.IsZero() && c.StartDate.After(now)
	case FilterFirstTime:
		return c.FirstTimeUserOnly
	case FilterFreeShipping:
		return c.FreeShipping
	default:
		return true
	}
}

// Apply returns the coupons in list that pass f, in their original order.
func Apply(list []Coupon, f Filter, now time.Time) []Coupon {
	out := make([]Coupon, 0, len(list))
	for _, c := range list {
		if f.matches(c, now) {
			out = append(out, c)
		}
	}
	return out
}

// ExpiringWithin returns coupons whose end date falls in (now, now+window], soonest first.
func ExpiringWithin(list []Coupon, now time.Time, window time.Duration) []Coupon {
	limit := now.Add(window)
	var out []Coupon
	for _, c := range list {
		if c.EndDate.IsZero() {
			continue
		}
		if c.EndDate.After(now) && !c.EndDate.After(limit) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate.Time) })
	return out
}
