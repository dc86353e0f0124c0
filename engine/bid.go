package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Bid is a complete assignment of one legal value to every issue of a domain.
// Bids are immutable; the zero Bid is empty and only useful as "no bid".
type Bid struct {
	values map[int]Value
}

// NewBid validates the assignment against the domain and returns a Bid.
// Every issue must be assigned exactly one legal value and no foreign issues may appear.
func NewBid(d *Domain, values map[int]Value) (Bid, error) {
	if len(values) != d.NumIssues() {
		for _, iss := range d.issues {
			if _, ok := values[iss.Number]; !ok {
				return Bid{}, fmt.Errorf("%w: missing issue %d", ErrIncompleteBid, iss.Number)
			}
		}
	}
	out := make(map[int]Value, len(values))
	for num, v := range values {
		iss, ok := d.Issue(num)
		if !ok {
			return Bid{}, fmt.Errorf("%w: %d", ErrUnknownIssue, num)
		}
		if !iss.HasValue(v) {
			return Bid{}, fmt.Errorf("%w: issue %d value %q", ErrIllegalValue, num, v)
		}
		out[num] = v
	}
	return Bid{values: out}, nil
}

// IsZero reports whether b is the empty Bid.
func (b Bid) IsZero() bool { return len(b.values) == 0 }

// Value returns the value assigned to the issue.
func (b Bid) Value(issue int) (Value, bool) {
	v, ok := b.values[issue]
	return v, ok
}

// Issues returns the assigned issue numbers in ascending order.
func (b Bid) Issues() []int {
	nums := make([]int, 0, len(b.values))
	for num := range b.values {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	return nums
}

// Values returns a copy of the assignment.
func (b Bid) Values() map[int]Value {
	out := make(map[int]Value, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Equal reports whether both bids assign the same values.
func (b Bid) Equal(other Bid) bool {
	if len(b.values) != len(other.values) {
		return false
	}
	for k, v := range b.values {
		if ov, ok := other.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Validate checks that the bid is legal in d.
func (b Bid) Validate(d *Domain) error {
	_, err := NewBid(d, b.values)
	return err
}

// String renders the bid as "1=a, 2=b" in issue order.
func (b Bid) String() string {
	parts := make([]string, 0, len(b.values))
	for _, num := range b.Issues() {
		parts = append(parts, fmt.Sprintf("%d=%s", num, b.values[num]))
	}
	return "Bid{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the bid as {"<issue>": "<value>"}.
func (b Bid) MarshalJSON() ([]byte, error) {
	if b.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b.values)
}

// UnmarshalJSON decodes {"<issue>": "<value>"} without domain validation;
// callers receiving bids from the wire must call Validate.
func (b *Bid) UnmarshalJSON(data []byte) error {
	var values map[int]Value
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	b.values = values
	return nil
}
