package expression

import (
	"fmt"
	"strings"
)

// MissingValuePolicy decides how absent item values affect a formula.
type MissingValuePolicy int

const (
	// NeverSkip treats every missing value as zero.
	NeverSkip MissingValuePolicy = iota
	// SkipIfAnyValueMissing gives no value as soon as one item is missing.
	SkipIfAnyValueMissing
	// SkipIfAllValuesMissing gives no value when items were referenced but
	// none of them had a value.
	SkipIfAllValuesMissing
)

var policyNames = map[MissingValuePolicy]string{
	NeverSkip:              "NEVER_SKIP",
	SkipIfAnyValueMissing:  "SKIP_IF_ANY_VALUE_MISSING",
	SkipIfAllValuesMissing: "SKIP_IF_ALL_VALUES_MISSING",
}

func (p MissingValuePolicy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("MissingValuePolicy(%d)", int(p))
}

// ParseMissingValuePolicy accepts the upper snake case names used in stored
// definitions. An empty string maps to NeverSkip.
func ParseMissingValuePolicy(s string) (MissingValuePolicy, error) {
	if strings.TrimSpace(s) == "" {
		return NeverSkip, nil
	}
	for p, name := range policyNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return NeverSkip, fmt.Errorf("unknown missing value policy %q", s)
}

func (p MissingValuePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *MissingValuePolicy) UnmarshalText(b []byte) error {
	v, err := ParseMissingValuePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// itemCounter tracks dimensional references seen and those that had values.
// isNull tests never touch it.
type itemCounter struct {
	found  int
	valued int
}

func (c *itemCounter) record(present bool) {
	c.found++
	if present {
		c.valued++
	}
}

// skip applies the policy once all references have been counted.
func (c itemCounter) skip(p MissingValuePolicy) bool {
	switch p {
	case SkipIfAnyValueMissing:
		return c.valued < c.found
	case SkipIfAllValuesMissing:
		return c.found > 0 && c.valued == 0
	}
	return false
}
