package metadata

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ehr/formula-engine/internal/expression"
)

// Object is one named metadata object that formula references can point at.
// Value is set for constants only, MemberCount for organisation unit groups
// only.
type Object struct {
	Class       expression.ObjectClass `json:"class"`
	UID         string                 `json:"uid"`
	Name        string                 `json:"name"`
	Code        string                 `json:"code,omitempty"`
	Value       *float64               `json:"value,omitempty"`
	MemberCount *int                   `json:"member_count,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Reference content is split on dots, so uids cannot contain one.
var uidPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func (o *Object) Validate() error {
	if _, err := expression.ParseObjectClass(string(o.Class)); err != nil {
		return err
	}
	if !uidPattern.MatchString(o.UID) {
		return fmt.Errorf("invalid uid %q", o.UID)
	}
	if o.Name == "" {
		return fmt.Errorf("%s %s: name is required", o.Class, o.UID)
	}
	switch o.Class {
	case expression.ClassConstant:
		if o.Value == nil {
			return fmt.Errorf("constant %s: value is required", o.UID)
		}
	case expression.ClassOrganisationUnitGroup:
		if o.MemberCount == nil || *o.MemberCount < 0 {
			return fmt.Errorf("organisation unit group %s: member_count must be zero or more", o.UID)
		}
	}
	if o.Class != expression.ClassConstant && o.Value != nil {
		return fmt.Errorf("%s %s: only constants carry a value", o.Class, o.UID)
	}
	if o.Class != expression.ClassOrganisationUnitGroup && o.MemberCount != nil {
		return fmt.Errorf("%s %s: only organisation unit groups carry a member count", o.Class, o.UID)
	}
	return nil
}
