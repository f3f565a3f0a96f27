package lms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is an LMS identifier. The appliance is inconsistent about sending ids as
// numbers or strings, so both are accepted.
type ID int

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("lms: invalid id %q", s)
		}
		*id = ID(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*id = ID(int(f))
	return nil
}

// ParseID converts path or form input into an ID.
func ParseID(s string) (ID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("lms: invalid id %q", s)
	}
	return ID(n), nil
}

type User struct {
	ID        ID     `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Fullname  string `json:"fullname"`
	Email     string `json:"email"`
}

// NewUser builds a user whose full name is derived from its parts.
func NewUser(id ID, username, firstname, lastname, email string) *User {
	return &User{
		ID:        id,
		Username:  username,
		Firstname: firstname,
		Lastname:  lastname,
		Fullname:  firstname + " " + lastname,
		Email:     email,
	}
}

func (u *User) Label() string { return u.Fullname }

type Course struct {
	ID          ID     `json:"id"`
	Fullname    string `json:"fullname"`
	Shortname   string `json:"shortname"`
	Summary     string `json:"summary"`
	Displayname string `json:"displayname,omitempty"`
}

func (c *Course) Label() string { return c.Fullname }

// Cohort is what the console calls a class.
type Cohort struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

func (c *Cohort) Label() string { return c.Name }

// MemberType tells whether a course member is a single user or a whole cohort.
type MemberType string

const (
	MemberUser   MemberType = "user"
	MemberCohort MemberType = "cohort"
)

// ParseMemberType accepts the console spellings ("user", "users", "cohort",
// "cohorts", "class", "classes").
func ParseMemberType(s string) (MemberType, bool) {
	switch strings.ToLower(s) {
	case "user", "users":
		return MemberUser, true
	case "cohort", "cohorts", "class", "classes":
		return MemberCohort, true
	}
	return "", false
}

// PathSegment is the appliance path element for the member type.
func (t MemberType) PathSegment() string {
	if t == MemberCohort {
		return "classes"
	}
	return "users"
}

// Noun is used in user-facing messages.
func (t MemberType) Noun() string {
	if t == MemberCohort {
		return "class"
	}
	return "user"
}

type Role struct {
	ID        ID     `json:"id"`
	Shortname string `json:"shortname"`
}

const (
	RoleManager           ID = 1
	RoleTeacher           ID = 3
	RoleNonEditingTeacher ID = 4
	RoleStudent           ID = 5
)

// RoleNames lists the roles the console can assign.
var RoleNames = map[ID]string{
	RoleManager:           "Manager",
	RoleTeacher:           "Teacher",
	RoleNonEditingTeacher: "Non-editing Teacher",
	RoleStudent:           "Student",
}

// CourseMembership is one enrollment edge of a course.
type CourseMembership struct {
	CourseID   ID         `json:"courseId"`
	MemberID   ID         `json:"memberId"`
	MemberType MemberType `json:"memberType"`
	Roles      []Role     `json:"roles"`
}

// AddRole adds r unless a role with the same id is already present.
func (m *CourseMembership) AddRole(r Role) {
	for _, have := range m.Roles {
		if have.ID == r.ID {
			return
		}
	}
	m.Roles = append(m.Roles, r)
}

// RoleLabel renders the roles as " (student, teacher)", or "" without roles.
func (m *CourseMembership) RoleLabel() string {
	if len(m.Roles) == 0 {
		return ""
	}
	names := make([]string, 0, len(m.Roles))
	for _, r := range m.Roles {
		names = append(names, r.Shortname)
	}
	return " (" + strings.Join(names, ", ") + ")"
}

// Clone returns a copy that shares nothing with m.
func (m *CourseMembership) Clone() *CourseMembership {
	c := *m
	c.Roles = append([]Role(nil), m.Roles...)
	return &c
}

type CohortMembership struct {
	CohortID ID `json:"cohortId"`
	UserID   ID `json:"userId"`
}

// EnrolledUser is a course roster line for a user.
type EnrolledUser struct {
	User  *User  `json:"user"`
	Roles []Role `json:"roles"`
	Label string `json:"label"`
}

// EnrolledCohort is a course roster line for a cohort.
type EnrolledCohort struct {
	Cohort *Cohort `json:"cohort"`
	Roles  []Role  `json:"roles"`
	Label  string  `json:"label"`
}

type CourseRoster struct {
	Cohorts []EnrolledCohort `json:"cohorts"`
	Users   []EnrolledUser   `json:"users"`
}
