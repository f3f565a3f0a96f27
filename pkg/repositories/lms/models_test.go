package lms

import (
	"encoding/json"
	"testing"
)

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var got struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
		D ID `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a":12,"b":"34","c":null,"d":""}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.A != 12 || got.B != 34 || got.C != 0 || got.D != 0 {
		t.Fatalf("got %+v", got)
	}
	if err := json.Unmarshal([]byte(`{"a":"x1"}`), &got); err == nil {
		t.Fatal("expected error for non numeric id")
	}
}

func TestAddRoleDeduplicates(t *testing.T) {
	m := &CourseMembership{CourseID: 1, MemberID: 2, MemberType: MemberUser}
	m.AddRole(Role{ID: 5, Shortname: "student"})
	m.AddRole(Role{ID: 5, Shortname: "student"})
	m.AddRole(Role{ID: 3, Shortname: "editingteacher"})
	if len(m.Roles) != 2 {
		t.Fatalf("roles = %+v", m.Roles)
	}
	if got := m.RoleLabel(); got != " (student, editingteacher)" {
		t.Fatalf("RoleLabel = %q", got)
	}
	if got := (&CourseMembership{}).RoleLabel(); got != "" {
		t.Fatalf("empty RoleLabel = %q", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := &CourseMembership{Roles: []Role{{ID: 5, Shortname: "student"}}}
	c := m.Clone()
	c.AddRole(Role{ID: 3})
	c.Roles[0].Shortname = "changed"
	if len(m.Roles) != 1 || m.Roles[0].Shortname != "student" {
		t.Fatalf("original mutated: %+v", m.Roles)
	}
}

func TestParseMemberType(t *testing.T) {
	for _, in := range []string{"user", "users"} {
		if mt, ok := ParseMemberType(in); !ok || mt != MemberUser {
			t.Errorf("%q -> %v %v", in, mt, ok)
		}
	}
	for _, in := range []string{"cohort", "classes", "CLASS"} {
		if mt, ok := ParseMemberType(in); !ok || mt != MemberCohort {
			t.Errorf("%q -> %v %v", in, mt, ok)
		}
	}
	if _, ok := ParseMemberType("group"); ok {
		t.Error("group accepted")
	}
	if MemberCohort.PathSegment() != "classes" || MemberUser.PathSegment() != "users" {
		t.Error("unexpected path segments")
	}
}

func TestNewUserFullname(t *testing.T) {
	u := NewUser(3, "jdoe", "Jane", "Doe", "jane@example.org")
	if u.Fullname != "Jane Doe" || u.Label() != "Jane Doe" {
		t.Fatalf("fullname = %q", u.Fullname)
	}
}
