package lms

import "context"

// UserInput carries the editable user fields. Password is only sent when set.
type UserInput struct {
	Username  string `json:"username" validate:"notblank,lmsusername"`
	Firstname string `json:"firstname" validate:"notblank"`
	Lastname  string `json:"lastname" validate:"notblank"`
	Email     string `json:"email" validate:"notblank,email"`
	Password  string `json:"password,omitempty"`
}

type CourseInput struct {
	Fullname  string `json:"fullname" validate:"notblank"`
	Shortname string `json:"shortname" validate:"notblank"`
	Summary   string `json:"summary"`
}

type CohortInput struct {
	Name string `json:"name" validate:"notblank"`
}

// The repositories below keep an in-memory copy of one LMS collection. The
// collection is fetched once on first use; successful writes update the copy.
// Find returns nil without error when the id is unknown, and Delete returns
// false without calling the appliance for a zero id.

// UsersRepository is the cached view of the LMS users.
type UsersRepository interface {
	All(ctx context.Context) ([]*User, error)
	Find(ctx context.Context, id ID) (*User, error)
	FindByIDs(ctx context.Context, ids []ID) ([]*User, error)
	// Fetch reads one user straight from the appliance and refreshes the cache.
	Fetch(ctx context.Context, id ID) (*User, error)
	Add(ctx context.Context, in UserInput) (*User, error)
	Update(ctx context.Context, id ID, in UserInput) (*User, error)
	Delete(ctx context.Context, id ID) (bool, error)
}

type CoursesRepository interface {
	All(ctx context.Context) ([]*Course, error)
	Find(ctx context.Context, id ID) (*Course, error)
	FindByIDs(ctx context.Context, ids []ID) ([]*Course, error)
	Update(ctx context.Context, id ID, in CourseInput) (*Course, error)
	Delete(ctx context.Context, id ID) (bool, error)
}

type CohortsRepository interface {
	All(ctx context.Context) ([]*Cohort, error)
	Find(ctx context.Context, id ID) (*Cohort, error)
	FindByIDs(ctx context.Context, ids []ID) ([]*Cohort, error)
	Add(ctx context.Context, in CohortInput) (*Cohort, error)
	Update(ctx context.Context, id ID, in CohortInput) (*Cohort, error)
	Delete(ctx context.Context, id ID) (bool, error)
}

// CourseEnrollmentRepository tracks users and cohorts enrolled in courses.
// Enroll and Unenroll return false without error when the appliance answered
// but did not confirm the change.
type CourseEnrollmentRepository interface {
	Roster(ctx context.Context, courseID ID) (*CourseRoster, error)
	IsEnrolled(ctx context.Context, courseID, memberID ID, t MemberType) (bool, error)
	Enroll(ctx context.Context, courseID, memberID ID, t MemberType, roleID ID) (bool, error)
	Unenroll(ctx context.Context, courseID, memberID ID, t MemberType) (bool, error)
}

// CohortEnrollmentRepository tracks users belonging to cohorts.
type CohortEnrollmentRepository interface {
	Roster(ctx context.Context, cohortID ID) ([]*User, error)
	IsEnrolled(ctx context.Context, cohortID, userID ID) (bool, error)
	Enroll(ctx context.Context, cohortID, userID ID) (bool, error)
	Unenroll(ctx context.Context, cohortID, userID ID) (bool, error)
}
