package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/connectbox/console/pkg/common/apiclient"
	"github.com/connectbox/console/pkg/common/apperror"
	"github.com/connectbox/console/pkg/common/logger"
	"github.com/connectbox/console/pkg/repositories/lms"
)

type membershipKey struct {
	course lms.ID
	member lms.ID
	kind   lms.MemberType
}

type rosterKey struct {
	course lms.ID
	kind   lms.MemberType
}

// CourseEnrollmentRepo caches course memberships per course and member type.
// A sub-roster is fetched at most once; enrollments made through the
// repository are added to the cache as they succeed.
type CourseEnrollmentRepo struct {
	api     API
	token   string
	users   lms.UsersRepository
	cohorts lms.CohortsRepository

	mu          sync.RWMutex
	memberships map[membershipKey]*lms.CourseMembership
	loaded      map[rosterKey]bool
	flight      singleflight.Group
}

var _ lms.CourseEnrollmentRepository = (*CourseEnrollmentRepo)(nil)

func NewCourseEnrollmentRepo(api API, token string, users lms.UsersRepository, cohorts lms.CohortsRepository) *CourseEnrollmentRepo {
	r := &CourseEnrollmentRepo{
		api:         api,
		token:       token,
		users:       users,
		cohorts:     cohorts,
		memberships: make(map[membershipKey]*lms.CourseMembership),
		loaded:      make(map[rosterKey]bool),
	}
	onDelete(users, func(id lms.ID) { r.forgetMember(id, lms.MemberUser) })
	onDelete(cohorts, func(id lms.ID) { r.forgetMember(id, lms.MemberCohort) })
	return r
}

// ForgetCourse drops the cached rosters of a course, so the next read
// fetches them again.
func (r *CourseEnrollmentRepo) ForgetCourse(courseID lms.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.memberships {
		if k.course == courseID {
			delete(r.memberships, k)
		}
	}
	delete(r.loaded, rosterKey{course: courseID, kind: lms.MemberUser})
	delete(r.loaded, rosterKey{course: courseID, kind: lms.MemberCohort})
}

func (r *CourseEnrollmentRepo) forgetMember(memberID lms.ID, t lms.MemberType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.memberships {
		if k.member == memberID && k.kind == t {
			delete(r.memberships, k)
		}
	}
}

// Roster returns the cohorts and users enrolled in the course. Both
// sub-rosters are resolved concurrently.
func (r *CourseEnrollmentRepo) Roster(ctx context.Context, courseID lms.ID) (*lms.CourseRoster, error) {
	if courseID == 0 {
		return nil, apperror.Remote(http.StatusNotFound, msgCourseNotFound, nil)
	}
	roster := &lms.CourseRoster{Cohorts: []lms.EnrolledCohort{}, Users: []lms.EnrolledUser{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cohorts, err := r.cohortRoster(gctx, courseID)
		roster.Cohorts = cohorts
		return err
	})
	g.Go(func() error {
		users, err := r.userRoster(gctx, courseID)
		roster.Users = users
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return roster, nil
}

// IsEnrolled loads the matching sub-roster when it is not cached yet.
func (r *CourseEnrollmentRepo) IsEnrolled(ctx context.Context, courseID, memberID lms.ID, t lms.MemberType) (bool, error) {
	if courseID == 0 || !validMemberType(t) {
		return false, nil
	}
	if err := r.ensure(ctx, courseID, t); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.memberships[membershipKey{course: courseID, member: memberID, kind: t}]
	return ok, nil
}

// Enroll adds the member with roleID. A member already known to be enrolled
// is reported as enrolled without calling the appliance.
func (r *CourseEnrollmentRepo) Enroll(ctx context.Context, courseID, memberID lms.ID, t lms.MemberType, roleID lms.ID) (bool, error) {
	if courseID == 0 || memberID == 0 || !validMemberType(t) {
		return false, nil
	}
	enrolled, err := r.IsEnrolled(ctx, courseID, memberID, t)
	if err != nil {
		return false, err
	}
	if enrolled {
		return true, nil
	}
	path := fmt.Sprintf("lms/courses/%d/%s/%d", courseID, t.PathSegment(), memberID)
	raw, err := r.api.Put(ctx, path, r.token, map[string]int{"roleid": int(roleID)})
	if err != nil {
		return false, remoteError(err, msgEnroll(t))
	}
	if c := apiclient.Confirm(raw, "enrolled"); !c.OK() {
		logger.Debug("lms: enroll %s %d in course %d: %s %q", t, memberID, courseID, c.Outcome, c.Message)
		return false, nil
	}
	m := &lms.CourseMembership{CourseID: courseID, MemberID: memberID, MemberType: t}
	m.AddRole(lms.Role{ID: roleID, Shortname: lms.RoleNames[roleID]})
	r.store(m)
	return true, nil
}

// Unenroll removes the member. A member that is not enrolled is reported as
// removed without calling the appliance.
func (r *CourseEnrollmentRepo) Unenroll(ctx context.Context, courseID, memberID lms.ID, t lms.MemberType) (bool, error) {
	if courseID == 0 || memberID == 0 || !validMemberType(t) {
		return false, nil
	}
	enrolled, err := r.IsEnrolled(ctx, courseID, memberID, t)
	if err != nil {
		return false, err
	}
	if !enrolled {
		return true, nil
	}
	path := fmt.Sprintf("lms/courses/%d/%s/%d", courseID, t.PathSegment(), memberID)
	raw, err := r.api.Delete(ctx, path, r.token)
	if err != nil {
		return false, remoteError(err, msgUnenroll(t))
	}
	if c := apiclient.Confirm(raw, "unenrolled"); !c.OK() {
		logger.Debug("lms: unenroll %s %d from course %d: %s %q", t, memberID, courseID, c.Outcome, c.Message)
		return false, nil
	}
	r.mu.Lock()
	delete(r.memberships, membershipKey{course: courseID, member: memberID, kind: t})
	r.mu.Unlock()
	return true, nil
}

func validMemberType(t lms.MemberType) bool {
	return t == lms.MemberUser || t == lms.MemberCohort
}

// store merges m into the cache, keeping one membership per key.
func (r *CourseEnrollmentRepo) store(m *lms.CourseMembership) {
	key := membershipKey{course: m.CourseID, member: m.MemberID, kind: m.MemberType}
	r.mu.Lock()
	defer r.mu.Unlock()
	if have, ok := r.memberships[key]; ok {
		merged := have.Clone()
		for _, role := range m.Roles {
			merged.AddRole(role)
		}
		r.memberships[key] = merged
		return
	}
	r.memberships[key] = m.Clone()
}

// cached returns copies of the memberships of one sub-roster.
func (r *CourseEnrollmentRepo) cached(courseID lms.ID, t lms.MemberType) []*lms.CourseMembership {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*lms.CourseMembership
	for k, m := range r.memberships {
		if k.course == courseID && k.kind == t {
			out = append(out, m.Clone())
		}
	}
	return out
}

// ensure fetches a sub-roster unless it is already cached. Concurrent
// callers share one request.
func (r *CourseEnrollmentRepo) ensure(ctx context.Context, courseID lms.ID, t lms.MemberType) error {
	key := rosterKey{course: courseID, kind: t}
	r.mu.RLock()
	done := r.loaded[key]
	r.mu.RUnlock()
	if done {
		return nil
	}
	ch := r.flight.DoChan(fmt.Sprintf("%d/%s", courseID, t), func() (any, error) {
		r.mu.RLock()
		done := r.loaded[key]
		r.mu.RUnlock()
		if done {
			return nil, nil
		}
		var (
			fetched []*lms.CourseMembership
			err     error
		)
		fctx := context.WithoutCancel(ctx)
		if t == lms.MemberCohort {
			fetched, err = r.fetchCohortMemberships(fctx, courseID)
		} else {
			fetched, err = r.fetchUserMemberships(fctx, courseID)
		}
		if err != nil {
			return nil, err
		}
		for _, m := range fetched {
			r.store(m)
		}
		r.mu.Lock()
		r.loaded[key] = true
		r.mu.Unlock()
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (r *CourseEnrollmentRepo) fetchCohortMemberships(ctx context.Context, courseID lms.ID) ([]*lms.CourseMembership, error) {
	raw, err := r.api.Get(ctx, fmt.Sprintf("lms/courses/%d/classes", courseID), r.token)
	if err != nil {
		return nil, remoteError(err, msgRosterClasses)
	}
	var body struct {
		Data []struct {
			CohortID lms.ID `json:"cohortid"`
			Role     *struct {
				ID        lms.ID `json:"id"`
				Shortname string `json:"shortname"`
			} `json:"role"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, remoteError(&apiclient.HTTPError{Status: 200, Body: string(raw)}, msgRosterClasses)
	}
	out := make([]*lms.CourseMembership, 0, len(body.Data))
	for _, d := range body.Data {
		m := &lms.CourseMembership{CourseID: courseID, MemberID: d.CohortID, MemberType: lms.MemberCohort}
		if d.Role != nil {
			m.AddRole(lms.Role{ID: d.Role.ID, Shortname: d.Role.Shortname})
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *CourseEnrollmentRepo) fetchUserMemberships(ctx context.Context, courseID lms.ID) ([]*lms.CourseMembership, error) {
	raw, err := r.api.Get(ctx, fmt.Sprintf("lms/courses/%d/users", courseID), r.token)
	if err != nil {
		return nil, remoteError(err, msgRosterUsers)
	}
	var people []struct {
		ID    lms.ID `json:"id"`
		Roles []struct {
			RoleID    lms.ID `json:"roleid"`
			Shortname string `json:"shortname"`
		} `json:"roles"`
	}
	if err := json.Unmarshal(raw, &people); err != nil {
		return nil, remoteError(&apiclient.HTTPError{Status: 200, Body: string(raw)}, msgRosterUsers)
	}
	out := make([]*lms.CourseMembership, 0, len(people))
	for _, p := range people {
		m := &lms.CourseMembership{CourseID: courseID, MemberID: p.ID, MemberType: lms.MemberUser}
		for _, role := range p.Roles {
			m.AddRole(lms.Role{ID: role.RoleID, Shortname: role.Shortname})
		}
		out = append(out, m)
	}
	return out, nil
}

// byMember indexes memberships by member id and returns the ids in a slice.
func byMember(memberships []*lms.CourseMembership) (map[lms.ID]*lms.CourseMembership, []lms.ID) {
	idx := make(map[lms.ID]*lms.CourseMembership, len(memberships))
	ids := make([]lms.ID, 0, len(memberships))
	for _, m := range memberships {
		idx[m.MemberID] = m
		ids = append(ids, m.MemberID)
	}
	return idx, ids
}

// cohortRoster joins the cohort memberships with the cohorts repository.
// The result follows the cohorts' sort order.
func (r *CourseEnrollmentRepo) cohortRoster(ctx context.Context, courseID lms.ID) ([]lms.EnrolledCohort, error) {
	if err := r.ensure(ctx, courseID, lms.MemberCohort); err != nil {
		return nil, err
	}
	idx, ids := byMember(r.cached(courseID, lms.MemberCohort))
	out := make([]lms.EnrolledCohort, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cohorts, err := r.cohorts.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range cohorts {
		m := idx[c.ID]
		out = append(out, lms.EnrolledCohort{Cohort: c, Roles: m.Roles, Label: c.Name + m.RoleLabel()})
		delete(idx, c.ID)
	}
	for id := range idx {
		logger.Warn("lms: course %d lists unknown class %d", courseID, id)
	}
	return out, nil
}

func (r *CourseEnrollmentRepo) userRoster(ctx context.Context, courseID lms.ID) ([]lms.EnrolledUser, error) {
	if err := r.ensure(ctx, courseID, lms.MemberUser); err != nil {
		return nil, err
	}
	idx, ids := byMember(r.cached(courseID, lms.MemberUser))
	out := make([]lms.EnrolledUser, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := r.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		m := idx[u.ID]
		out = append(out, lms.EnrolledUser{User: u, Roles: m.Roles, Label: u.Fullname + m.RoleLabel()})
		delete(idx, u.ID)
	}
	for id := range idx {
		logger.Warn("lms: course %d lists unknown user %d", courseID, id)
	}
	return out, nil
}
