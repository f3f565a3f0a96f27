package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/connectbox/console/pkg/common/apiclient"
	"github.com/connectbox/console/pkg/common/apperror"
	"github.com/connectbox/console/pkg/common/logger"
	"github.com/connectbox/console/pkg/repositories/lms"
)

// CohortEnrollmentRepo caches which users belong to which class.
type CohortEnrollmentRepo struct {
	api     API
	token   string
	users   lms.UsersRepository
	cohorts lms.CohortsRepository

	mu      sync.RWMutex
	members map[lms.ID]map[lms.ID]struct{}
	flight  singleflight.Group
}

var _ lms.CohortEnrollmentRepository = (*CohortEnrollmentRepo)(nil)

func NewCohortEnrollmentRepo(api API, token string, users lms.UsersRepository, cohorts lms.CohortsRepository) *CohortEnrollmentRepo {
	r := &CohortEnrollmentRepo{
		api:     api,
		token:   token,
		users:   users,
		cohorts: cohorts,
		members: make(map[lms.ID]map[lms.ID]struct{}),
	}
	onDelete(cohorts, r.forgetCohort)
	onDelete(users, r.forgetUser)
	return r
}

func (r *CohortEnrollmentRepo) forgetCohort(cohortID lms.ID) {
	r.mu.Lock()
	delete(r.members, cohortID)
	r.mu.Unlock()
}

func (r *CohortEnrollmentRepo) forgetUser(userID lms.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, set := range r.members {
		delete(set, userID)
	}
}

// Roster returns the users of the class sorted like the users repository.
func (r *CohortEnrollmentRepo) Roster(ctx context.Context, cohortID lms.ID) ([]*lms.User, error) {
	if err := r.ensure(ctx, cohortID); err != nil {
		return nil, err
	}
	return r.users.FindByIDs(ctx, r.memberIDs(cohortID))
}

func (r *CohortEnrollmentRepo) IsEnrolled(ctx context.Context, cohortID, userID lms.ID) (bool, error) {
	if err := r.ensure(ctx, cohortID); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[cohortID][userID]
	return ok, nil
}

func (r *CohortEnrollmentRepo) Enroll(ctx context.Context, cohortID, userID lms.ID) (bool, error) {
	if cohortID == 0 || userID == 0 {
		return false, nil
	}
	enrolled, err := r.IsEnrolled(ctx, cohortID, userID)
	if err != nil {
		return false, err
	}
	if enrolled {
		return true, nil
	}
	raw, err := r.api.Put(ctx, fmt.Sprintf("lms/classes/%d/users/%d", cohortID, userID), r.token, map[string]any{})
	if err != nil {
		return false, remoteError(err, msgEnrollInClass)
	}
	if c := apiclient.Confirm(raw, "enrolled", "added"); !c.OK() {
		logger.Debug("lms: add user %d to class %d: %s %q", userID, cohortID, c.Outcome, c.Message)
		return false, nil
	}
	r.mu.Lock()
	if set, ok := r.members[cohortID]; ok {
		set[userID] = struct{}{}
	}
	r.mu.Unlock()
	return true, nil
}

func (r *CohortEnrollmentRepo) Unenroll(ctx context.Context, cohortID, userID lms.ID) (bool, error) {
	if cohortID == 0 || userID == 0 {
		return false, nil
	}
	enrolled, err := r.IsEnrolled(ctx, cohortID, userID)
	if err != nil {
		return false, err
	}
	if !enrolled {
		return true, nil
	}
	raw, err := r.api.Delete(ctx, fmt.Sprintf("lms/classes/%d/users/%d", cohortID, userID), r.token)
	if err != nil {
		return false, remoteError(err, msgUnenrollInClass)
	}
	if c := apiclient.Confirm(raw, "unenrolled", "removed"); !c.OK() {
		logger.Debug("lms: remove user %d from class %d: %s %q", userID, cohortID, c.Outcome, c.Message)
		return false, nil
	}
	r.mu.Lock()
	delete(r.members[cohortID], userID)
	r.mu.Unlock()
	return true, nil
}

func (r *CohortEnrollmentRepo) memberIDs(cohortID lms.ID) []lms.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]lms.ID, 0, len(r.members[cohortID]))
	for id := range r.members[cohortID] {
		ids = append(ids, id)
	}
	return ids
}

// ensure loads the class membership once. The class must exist in the
// cohorts repository on every call, cached membership or not.
func (r *CohortEnrollmentRepo) ensure(ctx context.Context, cohortID lms.ID) error {
	if cohortID == 0 {
		return apperror.Remote(http.StatusNotFound, msgClassNotFound, nil)
	}
	cohort, err := r.cohorts.Find(ctx, cohortID)
	if err != nil {
		return err
	}
	if cohort == nil {
		r.forgetCohort(cohortID)
		return apperror.Remote(http.StatusNotFound, msgClassNotFound, nil)
	}
	r.mu.RLock()
	_, done := r.members[cohortID]
	r.mu.RUnlock()
	if done {
		return nil
	}
	ch := r.flight.DoChan(fmt.Sprint(cohortID), func() (any, error) {
		r.mu.RLock()
		_, done := r.members[cohortID]
		r.mu.RUnlock()
		if done {
			return nil, nil
		}
		ids, err := r.fetch(context.WithoutCancel(ctx), cohortID)
		if err != nil {
			return nil, err
		}
		set := make(map[lms.ID]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		r.mu.Lock()
		r.members[cohortID] = set
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

// fetch reads GET lms/classes/:id/users, answered with [] for an empty class
// or [{"userids": [...]}].
func (r *CohortEnrollmentRepo) fetch(ctx context.Context, cohortID lms.ID) ([]lms.ID, error) {
	raw, err := r.api.Get(ctx, fmt.Sprintf("lms/classes/%d/users", cohortID), r.token)
	if err != nil {
		return nil, remoteError(err, msgClassRoster)
	}
	var body []struct {
		UserIDs []lms.ID `json:"userids"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, remoteError(&apiclient.HTTPError{Status: 200, Body: string(raw)}, msgClassRoster)
	}
	var ids []lms.ID
	for _, b := range body {
		ids = append(ids, b.UserIDs...)
	}
	return ids, nil
}
