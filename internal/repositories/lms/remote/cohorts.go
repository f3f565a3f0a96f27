package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/connectbox/console/pkg/common/apiclient"
	"github.com/connectbox/console/pkg/common/apperror"
	"github.com/connectbox/console/pkg/common/validation"
	"github.com/connectbox/console/pkg/repositories/lms"
)

// CohortsRepo manages the classes (LMS cohorts) under lms/classes.
type CohortsRepo struct {
	deleteHooks

	api     API
	token   string
	cohorts *collection[lms.Cohort]
}

var _ lms.CohortsRepository = (*CohortsRepo)(nil)

func NewCohortsRepo(api API, token string) *CohortsRepo {
	r := &CohortsRepo{api: api, token: token}
	r.cohorts = newCollection(
		func(c *lms.Cohort) lms.ID { return c.ID },
		func(c *lms.Cohort) string { return c.Name },
		r.fetchAll,
	)
	return r
}

func (r *CohortsRepo) fetchAll(ctx context.Context) ([]*lms.Cohort, error) {
	raw, err := r.api.Get(ctx, "lms/classes", r.token)
	if err != nil {
		return nil, remoteError(err, msgLoadClasses)
	}
	var cohorts []*lms.Cohort
	if err := json.Unmarshal(raw, &cohorts); err != nil {
		return nil, remoteError(&apiclient.HTTPError{Status: 200, Body: string(raw)}, msgLoadClasses)
	}
	out := cohorts[:0]
	for _, c := range cohorts {
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *CohortsRepo) All(ctx context.Context) ([]*lms.Cohort, error) {
	return r.cohorts.load(ctx)
}

func (r *CohortsRepo) Find(ctx context.Context, id lms.ID) (*lms.Cohort, error) {
	if id == 0 {
		return nil, nil
	}
	return r.cohorts.find(ctx, id)
}

func (r *CohortsRepo) FindByIDs(ctx context.Context, ids []lms.ID) ([]*lms.Cohort, error) {
	return r.cohorts.findByIDs(ctx, ids)
}

func (r *CohortsRepo) Add(ctx context.Context, in lms.CohortInput) (*lms.Cohort, error) {
	if errs := validation.Struct(in); len(errs) > 0 {
		return nil, apperror.Invalid(errs...)
	}
	if _, err := r.cohorts.load(ctx); err != nil {
		return nil, err
	}
	raw, err := r.api.Post(ctx, "lms/classes", r.token, in)
	if err != nil {
		return nil, remoteError(err, msgCreateClass)
	}
	var created []struct {
		ID lms.ID `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil || len(created) == 0 || created[0].ID == 0 {
		return nil, unexpected(raw, 0)
	}
	c := &lms.Cohort{ID: created[0].ID, Name: in.Name}
	r.cohorts.put(c)
	return c, nil
}

func (r *CohortsRepo) Update(ctx context.Context, id lms.ID, in lms.CohortInput) (*lms.Cohort, error) {
	if id == 0 {
		return nil, nil
	}
	if errs := validation.Struct(in); len(errs) > 0 {
		return nil, apperror.Invalid(errs...)
	}
	if _, err := r.cohorts.load(ctx); err != nil {
		return nil, err
	}
	raw, err := r.api.Put(ctx, fmt.Sprintf("lms/classes/%d", id), r.token, in)
	if err != nil {
		return nil, remoteError(err, msgUpdateClass)
	}
	if !apiclient.Confirm(raw, "updated").OK() {
		return nil, unexpected(raw, 0)
	}
	c := &lms.Cohort{ID: id, Name: in.Name}
	r.cohorts.put(c)
	return c, nil
}

func (r *CohortsRepo) Delete(ctx context.Context, id lms.ID) (bool, error) {
	if id == 0 {
		return false, nil
	}
	if _, err := r.cohorts.load(ctx); err != nil {
		return false, err
	}
	raw, err := r.api.Delete(ctx, fmt.Sprintf("lms/classes/%d", id), r.token)
	if err != nil {
		return false, remoteError(err, msgDeleteClass)
	}
	if !apiclient.Confirm(raw, "deleted").OK() {
		return false, unexpected(raw, 200)
	}
	r.cohorts.remove(id)
	r.deleted(id)
	return true, nil
}
