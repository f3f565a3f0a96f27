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

type CoursesRepo struct {
	deleteHooks

	api     API
	token   string
	courses *collection[lms.Course]
}

var _ lms.CoursesRepository = (*CoursesRepo)(nil)

func NewCoursesRepo(api API, token string) *CoursesRepo {
	r := &CoursesRepo{api: api, token: token}
	r.courses = newCollection(
		func(c *lms.Course) lms.ID { return c.ID },
		func(c *lms.Course) string { return c.Fullname },
		r.fetchAll,
	)
	return r
}

func (r *CoursesRepo) fetchAll(ctx context.Context) ([]*lms.Course, error) {
	raw, err := r.api.Get(ctx, "lms/courses", r.token)
	if err != nil {
		return nil, remoteError(err, msgLoadCourses)
	}
	var courses []*lms.Course
	if err := json.Unmarshal(raw, &courses); err != nil {
		return nil, remoteError(&apiclient.HTTPError{Status: 200, Body: string(raw)}, msgLoadCourses)
	}
	out := courses[:0]
	for _, c := range courses {
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *CoursesRepo) All(ctx context.Context) ([]*lms.Course, error) {
	return r.courses.load(ctx)
}

func (r *CoursesRepo) Find(ctx context.Context, id lms.ID) (*lms.Course, error) {
	if id == 0 {
		return nil, nil
	}
	return r.courses.find(ctx, id)
}

func (r *CoursesRepo) FindByIDs(ctx context.Context, ids []lms.ID) ([]*lms.Course, error) {
	return r.courses.findByIDs(ctx, ids)
}

func (r *CoursesRepo) Update(ctx context.Context, id lms.ID, in lms.CourseInput) (*lms.Course, error) {
	if id == 0 {
		return nil, nil
	}
	if errs := validation.Struct(in); len(errs) > 0 {
		return nil, apperror.Invalid(errs...)
	}
	if _, err := r.courses.load(ctx); err != nil {
		return nil, err
	}
	raw, err := r.api.Put(ctx, fmt.Sprintf("lms/courses/%d", id), r.token, in)
	if err != nil {
		return nil, remoteError(err, msgUpdateCourse)
	}
	if !apiclient.Confirm(raw, "updated").OK() {
		return nil, unexpected(raw, 0)
	}
	c := &lms.Course{ID: id, Fullname: in.Fullname, Shortname: in.Shortname, Summary: in.Summary}
	r.courses.put(c)
	return c, nil
}

func (r *CoursesRepo) Delete(ctx context.Context, id lms.ID) (bool, error) {
	if id == 0 {
		return false, nil
	}
	if _, err := r.courses.load(ctx); err != nil {
		return false, err
	}
	raw, err := r.api.Delete(ctx, fmt.Sprintf("lms/courses/%d", id), r.token)
	if err != nil {
		return false, remoteError(err, msgDeleteCourse)
	}
	if !apiclient.Confirm(raw, "deleted").OK() {
		return false, unexpected(raw, 200)
	}
	r.courses.remove(id)
	r.deleted(id)
	return true, nil
}
