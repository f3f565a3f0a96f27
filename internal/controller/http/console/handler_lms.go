package console

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/connectbox/console/pkg/common/logger"
	"github.com/connectbox/console/pkg/repositories/lms"
)

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	users, err := l.Users.All(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logger.Debug("listUsers: %d users", len(users))
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	u, err := l.Users.Fetch(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, http.StatusNotFound, "The user could not be found.")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) addUser(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	var in lms.UserInput
	if !decode(w, r, &in) {
		return
	}
	u, err := l.Users.Add(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logger.Debug("addUser: created id=%d username=%s", u.ID, u.Username)
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in lms.UserInput
	if !decode(w, r, &in) {
		return
	}
	u, err := l.Users.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	deleted, err := l.Users.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) listCourses(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	courses, err := l.Courses.All(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logger.Debug("listCourses: %d courses", len(courses))
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) updateCourse(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in lms.CourseInput
	if !decode(w, r, &in) {
		return
	}
	c, err := l.Courses.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCourse(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	deleted, err := l.Courses.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) courseRoster(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	roster, err := l.CourseEnrollment.Roster(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

type enrollRequest struct {
	RoleID lms.ID `json:"roleid"`
}

// memberParams reads {id}, {type} and {memberId} of a course enrollment route.
func memberParams(w http.ResponseWriter, r *http.Request) (course, member lms.ID, t lms.MemberType, ok bool) {
	if course, ok = idParam(w, r, "id"); !ok {
		return
	}
	if member, ok = idParam(w, r, "memberId"); !ok {
		return
	}
	if t, ok = lms.ParseMemberType(chi.URLParam(r, "type")); !ok {
		writeError(w, http.StatusBadRequest, 0, "invalid member type")
	}
	return
}

// enrollInCourse takes an optional {"roleid": n}; students are the default.
func (h *Handler) enrollInCourse(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	course, member, t, ok := memberParams(w, r)
	if !ok {
		return
	}
	req := enrollRequest{RoleID: lms.RoleStudent}
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.RoleID == 0 {
		req.RoleID = lms.RoleStudent
	}
	logger.Debug("enrollInCourse: course=%d %s=%d role=%d", course, t, member, req.RoleID)
	enrolled, err := l.CourseEnrollment.Enroll(r.Context(), course, member, t, req.RoleID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enrolled": enrolled})
}

func (h *Handler) unenrollFromCourse(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	course, member, t, ok := memberParams(w, r)
	if !ok {
		return
	}
	logger.Debug("unenrollFromCourse: course=%d %s=%d", course, t, member)
	done, err := l.CourseEnrollment.Unenroll(r.Context(), course, member, t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"unenrolled": done})
}

func (h *Handler) listClasses(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	cohorts, err := l.Cohorts.All(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cohorts)
}

func (h *Handler) addClass(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	var in lms.CohortInput
	if !decode(w, r, &in) {
		return
	}
	c, err := l.Cohorts.Add(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logger.Debug("addClass: created id=%d name=%s", c.ID, c.Name)
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) updateClass(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in lms.CohortInput
	if !decode(w, r, &in) {
		return
	}
	c, err := l.Cohorts.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) deleteClass(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	deleted, err := l.Cohorts.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) classRoster(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	users, err := l.CohortEnrollment.Roster(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) enrollInClass(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	cohort, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	user, ok := idParam(w, r, "userId")
	if !ok {
		return
	}
	enrolled, err := l.CohortEnrollment.Enroll(r.Context(), cohort, user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enrolled": enrolled})
}

func (h *Handler) unenrollFromClass(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lmsRepos(w, r)
	if !ok {
		return
	}
	cohort, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	user, ok := idParam(w, r, "userId")
	if !ok {
		return
	}
	done, err := l.CohortEnrollment.Unenroll(r.Context(), cohort, user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"unenrolled": done})
}
