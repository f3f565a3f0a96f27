// Package remote implements the LMS repositories on top of the appliance API.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/connectbox/console/pkg/common/apiclient"
	"github.com/connectbox/console/pkg/common/apperror"
	"github.com/connectbox/console/pkg/common/logger"
	"github.com/connectbox/console/pkg/repositories/lms"
)

// API is the part of the appliance client the repositories need.
type API interface {
	Get(ctx context.Context, path, token string) (json.RawMessage, error)
	Put(ctx context.Context, path, token string, payload any) (json.RawMessage, error)
	Post(ctx context.Context, path, token string, payload any) (json.RawMessage, error)
	Delete(ctx context.Context, path, token string) (json.RawMessage, error)
}

var _ API = (*apiclient.Client)(nil)

const (
	msgServer          = "Something went wrong on the LMS server."
	msgCourseNotFound  = "The course could not be found."
	msgClassNotFound   = "The class could not be found."
	msgLoadUsers       = "Unable to retrieve the users from the API."
	msgLoadCourses     = "Unable to retrieve the courses from the API."
	msgLoadClasses     = "Unable to retrieve the classes from the API."
	msgCreateUser      = "Sorry, we were unable to create the new user."
	msgFetchUser       = "Sorry, we were unable to retrieve the user."
	msgUpdateUser      = "Sorry, we were unable to update the user."
	msgDeleteUser      = "Sorry, we were unable to delete the user."
	msgUpdateCourse    = "Sorry, we were unable to update the course."
	msgDeleteCourse    = "Sorry, we were unable to delete the course."
	msgCreateClass     = "Sorry, we were unable to create the new class."
	msgUpdateClass     = "Sorry, we were unable to update the class."
	msgDeleteClass     = "Sorry, we were unable to delete the class."
	msgClassRoster     = "Sorry, we were unable to retrieve the class roster."
	msgRosterClasses   = "Sorry, we were unable to retrieve classes for the course roster."
	msgRosterUsers     = "Sorry, we were unable to retrieve users for the course roster."
	msgEnrollInClass   = "Sorry, we were unable to add the user to the class."
	msgUnenrollInClass = "Sorry, we were unable to remove the user from the class."
)

func msgEnroll(t lms.MemberType) string {
	return "Sorry, we were unable to enroll the " + t.Noun() + " in the course."
}

func msgUnenroll(t lms.MemberType) string {
	return "Sorry, we were unable to unenroll the " + t.Noun() + " from the course."
}

// remoteError turns a failed call into the repository error shape. The
// appliance status is kept as the code; transport failures become 502.
// Cancellation is passed through untouched.
func remoteError(err error, msg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var le *apperror.Error
	if errors.As(err, &le) {
		return err
	}
	code := apiclient.StatusOf(err)
	if code == 0 {
		code = http.StatusBadGateway
	}
	logger.Warn("lms: %s: %v", msg, err)
	return apperror.Remote(code, msg, err)
}

// unexpected reports a body that decoded fine but did not carry what the call
// promises. Moodle's debuginfo wins over the generic message.
func unexpected(raw json.RawMessage, code int) error {
	if info, ok := apiclient.DebugInfo(raw); ok {
		return &apperror.Error{Code: 0, Errors: []string{info}}
	}
	return &apperror.Error{Code: code, Errors: []string{msgServer}}
}
