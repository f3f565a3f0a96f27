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

type UsersRepo struct {
	deleteHooks

	api   API
	token string
	users *collection[lms.User]
}

var _ lms.UsersRepository = (*UsersRepo)(nil)

func NewUsersRepo(api API, token string) *UsersRepo {
	r := &UsersRepo{api: api, token: token}
	r.users = newCollection(
		func(u *lms.User) lms.ID { return u.ID },
		func(u *lms.User) string { return u.Fullname },
		r.fetchAll,
	)
	return r
}

func (r *UsersRepo) fetchAll(ctx context.Context) ([]*lms.User, error) {
	raw, err := r.api.Get(ctx, "lms/users", r.token)
	if err != nil {
		return nil, remoteError(err, msgLoadUsers)
	}
	var body struct {
		Users []*lms.User `json:"users"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, remoteError(&apiclient.HTTPError{Status: 200, Body: string(raw)}, msgLoadUsers)
	}
	out := make([]*lms.User, 0, len(body.Users))
	for _, u := range body.Users {
		if u == nil {
			continue
		}
		if u.Fullname == "" {
			u.Fullname = u.Firstname + " " + u.Lastname
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *UsersRepo) All(ctx context.Context) ([]*lms.User, error) {
	return r.users.load(ctx)
}

func (r *UsersRepo) Find(ctx context.Context, id lms.ID) (*lms.User, error) {
	if id == 0 {
		return nil, nil
	}
	return r.users.find(ctx, id)
}

func (r *UsersRepo) FindByIDs(ctx context.Context, ids []lms.ID) ([]*lms.User, error) {
	return r.users.findByIDs(ctx, ids)
}

// Fetch reads GET lms/users/:id, which answers with a one element array.
func (r *UsersRepo) Fetch(ctx context.Context, id lms.ID) (*lms.User, error) {
	if id == 0 {
		return nil, nil
	}
	if _, err := r.users.load(ctx); err != nil {
		return nil, err
	}
	raw, err := r.api.Get(ctx, fmt.Sprintf("lms/users/%d", id), r.token)
	if err != nil {
		return nil, remoteError(err, msgFetchUser)
	}
	var found []*lms.User
	if err := json.Unmarshal(raw, &found); err != nil || len(found) == 0 || found[0] == nil {
		return nil, unexpected(raw, 200)
	}
	u := found[0]
	if u.Fullname == "" {
		u.Fullname = u.Firstname + " " + u.Lastname
	}
	r.users.put(u)
	return u, nil
}

func validateUser(in lms.UserInput, requirePassword bool) []string {
	errs := validation.Struct(in)
	if requirePassword || in.Password != "" {
		if in.Password == "" {
			errs = append(errs, "password is a required field")
		}
		errs = append(errs, validation.Password(in.Password)...)
	}
	return errs
}

// Add creates the user with POST lms/users. Validation failures never reach
// the appliance.
func (r *UsersRepo) Add(ctx context.Context, in lms.UserInput) (*lms.User, error) {
	if errs := validateUser(in, true); len(errs) > 0 {
		return nil, apperror.Invalid(errs...)
	}
	if _, err := r.users.load(ctx); err != nil {
		return nil, err
	}
	raw, err := r.api.Post(ctx, "lms/users", r.token, in)
	if err != nil {
		return nil, remoteError(err, msgCreateUser)
	}
	var created []struct {
		ID lms.ID `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil || len(created) == 0 || created[0].ID == 0 {
		return nil, unexpected(raw, 0)
	}
	u := lms.NewUser(created[0].ID, in.Username, in.Firstname, in.Lastname, in.Email)
	r.users.put(u)
	return u, nil
}

// Update replaces the user. Fields left empty in the input are sent empty;
// an empty password leaves the password unchanged.
func (r *UsersRepo) Update(ctx context.Context, id lms.ID, in lms.UserInput) (*lms.User, error) {
	if id == 0 {
		return nil, nil
	}
	if errs := validateUser(in, false); len(errs) > 0 {
		return nil, apperror.Invalid(errs...)
	}
	if _, err := r.users.load(ctx); err != nil {
		return nil, err
	}
	raw, err := r.api.Put(ctx, fmt.Sprintf("lms/users/%d", id), r.token, in)
	if err != nil {
		return nil, remoteError(err, msgUpdateUser)
	}
	if !apiclient.Confirm(raw, "updated").OK() {
		return nil, unexpected(raw, 0)
	}
	u := lms.NewUser(id, in.Username, in.Firstname, in.Lastname, in.Email)
	r.users.put(u)
	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id lms.ID) (bool, error) {
	if id == 0 {
		return false, nil
	}
	if _, err := r.users.load(ctx); err != nil {
		return false, err
	}
	raw, err := r.api.Delete(ctx, fmt.Sprintf("lms/users/%d", id), r.token)
	if err != nil {
		return false, remoteError(err, msgDeleteUser)
	}
	if !apiclient.Confirm(raw, "deleted").OK() {
		return false, unexpected(raw, 200)
	}
	r.users.remove(id)
	r.deleted(id)
	return true, nil
}
