package settings

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/connectbox/console/pkg/common/apiclient"
	"github.com/connectbox/console/pkg/common/apperror"
)

var scriptLabels = map[string]string{
	"openwellusb":     "Loading Content From USB",
	"openwellrefresh": "Refreshing Missing Content For OpenWell",
	"unmountusb":      "Unmounting USB",
	"shutdown":        "System shutdown",
	"reboot":          "System reboot",
	"reset":           "System reset",
	"sync":            "Sync With Server",
}

// IsScript reports whether name is a known system action.
func IsScript(name string) bool {
	_, ok := scriptLabels[name]
	return ok
}

// RunScript triggers GET do/<name> and returns the confirmation text.
func (s *Service) RunScript(ctx context.Context, token, name string) (string, error) {
	label, ok := scriptLabels[name]
	if !ok {
		return "", apperror.Invalid("Unknown system action: " + name)
	}
	if _, err := s.api.Get(ctx, "do/"+name, token); err != nil {
		return "", failure(err, label+" failed")
	}
	return label + " successfully initiated", nil
}

// Log returns the named log. "wifistatus" is served from its own endpoint.
// The appliance answers with a map of log name to text.
func (s *Service) Log(ctx context.Context, token, name string) (map[string]string, error) {
	name = strings.Trim(name, "/")
	if name == "" || strings.Contains(name, "..") {
		return nil, apperror.Invalid("A log name is required.")
	}
	path := "logs/" + name
	if name == "wifistatus" {
		path = "wifistatus"
	}
	raw, err := s.api.Get(ctx, path, token)
	if err != nil {
		return nil, failure(err, "Unable to retrieve the log "+name)
	}
	out := map[string]string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			text = string(raw)
		}
		out[name] = text
	}
	return out, nil
}

// AdminUser is the fixed account the appliance authenticates.
const AdminUser = "admin"

// Login checks password against GET ui-config and returns the token to use
// for later calls.
func (s *Service) Login(ctx context.Context, password string) (string, error) {
	token := apiclient.BasicToken(AdminUser, password)
	if _, err := s.api.Get(ctx, "ui-config", token); err != nil {
		if apiclient.IsUnauthorized(err) {
			return "", apperror.Remote(401, "Invalid password", err)
		}
		return "", failure(err, "Unable to Connect To Database")
	}
	return token, nil
}

// LMSAvailable reports whether the appliance runs Moodle (GET ismoodle).
func (s *Service) LMSAvailable(ctx context.Context, token string) (bool, error) {
	raw, err := s.api.Get(ctx, "ismoodle", token)
	if err != nil {
		return false, failure(err, "Unable to Retrieve From Database: ismoodle")
	}
	return Text(raw) == "1", nil
}
