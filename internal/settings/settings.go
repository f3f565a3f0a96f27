// Package settings reads and writes appliance properties and runs the
// system actions exposed by the admin API.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/connectbox/console/pkg/common/apiclient"
	"github.com/connectbox/console/pkg/common/apperror"
	"github.com/connectbox/console/pkg/common/logger"
	"github.com/connectbox/console/pkg/common/validation"
)

// API is the part of the appliance client the settings service needs.
type API interface {
	Get(ctx context.Context, path, token string) (json.RawMessage, error)
	Put(ctx context.Context, path, token string, payload any) (json.RawMessage, error)
}

var _ API = (*apiclient.Client)(nil)

// PlainKeys are the properties read with GET <key>.
var PlainKeys = []string{
	"apssid", "appassphrase", "apchannel", "clientwificonnection",
	"connectedclients", "logsources", "disable_chat", "disable_stats",
	"ismoodle", "coursesonusb", "subscriptions", "clientwifiscan",
	"clientssid", "clientpassphrase", "clientcountry", "hostname",
}

// BrandKeys are the properties read with GET brand/<key> and written
// through PUT brand.
var BrandKeys = []string{
	"server_url", "server_sitename", "server_authorization",
	"server_siteadmin_name", "server_siteadmin_email",
	"server_siteadmin_phone", "server_siteadmin_country",
	"otg_enable", "g_device", "enable_mass_storage", "usb0nomount",
	"lcd_pages_main", "lcd_pages_info", "lcd_pages_battery",
	"lcd_pages_multi_bat", "lcd_pages_memory", "lcd_pages_stats",
	"lcd_pages_admin",
}

// switchPaths are the read paths whose values render through Switch.
var switchPaths = map[string]bool{
	"disable_chat": true, "disable_stats": true, "brand/usb0nomount": true,
	"brand/lcd_pages_main": true, "brand/lcd_pages_info": true,
	"brand/lcd_pages_battery": true, "brand/lcd_pages_multi_bat": true,
	"brand/lcd_pages_memory": true, "brand/lcd_pages_stats": true,
	"brand/lcd_pages_admin": true,
}

// IsSwitch reports whether the property read at path is an on/off switch.
func IsSwitch(path string) bool { return switchPaths[path] }

// Groups are the properties submitted together, in order.
var Groups = map[string][]string{
	"wap":         {"apssid", "apchannel", "appassphrase", "wifirestart"},
	"client_wifi": {"clientssid", "clientpassphrase", "clientcountry", "wifirestart"},
}

var successMessages = map[string]string{
	"openwell-download": "Downloading & Installing Now",
	"course-download":   "Downloading & Installing Now",
	"coursedownload":    "Downloading & Installing Now",
	"courseusb":         "Installing Course",
	"wipe":              "The SD card is being wiped",
	"wap":               "SSID, Channel and wpa-passphrase have been successfully updated",
	"client_wifi":       "SSID, Password and country code have been successfully updated",
}

// SuccessMessage is the confirmation shown after name was written.
func SuccessMessage(name string) string {
	if msg, ok := successMessages[name]; ok {
		return msg
	}
	return name + " has been updated"
}

// Field is one property write.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type Service struct {
	api         API
	concurrency int
}

func New(api API) *Service {
	return &Service{api: api, concurrency: 8}
}

// BrandPath returns the read path of a brand key.
func BrandPath(key string) string { return "brand/" + key }

func (s *Service) Get(ctx context.Context, token, key string) (json.RawMessage, error) {
	raw, err := s.api.Get(ctx, key, token)
	if err != nil {
		return nil, failure(err, "Unable to Retrieve From Database: "+key)
	}
	return raw, nil
}

// Snapshot holds the values read by Load. Keys that failed are listed in
// Errors instead of Values.
type Snapshot struct {
	Values map[string]json.RawMessage `json:"values"`
	Errors map[string]string          `json:"errors"`
}

// Load reads keys concurrently. Individual failures are collected in the
// snapshot; an expired session aborts the whole load.
func (s *Service) Load(ctx context.Context, token string, keys []string) (*Snapshot, error) {
	snap := &Snapshot{Values: map[string]json.RawMessage{}, Errors: map[string]string{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			raw, err := s.api.Get(gctx, key, token)
			if apiclient.IsUnauthorized(err) {
				return failure(err, "Unable to Retrieve From Database: "+key)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("settings: load %s: %v", key, err)
				snap.Errors[key] = "Unable to Retrieve From Database: " + key
				return nil
			}
			snap.Values[key] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Set writes PUT <name> {"value": value}.
func (s *Service) Set(ctx context.Context, token, name string, value any) (string, error) {
	if _, err := s.api.Put(ctx, name, token, map[string]any{"value": value}); err != nil {
		return "", failure(err, fmt.Sprintf("Unable to update %s", name))
	}
	return SuccessMessage(name), nil
}

// SetBrand writes one brand key as PUT brand {"value": "key=value"}.
func (s *Service) SetBrand(ctx context.Context, token, key string, value any) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", apperror.Invalid("brand key is a required field")
	}
	payload := map[string]string{"value": fmt.Sprintf("%s=%v", key, value)}
	if _, err := s.api.Put(ctx, "brand", token, payload); err != nil {
		return "", failure(err, fmt.Sprintf("Unable to update %s", key))
	}
	return SuccessMessage(key), nil
}

// SetPassword changes the admin password once the confirmation matches.
func (s *Service) SetPassword(ctx context.Context, token, password, confirm string) (string, error) {
	if errs := validation.Confirm(password, confirm); errs != nil {
		return "", apperror.Invalid(errs...)
	}
	if strings.TrimSpace(password) == "" {
		return "", apperror.Invalid("password is a required field")
	}
	return s.Set(ctx, token, "password", password)
}

// SetSequential writes the fields one at a time, each PUT waiting for the
// previous one. It stops at the first failure and reports which field failed.
func (s *Service) SetSequential(ctx context.Context, token string, fields []Field) error {
	for i, f := range fields {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.api.Put(ctx, f.Name, token, map[string]any{"value": f.Value}); err != nil {
			logger.Warn("settings: field %d/%d (%s) failed: %v", i+1, len(fields), f.Name, err)
			return failure(err, fmt.Sprintf("Unable to update %s", f.Name))
		}
	}
	return nil
}

// SetGroup submits a named group. values must hold every member of the group
// except "wifirestart", which defaults to 1.
func (s *Service) SetGroup(ctx context.Context, token, group string, values map[string]any) (string, error) {
	names, ok := Groups[group]
	if !ok {
		return "", apperror.Invalid(fmt.Sprintf("unknown settings group %q", group))
	}
	fields := make([]Field, 0, len(names))
	var missing []string
	for _, n := range names {
		v, ok := values[n]
		if !ok && n == "wifirestart" {
			v, ok = 1, true
		}
		if !ok {
			missing = append(missing, n+" is a required field")
			continue
		}
		fields = append(fields, Field{Name: n, Value: v})
	}
	if len(missing) > 0 {
		return "", apperror.Invalid(missing...)
	}
	if err := s.SetSequential(ctx, token, fields); err != nil {
		return "", err
	}
	return SuccessMessage(group), nil
}

// failure maps a client error onto the console error shape. Network failures
// carry 502; cancellation is passed through.
func failure(err error, msg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	code := apiclient.StatusOf(err)
	if code == 0 {
		code = http.StatusBadGateway
	}
	return apperror.Remote(code, msg, err)
}
