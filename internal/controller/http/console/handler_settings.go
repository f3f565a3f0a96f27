package console

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/connectbox/console/internal/settings"
	"github.com/connectbox/console/pkg/common/logger"
)

type valueRequest struct {
	Value any `json:"value"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// getSettings reads ?keys=a,b or, by default, every plain and brand key.
func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	var keys []string
	if q := strings.TrimSpace(r.URL.Query().Get("keys")); q != "" {
		for _, k := range strings.Split(q, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	} else {
		keys = append(keys, settings.PlainKeys...)
		for _, k := range settings.BrandKeys {
			keys = append(keys, settings.BrandPath(k))
		}
	}
	logger.Debug("getSettings: %d keys", len(keys))
	s := current(r)
	snap, err := s.Settings.Load(r.Context(), s.Token, keys)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	values := make(map[string]string, len(snap.Values))
	switches := map[string]settings.SwitchState{}
	for k, raw := range snap.Values {
		values[k] = settings.Text(raw)
		if settings.IsSwitch(k) {
			switches[k] = settings.Switch(raw)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": values, "switches": switches, "errors": snap.Errors})
}

func (h *Handler) putSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	logger.Debug("putSetting: key=%s", key)
	s := current(r)
	msg, err := s.Settings.Set(r.Context(), s.Token, key, req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{msg})
}

func (h *Handler) putBrand(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	logger.Debug("putBrand: key=%s", key)
	s := current(r)
	msg, err := s.Settings.SetBrand(r.Context(), s.Token, key, req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{msg})
}

type passwordRequest struct {
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

func (h *Handler) putPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decode(w, r, &req) {
		return
	}
	s := current(r)
	msg, err := s.Settings.SetPassword(r.Context(), s.Token, req.Password, req.Confirm)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logger.Info("putPassword: admin password changed")
	writeJSON(w, http.StatusOK, messageResponse{msg})
}

func (h *Handler) putGroup(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	var values map[string]any
	if !decode(w, r, &values) {
		return
	}
	logger.Debug("putGroup: group=%s fields=%d", group, len(values))
	s := current(r)
	msg, err := s.Settings.SetGroup(r.Context(), s.Token, group, values)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{msg})
}

func (h *Handler) runScript(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !settings.IsScript(name) {
		writeError(w, http.StatusNotFound, http.StatusNotFound, "Unknown system action: "+name)
		return
	}
	logger.Debug("runScript: %s", name)
	s := current(r)
	msg, err := s.Settings.RunScript(r.Context(), s.Token, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{msg})
}

func (h *Handler) topTen(w http.ResponseWriter, r *http.Request) {
	s := current(r)
	top, err := s.Settings.TopTen(r.Context(), s.Token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

// stats answers ?type=year&period=0&page=0 with one page of the report.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	s := current(r)
	st, err := s.Settings.Stats(r.Context(), s.Token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page := st.Select(r.URL.Query().Get("type"), intQuery(r, "period"), intQuery(r, "page"))
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s := current(r)
	out, err := s.Settings.Log(r.Context(), s.Token, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
