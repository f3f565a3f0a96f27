package settings

import (
	"context"
	"encoding/json"

	"github.com/connectbox/console/pkg/common/apiclient"
)

const ResultsPerPage = 5

type Hit struct {
	Resource string `json:"resource"`
	Count    int    `json:"count"`
}

// TopTen maps a period ("year", "month", "week", "day", "hour") to its most
// requested resources.
type TopTen map[string][]Hit

type Period struct {
	Date  string `json:"date"`
	Stats []Hit  `json:"stats"`
}

// Stats maps a period type to its periods, newest first.
type Stats map[string][]Period

func (s *Service) TopTen(ctx context.Context, token string) (TopTen, error) {
	raw, err := s.api.Get(ctx, "topten", token)
	if err != nil {
		return nil, failure(err, "Unable to retrieve the top ten report.")
	}
	out := TopTen{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, failure(&apiclient.HTTPError{Status: 200, Body: string(raw)}, "Unable to retrieve the top ten report.")
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context, token string) (Stats, error) {
	raw, err := s.api.Get(ctx, "stats", token)
	if err != nil {
		return nil, failure(err, "Unable to retrieve the usage statistics.")
	}
	out := Stats{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, failure(&apiclient.HTTPError{Status: 200, Body: string(raw)}, "Unable to retrieve the usage statistics.")
	}
	return out, nil
}

// StatsPage is one page of a selected statistics period.
type StatsPage struct {
	PeriodType string   `json:"periodType"`
	Periods    []string `json:"periods"`
	Period     int      `json:"period"`
	Page       int      `json:"page"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Total      int      `json:"total"`
	HasPrev    bool     `json:"hasPrev"`
	HasNext    bool     `json:"hasNext"`
	Items      []Hit    `json:"items"`
}

// Select picks a period of periodType ("year" when empty) and returns one
// page of it. Out of range periods yield an empty page; pages are clamped.
func (st Stats) Select(periodType string, period, page int) StatsPage {
	if periodType == "" {
		periodType = "year"
	}
	periods := st[periodType]
	out := StatsPage{PeriodType: periodType, Periods: make([]string, 0, len(periods)), Period: period, Items: []Hit{}}
	for _, p := range periods {
		out.Periods = append(out.Periods, p.Date)
	}
	var hits []Hit
	if period >= 0 && period < len(periods) {
		hits = periods[period].Stats
	}
	return paginate(out, hits, page)
}

func paginate(out StatsPage, hits []Hit, page int) StatsPage {
	total := len(hits)
	if page < 0 {
		page = 0
	}
	if last := (total - 1) / ResultsPerPage; total > 0 && page > last {
		page = last
	}
	start := page * ResultsPerPage
	end := start + ResultsPerPage
	if end > total {
		end = total
	}
	out.Page = page
	out.Total = total
	out.HasPrev = page > 0
	out.HasNext = end < total
	if total > 0 {
		out.Items = hits[start:end]
		out.Start = start + 1
	}
	out.End = end
	return out
}
