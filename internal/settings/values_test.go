package settings

import (
	"encoding/json"
	"testing"
)

func TestText(t *testing.T) {
	cases := map[string]string{
		`["connectbox"]`: "connectbox",
		`"\"quoted\""`:   "quoted",
		`"plain"`:        "plain",
		`[]`:             "",
		`"null"`:         "",
		`6`:              "6",
		`[1234567]`:      "1234567",
		`null`:           "",
	}
	for in, want := range cases {
		if got := Text(json.RawMessage(in)); got != want {
			t.Errorf("Text(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestSwitch(t *testing.T) {
	cases := map[string]SwitchState{
		`["1"]`:    SwitchOn,
		`[1]`:      SwitchOn,
		`"\"1\""`:  SwitchOn,
		`["0"]`:    SwitchOff,
		`0`:        SwitchOff,
		`["none"]`: SwitchHidden,
		`["host"]`: SwitchHidden,
	}
	for in, want := range cases {
		if got := Switch(json.RawMessage(in)); got != want {
			t.Errorf("Switch(%s) = %v, want %v", in, got, want)
		}
	}
}

func TestStatsSelect(t *testing.T) {
	hits := make([]Hit, 12)
	for i := range hits {
		hits[i] = Hit{Resource: string(rune('a' + i)), Count: 12 - i}
	}
	st := Stats{"year": {{Date: "2024", Stats: hits}, {Date: "2023"}}}

	p := st.Select("", 0, 0)
	if p.Start != 1 || p.End != 5 || p.Total != 12 || p.HasPrev || !p.HasNext || len(p.Items) != 5 {
		t.Fatalf("page 0 = %+v", p)
	}
	if len(p.Periods) != 2 || p.Periods[0] != "2024" {
		t.Fatalf("periods = %v", p.Periods)
	}
	p = st.Select("year", 0, 2)
	if p.Start != 11 || p.End != 12 || !p.HasPrev || p.HasNext || len(p.Items) != 2 {
		t.Fatalf("page 2 = %+v", p)
	}
	p = st.Select("year", 0, 9)
	if p.Page != 2 {
		t.Fatalf("page not clamped: %+v", p)
	}
	p = st.Select("year", 5, 0)
	if p.Total != 0 || len(p.Items) != 0 || p.Start != 0 {
		t.Fatalf("out of range period = %+v", p)
	}
	p = st.Select("month", 0, 0)
	if len(p.Periods) != 0 || p.Total != 0 {
		t.Fatalf("missing type = %+v", p)
	}
}
