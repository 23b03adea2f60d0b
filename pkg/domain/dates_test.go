package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDateRejectsMalformedInput(t *testing.T) {
	for _, in := range []string{"", "2024-1-5", "05/01/2024", "2024-02-30"} {
		if _, err := ParseDate(in); err == nil {
			t.Fatalf("expected error parsing %q", in)
		}
	}
	d, err := ParseDate("2024-01-05")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !d.Equal(NewDate(2024, time.January, 5)) {
		t.Fatalf("unexpected date %v", d)
	}
}

func TestDateRangeOverlapTouchingEndpoints(t *testing.T) {
	a := DateRange{Start: MustDate("2024-01-01"), End: MustDate("2024-01-05")}
	b := DateRange{Start: MustDate("2024-01-05"), End: MustDate("2024-01-10")}
	if !a.Overlaps(b) || !b.Overlaps(a) {
		t.Fatalf("expected ranges sharing an endpoint to overlap")
	}
	c := DateRange{Start: MustDate("2024-01-06"), End: MustDate("2024-01-10")}
	if a.Overlaps(c) || c.Overlaps(a) {
		t.Fatalf("expected adjacent ranges without a shared day not to overlap")
	}
}

// Every pair of valid ranges inside a two-week window is checked against a
// day-by-day intersection.
func TestDateRangeOverlapSymmetricAndExact(t *testing.T) {
	base := MustDate("2024-03-01")
	var ranges []DateRange
	for s := 0; s < 14; s++ {
		for e := s; e < 14; e++ {
			ranges = append(ranges, DateRange{Start: base.AddDays(s), End: base.AddDays(e)})
		}
	}
	for _, a := range ranges {
		for _, b := range ranges {
			if a.Overlaps(b) != b.Overlaps(a) {
				t.Fatalf("overlap not symmetric for %s and %s", a, b)
			}
			shared := false
			for d := a.Start; !d.After(a.End); d = d.AddDays(1) {
				if b.Contains(d) {
					shared = true
					break
				}
			}
			if shared != a.Overlaps(b) {
				t.Fatalf("overlap(%s, %s) = %v, day scan says %v", a, b, a.Overlaps(b), shared)
			}
		}
	}
}

func TestDateRangeValidAndDays(t *testing.T) {
	r := DateRange{Start: MustDate("2024-01-05"), End: MustDate("2024-01-07")}
	if !r.Valid() || r.Days() != 3 {
		t.Fatalf("expected valid 3-day range, got valid=%v days=%d", r.Valid(), r.Days())
	}
	inverted := DateRange{Start: r.End, End: r.Start}
	if inverted.Valid() || inverted.Days() != 0 {
		t.Fatalf("expected inverted range to be invalid")
	}
	if (DateRange{Start: r.Start}).Valid() {
		t.Fatalf("expected half-open range to be invalid")
	}
}

func TestDateJSON(t *testing.T) {
	type payload struct {
		Day  Date  `json:"day"`
		Opt  *Date `json:"opt,omitempty"`
		Zero Date  `json:"zero"`
	}
	in := payload{Day: MustDate("2024-02-29")}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"day":"2024-02-29","zero":null}` {
		t.Fatalf("unexpected json %s", data)
	}
	var out payload
	if err := json.Unmarshal([]byte(`{"day":"2024-02-29","opt":"","zero":null}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Day.Equal(in.Day) || !out.Zero.IsZero() || out.Opt == nil || !out.Opt.IsZero() {
		t.Fatalf("unexpected decode %+v", out)
	}
	if err := json.Unmarshal([]byte(`{"day":"tomorrow"}`), &out); err == nil {
		t.Fatalf("expected decode error for malformed date")
	}
}

func TestProjectCoversDate(t *testing.T) {
	start := MustDate("2024-02-01")
	end := MustDate("2024-02-10")
	cases := []struct {
		name    string
		project Project
		date    string
		want    bool
	}{
		{"inside", Project{StartDate: &start, EndDate: &end}, "2024-02-05", true},
		{"on start", Project{StartDate: &start, EndDate: &end}, "2024-02-01", true},
		{"on end", Project{StartDate: &start, EndDate: &end}, "2024-02-10", true},
		{"after", Project{StartDate: &start, EndDate: &end}, "2024-02-15", false},
		{"open end", Project{StartDate: &start}, "2030-01-01", true},
		{"open start", Project{EndDate: &end}, "2000-01-01", true},
		{"no dates", Project{}, "2024-02-05", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.project.CoversDate(MustDate(tc.date)); got != tc.want {
				t.Fatalf("CoversDate(%s) = %v, want %v", tc.date, got, tc.want)
			}
		})
	}
}

func TestTalentHasSkills(t *testing.T) {
	talent := Talent{Skills: []string{"Go", " postgres "}}
	if !talent.HasSkills([]string{"go", "Postgres"}) {
		t.Fatalf("expected case-insensitive skill match")
	}
	if talent.HasSkills([]string{"go", "rust"}) {
		t.Fatalf("expected missing skill to fail match")
	}
	if !talent.HasSkills(nil) {
		t.Fatalf("expected empty requirement to match")
	}
}
