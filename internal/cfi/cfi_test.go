package cfi

import "testing"

func TestParsePoint(t *testing.T) {
	c, err := Parse("epubcfi(/6/4[chap01ref]!/4[body01]/10[para05]/3:10)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.IsRange {
		t.Fatal("point parsed as range")
	}
	loc := c.StartLocation()
	if len(loc.Steps) != 5 {
		t.Fatalf("steps = %d, want 5", len(loc.Steps))
	}
	if loc.Steps[1].ID != "chap01ref" || !loc.Steps[2].Indirect {
		t.Errorf("unexpected steps: %+v", loc.Steps)
	}
	if !loc.HasOffset || loc.Offset != 10 {
		t.Errorf("offset = %d (%v), want 10", loc.Offset, loc.HasOffset)
	}
	if got := loc.String(); got != "/6/4[chap01ref]!/4[body01]/10[para05]/3:10" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseAssertionsAndEscapes(t *testing.T) {
	c, err := Parse("epubcfi(/6/4[ch^]1]!/4/2/1:3[;s=a])")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id := c.Parent.Steps[1].ID; id != "ch]1" {
		t.Errorf("escaped id = %q", id)
	}
	if c.Parent.Offset != 3 {
		t.Errorf("offset = %d", c.Parent.Offset)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "/6/4", "epubcfi(/6/x)", "epubcfi(/6,/1)"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded", s)
		}
	}
}

func TestSplit(t *testing.T) {
	start, end := Split("epubcfi(/6/4[c1]!/4/2,/1:5,/3:20)")
	if start != "epubcfi(/6/4[c1]!/4/2/1:5)" {
		t.Errorf("start = %q", start)
	}
	if end != "epubcfi(/6/4[c1]!/4/2/3:20)" {
		t.Errorf("end = %q", end)
	}

	p := "epubcfi(/6/2!/4/1:0)"
	if s, e := Split(p); s != p || e != p {
		t.Errorf("Split(point) = %q, %q", s, e)
	}
}

func TestRangeRoundTrip(t *testing.T) {
	r := Range("/6/4!/4/2", "/1:5", "/1:9")
	c, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse(%q): %v", r, err)
	}
	if !c.IsRange || c.StartLocation().Offset != 5 || c.EndLocation().Offset != 9 {
		t.Errorf("unexpected range %+v", c)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"epubcfi(/6/4!/4/2/1:5)", "epubcfi(/6/4!/4/2/1:5)", 0},
		{"epubcfi(/6/4!/4/2/1:5)", "epubcfi(/6/4!/4/2/1:6)", -1},
		{"epubcfi(/6/6!/4/2/1:0)", "epubcfi(/6/4!/4/2/1:90)", 1},
		{"epubcfi(/6/4!/4/10/1:0)", "epubcfi(/6/4!/4/8/1:0)", 1},
		// numeric, not lexical, step order
		{"epubcfi(/6/4!/4/2/1:0)", "epubcfi(/6/4!/4/10/1:0)", -1},
		// ancestor first
		{"epubcfi(/6/4!/4/2)", "epubcfi(/6/4!/4/2/1:0)", -1},
		// only range starts matter
		{"epubcfi(/6/4!/4/2,/1:5,/1:9)", "epubcfi(/6/4!/4/2,/1:5,/3:1)", 0},
		{"epubcfi(/6/4!/4/2,/1:5,/9:9)", "epubcfi(/6/4!/4/2/1:6)", -1},
		// invalid sorts last
		{"bogus", "epubcfi(/6/4!/4/2/1:0)", 1},
		{"epubcfi(/6/4!/4/2/1:0)", "bogus", -1},
		{"a", "b", -1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := Compare(tt.b, tt.a); got != -tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
		}
	}
}
