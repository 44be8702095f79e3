package grounding

import (
	"strings"
	"testing"
)

func TestParseCoordinateTag(t *testing.T) {
	res := Parse("Visit the tower. {{LAT:48.8584, LNG:2.2945}}", nil)

	if res.CleanText != "Visit the tower." {
		t.Errorf("clean text = %q", res.CleanText)
	}
	if res.Suggested == nil {
		t.Fatal("expected suggested location")
	}
	if res.Suggested.Lat != 48.8584 || res.Suggested.Lng != 2.2945 {
		t.Errorf("suggested = %+v", *res.Suggested)
	}
	if res.Related != nil {
		t.Errorf("expected nil related, got %v", res.Related)
	}
}

func TestParseNoTag(t *testing.T) {
	input := "No location here."
	res := Parse(input, nil)
	if res.CleanText != input {
		t.Errorf("text changed: %q", res.CleanText)
	}
	if res.Suggested != nil {
		t.Errorf("unexpected suggested location %+v", *res.Suggested)
	}
}

func TestParseNegativeCoordinates(t *testing.T) {
	res := Parse("Ushuaia is far south. {{LAT:-54.8019, LNG:-68.3030}}", nil)
	if res.Suggested == nil || res.Suggested.Lat != -54.8019 || res.Suggested.Lng != -68.3030 {
		t.Fatalf("suggested = %v", res.Suggested)
	}
}

func TestParseOutOfRangeTagStillStripped(t *testing.T) {
	res := Parse("Nowhere. {{LAT:95.0, LNG:2.0}}", nil)
	if res.Suggested != nil {
		t.Errorf("out-of-range tag must not yield a location, got %+v", *res.Suggested)
	}
	if res.CleanText != "Nowhere." {
		t.Errorf("invalid tag must still be stripped, got %q", res.CleanText)
	}
}

func TestParseMultipleTagsStripsAllParsesFirst(t *testing.T) {
	res := Parse("A {{LAT:10.0, LNG:20.0}} B {{LAT:30.0, LNG:40.0}} C", nil)
	if res.Suggested == nil || res.Suggested.Lat != 10 || res.Suggested.Lng != 20 {
		t.Fatalf("first tag should win, got %v", res.Suggested)
	}
	if strings.Contains(res.CleanText, "{{") || strings.Contains(res.CleanText, "}}") {
		t.Errorf("all tags should be stripped from display text: %q", res.CleanText)
	}
}

func TestParseTagWhitespaceTrim(t *testing.T) {
	res := Parse("{{LAT:1.0, LNG:2.0}}   ", nil)
	if res.CleanText != "" {
		t.Errorf("expected empty clean text, got %q", res.CleanText)
	}
}

func TestParsePlaceCitations(t *testing.T) {
	citations := []Citation{
		{Kind: KindPlace, URI: "https://www.google.com/maps/place/Tokyo/@35.68,139.69,12z/data=!3d35.6895!4d139.6917!16s", Title: "Tokyo"},
		{Kind: KindWeb, URI: "https://en.wikipedia.org/wiki/Tokyo", Title: "Tokyo - Wikipedia"},
		{Kind: KindPlace, URI: "https://maps.google.com/?q=somewhere", Title: "No coords"},
		{Kind: KindPlace, URI: "https://www.google.com/maps/data=!3d-33.8688!4d151.2093", Title: "Sydney"},
	}
	res := Parse("Two cities.", citations)

	if len(res.Related) != 2 {
		t.Fatalf("expected 2 related locations, got %d: %v", len(res.Related), res.Related)
	}
	// Citation order preserved.
	if res.Related[0].Lat != 35.6895 || res.Related[0].Lng != 139.6917 {
		t.Errorf("first related = %+v", res.Related[0])
	}
	if res.Related[1].Lat != -33.8688 || res.Related[1].Lng != 151.2093 {
		t.Errorf("second related = %+v", res.Related[1])
	}
}

func TestParsePlaceCitationOutOfRange(t *testing.T) {
	citations := []Citation{
		{Kind: KindPlace, URI: "x!3d99.0!4d200.0y", Title: "bogus"},
	}
	res := Parse("text", citations)
	if res.Related != nil {
		t.Errorf("invalid pair must contribute nothing, got %v", res.Related)
	}
}

func TestClassifyURI(t *testing.T) {
	cases := []struct {
		uri  string
		want Kind
	}{
		{"https://www.google.com/maps/place/x/data=!3d1.0!4d2.0", KindPlace},
		{"https://maps.google.de/?q=berlin", KindPlace},
		{"https://example.com/article", KindWeb},
		{"https://en.wikipedia.org/wiki/Paris", KindWeb},
	}
	for _, tc := range cases {
		if got := ClassifyURI(tc.uri); got != tc.want {
			t.Errorf("ClassifyURI(%q) = %v, want %v", tc.uri, got, tc.want)
		}
	}
}
