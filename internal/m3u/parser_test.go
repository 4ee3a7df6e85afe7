// SPDX-License-Identifier: MIT
package m3u

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseWellFormed(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1 tvg-id="bbc.uk" tvg-name="BBC" tvg-logo="http://logo/bbc.png" group-title="News" tvg-country="UK" tvg-language="English",BBC News
http://stream.example/bbc
#EXTINF:-1 group-title="News",CNN
http://stream.example/cnn
#EXTINF:120.5,Short Clip
http://stream.example/clip
`
	got := Parse(content)
	want := []Channel{
		{
			ID: 1, URL: "http://stream.example/bbc", Title: "BBC News",
			Duration: -1, Logo: "http://logo/bbc.png", Group: "News",
			Country: "UK", Language: "English", TvgID: "bbc.uk", TvgName: "BBC",
		},
		{ID: 2, URL: "http://stream.example/cnn", Title: "CNN", Duration: -1, Group: "News"},
		{ID: 3, URL: "http://stream.example/clip", Title: "Short Clip", Duration: 120.5, Group: DefaultGroup},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIDsAreSequentialPerCall(t *testing.T) {
	content := "#EXTINF:-1,A\nhttp://a\n#EXTINF:-1,B\nhttp://b\n"
	for run := 0; run < 2; run++ {
		got := Parse(content)
		if len(got) != 2 {
			t.Fatalf("run %d: expected 2 channels, got %d", run, len(got))
		}
		for i, ch := range got {
			if ch.ID != i+1 {
				t.Fatalf("run %d: channel %d has id %d", run, i, ch.ID)
			}
		}
	}
}

func TestParseOrphanExtinf(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"extinf at end of file", "#EXTINF:-1,Dangling", 0},
		{"extinf followed by comment", "#EXTINF:-1,A\n#EXTVLCOPT:foo\nhttp://a\n", 0},
		{"extinf followed by blank line", "#EXTINF:-1,A\n\nhttp://a\n", 0},
		{"orphan does not eat the next entry", "#EXTINF:-1,A\n#EXTINF:-1,B\nhttp://b\n", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.content)
			if len(got) != tc.want {
				t.Fatalf("expected %d channels, got %d (%+v)", tc.want, len(got), got)
			}
		})
	}
}

func TestParseOrphanFollowedByEntryKeepsSecond(t *testing.T) {
	got := Parse("#EXTINF:-1,A\n#EXTINF:-1,B\nhttp://b\n")
	if len(got) != 1 || got[0].Title != "B" || got[0].ID != 1 {
		t.Fatalf("expected single channel B with id 1, got %+v", got)
	}
}

func TestParseAttributeDefaults(t *testing.T) {
	got := Parse("#EXTINF:-1,Some Channel\nhttp://x\n")
	if len(got) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(got))
	}
	ch := got[0]
	if ch.Title != "Some Channel" || ch.Duration != -1 || ch.Group != DefaultGroup {
		t.Fatalf("unexpected defaults: %+v", ch)
	}
	if ch.Country != "" || ch.Language != "" || ch.Radio {
		t.Fatalf("expected empty tags and radio=false: %+v", ch)
	}
}

func TestParseNoComma(t *testing.T) {
	got := Parse("#EXTINF:-1 tvg-id=\"x\"\nhttp://x\n")
	if len(got) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(got))
	}
	ch := got[0]
	// Without a comma there is no usable metadata segment: everything
	// defaults, including attributes that appear on the line.
	if ch.Title != DefaultTitle || ch.Group != DefaultGroup || ch.Duration != -1 || ch.TvgID != "" {
		t.Fatalf("expected default attributes, got %+v", ch)
	}
}

func TestParseMissingTitleDefaults(t *testing.T) {
	got := Parse("#EXTINF:-1 group-title=\"News\",\nhttp://x\n")
	if len(got) != 1 || got[0].Title != DefaultTitle || got[0].Group != "News" {
		t.Fatalf("expected default title with parsed group, got %+v", got)
	}
}

func TestParseCaseInsensitiveKeys(t *testing.T) {
	for _, line := range []string{
		`#EXTINF:-1 GROUP-TITLE="News",X`,
		`#EXTINF:-1 group-title="News",X`,
		`#EXTINF:-1 Group-Title="News",X`,
	} {
		got := Parse(line + "\nhttp://x\n")
		if len(got) != 1 || got[0].Group != "News" {
			t.Fatalf("line %q: expected group News, got %+v", line, got)
		}
	}
}

func TestParseDuplicateKeysLastWins(t *testing.T) {
	got := Parse(`#EXTINF:-1 group-title="First" group-title="Second",X` + "\nhttp://x\n")
	if len(got) != 1 || got[0].Group != "Second" {
		t.Fatalf("expected later duplicate to win, got %+v", got)
	}
}

func TestParseRadioFlag(t *testing.T) {
	tests := []struct {
		attr string
		want bool
	}{
		{`radio="true"`, true},
		{`radio="True"`, false},
		{`radio="1"`, false},
		{`radio=""`, false},
	}
	for _, tc := range tests {
		got := Parse("#EXTINF:-1 " + tc.attr + ",X\nhttp://x\n")
		if len(got) != 1 || got[0].Radio != tc.want {
			t.Fatalf("attr %s: expected radio=%v, got %+v", tc.attr, tc.want, got)
		}
	}
}

func TestParseUnknownKeysDiscarded(t *testing.T) {
	got := Parse(`#EXTINF:-1 tvg-shift="2" catchup="append" group-title="G",X` + "\nhttp://x\n")
	if len(got) != 1 || got[0].Group != "G" {
		t.Fatalf("unknown keys must not break known ones: %+v", got)
	}
}

func TestParseIgnoresHLSManifestTags(t *testing.T) {
	content := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=800000
#EXTINF:-1,Live
http://live
`
	got := Parse(content)
	if len(got) != 1 || got[0].Title != "Live" {
		t.Fatalf("expected the EXT-X-* lines to be opaque comments, got %+v", got)
	}
}
