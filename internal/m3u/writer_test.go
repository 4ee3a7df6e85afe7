// SPDX-License-Identifier: MIT
package m3u

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteM3URoundTrip(t *testing.T) {
	in := []Channel{
		{
			ID: 1, URL: "http://stream.example/bbc", Title: "BBC News",
			Duration: -1, Logo: "http://logo/bbc.png", Group: "News",
			Country: "UK", Language: "English", TvgID: "bbc.uk", TvgName: "BBC",
		},
		{ID: 2, URL: "http://stream.example/radio", Title: "Radio One", Duration: -1, Group: "Music", Radio: true},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteM3U(&buf, in))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("#EXTM3U\n")))

	got := Parse(buf.String())
	require.Len(t, got, len(in))
	for i := range in {
		assert.Equal(t, in[i], got[i])
	}
}

func TestWriteM3UOmitsEmptyAttributes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteM3U(&buf, []Channel{{ID: 1, URL: "http://a", Title: "A", Duration: -1}}))
	assert.NotContains(t, buf.String(), "tvg-id=")
	assert.NotContains(t, buf.String(), "group-title=")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.m3u")
	in := []Channel{{ID: 1, URL: "http://a", Title: "A", Duration: -1, Group: "News"}}
	require.NoError(t, WriteFile(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := Parse(string(data))
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Title)
	assert.Equal(t, "News", got[0].Group)
}
