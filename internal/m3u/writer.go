// SPDX-License-Identifier: MIT

package m3u

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/google/renameio/v2"
)

// WriteM3U serializes channels back into EXTM3U form, preserving the
// attributes the parser recognizes. Empty attributes are omitted.
func WriteM3U(w io.Writer, channels []Channel) error {
	buf := &bytes.Buffer{}
	buf.WriteString("#EXTM3U\n")
	for _, ch := range channels {
		buf.WriteString("#EXTINF:")
		buf.WriteString(strconv.FormatFloat(ch.Duration, 'f', -1, 64))
		writeAttr(buf, "tvg-id", ch.TvgID)
		writeAttr(buf, "tvg-name", ch.TvgName)
		writeAttr(buf, "tvg-logo", ch.Logo)
		writeAttr(buf, "tvg-country", ch.Country)
		writeAttr(buf, "tvg-language", ch.Language)
		writeAttr(buf, "group-title", ch.Group)
		if ch.Radio {
			writeAttr(buf, "radio", "true")
		}
		fmt.Fprintf(buf, ",%s\n%s\n", ch.Title, ch.URL)
	}
	_, err := io.Copy(w, buf)
	return err
}

// WriteFile atomically writes the playlist to path, so readers never see a
// half-written file.
func WriteFile(path string, channels []Channel) error {
	buf := &bytes.Buffer{}
	if err := WriteM3U(buf, channels); err != nil {
		return err
	}
	return renameio.WriteFile(path, buf.Bytes(), 0o644)
}

func writeAttr(buf *bytes.Buffer, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(buf, " %s=%q", key, value)
}
