// SPDX-License-Identifier: MIT

// Package epg loads XMLTV program guides and answers now/next queries for
// catalog channels.
package epg

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// maxXMLSize bounds guide documents. 50MB covers multi-week guides for
// large playlists.
const maxXMLSize = 50 * 1024 * 1024

// TV is the XMLTV document root.
type TV struct {
	XMLName   xml.Name    `xml:"tv"`
	Generator string      `xml:"generator-info-name,attr,omitempty"`
	Channels  []Channel   `xml:"channel"`
	Programs  []Programme `xml:"programme"`
}

// Channel is one XMLTV channel declaration.
type Channel struct {
	ID          string   `xml:"id,attr"`
	DisplayName []string `xml:"display-name"`
	Icon        *Icon    `xml:"icon,omitempty"`
}

type Icon struct {
	Src string `xml:"src,attr"`
}

// Programme is one guide entry.
type Programme struct {
	Start   string `xml:"start,attr"`
	Stop    string `xml:"stop,attr"`
	Channel string `xml:"channel,attr"`
	Title   Title  `xml:"title"`
	Desc    string `xml:"desc,omitempty"`
}

type Title struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

const xmltvTimeLayout = "20060102150405 -0700"

// ParseTime parses an XMLTV timestamp. The timezone suffix is optional;
// bare timestamps are read as UTC.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(xmltvTimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("20060102150405", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse xmltv time %q: %w", s, err)
	}
	return t, nil
}

// Decode reads an XMLTV document from r. Parsing is strict and entity
// expansion is disabled; the reader is capped at maxXMLSize.
func Decode(r io.Reader) (*TV, error) {
	dec := xml.NewDecoder(io.LimitReader(r, maxXMLSize))
	dec.Strict = true
	dec.Entity = make(map[string]string)

	var doc TV
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode xmltv: %w", err)
	}
	return &doc, nil
}

// LoadFile decodes the XMLTV document at path.
func LoadFile(path string) (*TV, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
