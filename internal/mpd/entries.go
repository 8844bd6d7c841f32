package mpd

import (
	"context"
	"strings"

	"vibechain/internal/core"
	"vibechain/internal/library"
)

const recordingIDTag = "MUSICBRAINZ_TRACKID"

// Entries lists every file in the MPD database as index builder input. When MPD has no
// artist or title for a file and tags is not nil, the file's own tags fill the gap.
func (c *Client) Entries(ctx context.Context, tags core.TagReader) ([]library.Entry, error) {
	var items []map[string]string
	err := c.do(ctx, func(conn Conn) error {
		all, err := conn.ListAllInfo("")
		if err != nil {
			return err
		}
		items = make([]map[string]string, 0, len(all))
		for _, attrs := range all {
			items = append(items, attrs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries := make([]library.Entry, 0, len(items))
	for _, attrs := range items {
		file := attrs["file"]
		if file == "" {
			continue
		}
		entry := library.Entry{
			File:        file,
			Artist:      strings.TrimSpace(attrs["Artist"]),
			Title:       strings.TrimSpace(attrs["Title"]),
			RecordingID: strings.TrimSpace(attrs[recordingIDTag]),
		}
		if (entry.Artist == "" || entry.Title == "") && tags != nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			local := tags.ReadTags(file)
			if entry.Artist == "" {
				entry.Artist = local.Artist
			}
			if entry.Title == "" {
				entry.Title = local.Title
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
