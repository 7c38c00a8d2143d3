package models

import "strings"

// FilterStreamers returns the streamers whose name or platform contains query, case-insensitively.
// The input slice is never modified. An empty query returns a copy of all entries.
func FilterStreamers(list []Streamer, query string) []Streamer {
	q := strings.ToLower(query)
	out := make([]Streamer, 0, len(list))
	for _, s := range list {
		if strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(string(s.Platform)), q) {
			out = append(out, s)
		}
	}
	return out
}

// FilterRecordings matches query against the streamer name and the recording id.
func FilterRecordings(list []Recording, query string) []Recording {
	out := make([]Recording, 0, len(list))
	for _, r := range list {
		if strings.Contains(r.StreamerName, query) || strings.Contains(r.ID, query) {
			out = append(out, r)
		}
	}
	return out
}
