// Package tle maintains the two-line element sets the interference scanner
// works from: fetching them from a Celestrak-style endpoint, parsing the
// 3-line text format, caching datasets on disk and serving the current
// dataset lock-free to readers.
package tle

import "time"

// Entry is one satellite's two-line element set.
type Entry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// EpochRange spans the oldest and newest element epochs in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is a complete element set from one source at one fetch instant.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []Entry
}

// Range computes the epoch span of a batch of entries. The zero EpochRange
// is returned for an empty batch.
func Range(entries []Entry) EpochRange {
	var r EpochRange
	for i, e := range entries {
		if i == 0 || e.Epoch.Before(r.Min) {
			r.Min = e.Epoch
		}
		if i == 0 || e.Epoch.After(r.Max) {
			r.Max = e.Epoch
		}
	}
	return r
}
