// Package storage lays out downloaded media on disk and manages scratch
// space.
//
// Manager gives every identifier its own directory under the download
// root. Files are named {date}_{identifier}[_{index}][_thumb].{ext}, and
// FindExisting turns a populated directory back into an Outcome so repeat
// requests never touch the network.
//
// TempStore hands out uniquely named working directories, removes them on
// a schedule and runs an optional janitor goroutine:
//
//	ts, err := storage.NewTempStore(cfg.TempDirectory(), time.Hour, log)
//	ts.StartJanitor(30 * time.Minute)
//	defer ts.Stop()
package storage
