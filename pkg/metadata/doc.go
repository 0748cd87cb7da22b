// Package metadata extracts caption, hashtags, mentions, engagement and
// author details from extractor output and stores them as a JSON sidecar
// at {download_dir}/{id}/{id}_metadata.json.
package metadata
