// Package sheets downloads station logs from Google Sheets exports, either
// the CSV export endpoint or the legacy Visualization API JSON endpoint, and
// caches the raw payloads.
package sheets
