// Package model defines the data shared by the conversion pipeline: formats,
// queued records and their statuses, conversion settings, catalog tools and
// client preferences.
package model
