// Package processor converts images between formats.
//
// Raster formats go through an in-memory canvas and are re-encoded at the
// requested quality. PDF sources are rendered to a raster from their first
// page; PDF targets embed the image as a JPEG on a page of the same size.
// HEIC sources are decoded before continuing down the raster path.
package processor
