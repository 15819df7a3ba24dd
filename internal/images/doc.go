// Package images resolves a job's declared image identifiers to encoded
// bytes for classification, including credentialed remote fetches and
// payload-bounding downscale.
package images
