// Package objectstore abstracts the blob storage used by data_processing
// nodes that upload generated media: an opaque upload(bytes) -> url contract.
package objectstore

import "context"

// Store uploads blobs and returns publicly addressable URLs.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
