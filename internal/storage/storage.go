// Package storage keeps published tier documents in object storage.
//
// The server reads the active document once at startup. relayctl writes new
// documents and keeps a copy of every published version under a history
// prefix so a bad table can be rolled back.
//
// Two backends are provided: LocalStorage for development and R2Storage
// (Cloudflare R2 through the S3 API) for production.
package storage

import (
	"context"
	"time"
)

// Store is the object store used for tier documents. Documents are small,
// so bodies are passed as byte slices bounded by MaxObjectSize.
type Store interface {
	// Put writes data at key. Without opts.Overwrite it fails with
	// ErrKeyExists when the key is taken.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error

	// Get reads the object at key, or fails with ErrNotFound.
	Get(ctx context.Context, key string) (Object, error)

	// List returns every object whose key starts with prefix, in key order.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

type PutOptions struct {
	// ContentType defaults to a guess from the key's extension.
	ContentType string
	Overwrite   bool
}

type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string // empty for local storage
}

// Object is a fetched document and its metadata.
type Object struct {
	ObjectInfo
	Data []byte
}

// LocalConfig configures filesystem storage.
type LocalConfig struct {
	// BasePath is the directory keys are resolved against, e.g. "./storage".
	BasePath string
}

// R2Config configures Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// Region defaults to "auto", the only region R2 accepts.
	Region string

	// Endpoint overrides https://<account>.r2.cloudflarestorage.com. Used to
	// point at any S3-compatible server.
	Endpoint string
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// TierDocumentKey is where the active tier document is published.
const TierDocumentKey = "pricing/tiers.yaml"

// MaxObjectSize bounds every object read or written.
const MaxObjectSize = 1 << 20
