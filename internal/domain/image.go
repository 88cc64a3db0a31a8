package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a remote image generation job.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobSucceeded JobStatus = "SUCCEED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)

// Terminal reports whether no further polling can change the status.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// ImageJob represents a server-side image generation job
type ImageJob struct {
	ID           string
	Status       JobStatus
	ResultURL    string
	ErrorMessage string
}

// ImageAsset is an encoded image ready to be stored.
type ImageAsset struct {
	Bytes  []byte
	Width  int
	Height int
	Format string
}

// AssetID is the name under which an asset was saved.
type AssetID string

const (
	// AssetPrefix marks generated, prunable asset names.
	AssetPrefix = "poetry_image_"
	// FallbackAssetID is the shared placeholder returned after total exhaustion.
	FallbackAssetID AssetID = "default_poetry_image.jpg"
	// CanonicalFormat is the format every stored asset is re-encoded to.
	CanonicalFormat = "jpeg"
)

// NewAssetID returns a random, collision-resistant asset name.
func NewAssetID() AssetID {
	return AssetID(fmt.Sprintf("%s%s.jpg", AssetPrefix, strings.ReplaceAll(uuid.NewString(), "-", "")))
}

// Generated reports whether the id was produced by NewAssetID.
func (id AssetID) Generated() bool {
	return strings.HasPrefix(string(id), AssetPrefix)
}
