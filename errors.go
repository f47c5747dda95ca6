package mdview

import (
	"errors"

	"github.com/alnah/go-mdview/internal/assets"
)

// Sentinel errors for library operations.
var (
	// ErrRender indicates a pipeline stage failed. Fatal for the cycle.
	ErrRender = errors.New("render failed")

	// ErrDecode indicates a byte payload could not be decoded with its charset.
	ErrDecode = errors.New("failed to decode input")

	// ErrStaleCycle is returned by Session.Update when a newer cycle
	// superseded this one before it could be applied.
	ErrStaleCycle = errors.New("render cycle superseded")

	// ErrAssetLoad indicates the diagram engine failed to load. Non-fatal:
	// diagrams stay plain code blocks.
	ErrAssetLoad = assets.ErrAssetLoad
)

// AssetLoadError reports which asset failed to load. It matches ErrAssetLoad.
type AssetLoadError = assets.AssetLoadError
