package assets

import (
	"fmt"
	"strings"
)

// maxAssetNameLen bounds asset names; names map directly to file names.
const maxAssetNameLen = 64

// ValidateAssetName checks that an asset name is safe for use as a filename.
// Returns ErrInvalidAssetName if the name is empty, too long, or contains path
// separators, dots (which could allow extension manipulation), or NUL bytes.
func ValidateAssetName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidAssetName)
	case len(name) > maxAssetNameLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidAssetName, maxAssetNameLen)
	case strings.ContainsAny(name, "/\\.\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	return nil
}
