// Package secrets maps account secret refs onto backend keys.
package secrets

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Scheme prefixes every secret ref written by the account service.
const Scheme = "octoflex://"

var ErrInvalidRef = errors.New("invalid secret ref")

// KeyPath turns a ref such as octoflex://A-1234ABCD/password into the
// slash separated key octoflex/A-1234ABCD/password. Refs without the scheme
// are taken as plain keys.
func KeyPath(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRef)
	}

	if rest, ok := strings.CutPrefix(trimmed, Scheme); ok {
		trimmed = "octoflex/" + rest
	} else if strings.Contains(trimmed, "://") {
		return "", fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidRef, ref)
	}

	cleaned := path.Clean(trimmed)
	if path.IsAbs(cleaned) || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}

	return cleaned, nil
}
