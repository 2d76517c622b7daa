package media

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat means probing found no decodable stream.
	ErrUnsupportedFormat = errors.New("unsupported media format")
	// ErrCorruptFile means probing could not produce a valid duration.
	ErrCorruptFile = errors.New("corrupt media file")
	// ErrNotFound means no asset exists with the given ID.
	ErrNotFound = errors.New("asset not found")
)

// InUseError rejects deleting an asset that clips still reference.
type InUseError struct {
	AssetID    string
	ProjectIDs []string
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("asset %s is referenced by %d project(s)", e.AssetID, len(e.ProjectIDs))
}
