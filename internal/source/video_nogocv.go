//go:build !gocv

package source

import "fmt"

func openVideo(path string, _ Options) (Source, error) {
	return nil, fmt.Errorf("%s: %w", path, ErrVideoUnsupported)
}
