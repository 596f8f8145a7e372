package transport

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/always-cache/webfetch/pkg/locator"
)

// ErrLocalAccess is returned when a file locator cannot be opened.
var ErrLocalAccess = errors.New("local access error")

// ReadLocal returns the contents of the file at loc. Directories yield
// their entry names joined by newlines, sorted by name.
func ReadLocal(loc locator.Local) ([]byte, error) {
	info, err := os.Stat(loc.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLocalAccess, err)
	}
	if info.IsDir() {
		entries, err := os.ReadDir(loc.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLocalAccess, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return []byte(strings.Join(names, "\n")), nil
	}
	b, err := os.ReadFile(loc.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLocalAccess, err)
	}
	return b, nil
}
