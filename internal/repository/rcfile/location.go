package rcfile

import (
	"errors"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
)

const (
	// DefaultFilename is the file name pysteps searches for.
	DefaultFilename = "pystepsrc"

	// unixDirName and windowsDirName mirror the per-user directory pysteps reads.
	unixDirName    = ".pysteps"
	windowsDirName = "pysteps"
)

var errNoHome = errors.New("cannot determine the home directory")

// Location is where a record lives.
type Location struct {
	// Dir is the directory holding the record.
	Dir string
	// Filename is the record file name inside Dir.
	Filename string
}

// Path returns the full record path.
func (l Location) Path() string {
	return filepath.Join(l.Dir, l.Filename)
}

// ResolveLocation returns the record location. overrideDir wins when set;
// otherwise the per-user pysteps directory under the home directory is used.
// An empty filename means DefaultFilename.
func ResolveLocation(overrideDir, filename string) (Location, error) {
	if filename == "" {
		filename = DefaultFilename
	}

	if overrideDir != "" {
		abs, err := filepath.Abs(overrideDir)
		if err != nil {
			return Location{}, err
		}

		return Location{Dir: abs, Filename: filename}, nil
	}

	if xdg.Home == "" {
		return Location{}, errNoHome
	}

	return Location{Dir: defaultDir(xdg.Home, runtime.GOOS), Filename: filename}, nil
}

func defaultDir(home, goos string) string {
	if goos == "windows" {
		return filepath.Join(home, windowsDirName)
	}

	return filepath.Join(home, unixDirName)
}
