package rcfile

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

//go:embed template/pystepsrc.json
var defaultTemplate []byte

// Record is the pystepsrc content.
type Record struct {
	// DataRoot is the absolute dataset directory the record was built for.
	DataRoot string `json:"data_root"`
	// SilentImport suppresses the pysteps banner on import.
	SilentImport bool `json:"silent_import"`
	// Outputs holds output locations.
	Outputs Outputs `json:"outputs"`
	// Plot holds plotting defaults.
	Plot Plot `json:"plot"`
	// DataSources maps a source name to where and how its files are found.
	DataSources map[string]*DataSource `json:"data_sources"`
}

// Outputs holds output locations.
type Outputs struct {
	PathOutputs string `json:"path_outputs"`
}

// Plot holds plotting defaults.
type Plot struct {
	MotionPlot string `json:"motion_plot"`
	Colorscale string `json:"colorscale"`
}

// DataSource describes one radar or satellite source inside the dataset.
type DataSource struct {
	RootPath       string         `json:"root_path"`
	PathFmt        string         `json:"path_fmt"`
	FnPattern      string         `json:"fn_pattern"`
	FnExt          string         `json:"fn_ext"`
	Importer       string         `json:"importer"`
	Timestep       int            `json:"timestep"`
	ImporterKwargs map[string]any `json:"importer_kwargs"`
}

var errEmptyDataRoot = errors.New("data root must be provided")

// NewRecord returns the default record with every data source rooted under dataRoot.
func NewRecord(dataRoot string) (*Record, error) {
	if dataRoot == "" {
		return nil, errEmptyDataRoot
	}

	absRoot, err := filepath.Abs(dataRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve data root: %w", err)
	}

	var record Record
	if err = json.Unmarshal(defaultTemplate, &record); err != nil {
		return nil, fmt.Errorf("decode record template: %w", err)
	}

	record.DataRoot = absRoot

	for _, source := range record.DataSources {
		if source.ImporterKwargs == nil {
			source.ImporterKwargs = map[string]any{}
		}

		source.RootPath = filepath.Join(absRoot, filepath.FromSlash(source.RootPath))
	}

	return &record, nil
}

// SourceNames returns the data source names in sorted order.
func (r *Record) SourceNames() []string {
	names := make([]string, 0, len(r.DataSources))
	for name := range r.DataSources {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Encode renders the record the way pysteps writes it: JSON with a four space indent.
func (r *Record) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	return append(data, '\n'), nil
}
