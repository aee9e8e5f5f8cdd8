package zfs

import (
	"fmt"
	"strconv"
	"strings"
)

// DatasetType is the zfs dataset type.
type DatasetType string

// ZFS dataset types, which can indicate if a dataset is a filesystem, snapshot, or volume.
const (
	DatasetAll        DatasetType = "all"
	DatasetFilesystem DatasetType = "filesystem"
	DatasetSnapshot   DatasetType = "snapshot"
	DatasetVolume     DatasetType = "volume"
	DatasetBookmark   DatasetType = "bookmark"
)

// Dataset is a ZFS dataset: a filesystem, volume, snapshot, or bookmark.
// The Type field determines which operations are valid for it.
type Dataset struct {
	Name string      `json:"name"`
	Type DatasetType `json:"type"`
	GUID uint64       `json:"guid"`
}

// depth returns the number of '/' separators in the dataset's pool path (0
// for a pool's root dataset), ignoring any trailing "@snapshot" component. Used to order replication
// of a dataset hierarchy parent-before-child.
func (d Dataset) depth() int {
	name := d.Name
	if idx := strings.IndexByte(name, '@'); idx >= 0 {
		name = name[:idx]
	}
	return strings.Count(name, "/")
}

// datasetFromFields builds a Dataset from one `zfs list -o <columns> -Hp` line.
func datasetFromFields(fields []string, columns []string) (Dataset, error) {
	if len(fields) != len(columns) {
		return Dataset{}, fmt.Errorf("zfs: expected %d columns, got %d: %q", len(columns), len(fields), strings.Join(fields, "\t"))
	}

	var ds Dataset
	for i, col := range columns {
		val := fields[i]
		switch col {
		case PropertyName:
			ds.Name = val
		case PropertyType:
			ds.Type = DatasetType(val)
		case PropertyGUID:
			guid, err := parseUint(val)
			if err != nil {
				return Dataset{}, fmt.Errorf("zfs: dataset %s: parsing guid %q: %w", ds.Name, val, err)
			}
			ds.GUID = guid
		}
	}
	return ds, nil
}

func parseUint(val string) (uint64, error) {
	if val == ValueUnset || val == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func parseBool(val string) bool {
	return val == ValueYes || val == ValueOn
}
