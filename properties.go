package zfs

const (
	PropertyCanMount   = "canmount"
	PropertyGUID       = "guid"
	PropertyCreation   = "creation"
	PropertyMountPoint = "mountpoint"
	PropertyName       = "name"
	PropertyReadOnly   = "readonly"
	PropertyATime      = "atime"
	PropertyType       = "type"
	PropertyUserRefs   = "userrefs"
)

const (
	ValueYes   = "yes"
	ValueOn    = "on"
	ValueNo    = "no"
	ValueOff   = "off"
	ValueNone  = "none"
	ValueUnset = "-"
)

const CanMountNoAuto = "noauto"

// datasetColumns are the columns always fetched, in this order, when listing
// any dataset type with `zfs list -o`.
var datasetColumns = []string{PropertyName, PropertyType, PropertyGUID}

// snapshotColumns are the columns always fetched, in this order, when listing
// snapshots. The configured tags property (see PropertyNames) is appended by
// the caller, since its name is overridable.
var snapshotColumns = []string{PropertyName, PropertyGUID, PropertyCreation, PropertyUserRefs}

// PropertyNames lets the custom ZFS user-properties this package manages be
// renamed, the same way the teacher's job.Properties lets every managed
// property name be overridden by configuration.
type PropertyNames struct {
	// Tags is the user property holding a snapshot's comma-separated tag set.
	Tags string `json:"tags" yaml:"tags"`
}

// DefaultTagsProperty is the user property holding a snapshot's tag set when
// PropertyNames.Tags isn't overridden.
const DefaultTagsProperty = "zfsnappr:tags"

// ApplyDefaults fills in any property name left blank with its default.
func (p *PropertyNames) ApplyDefaults() {
	if p.Tags == "" {
		p.Tags = DefaultTagsProperty
	}
}

func mergeColumns(base []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, c := range base {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, c := range extra {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
