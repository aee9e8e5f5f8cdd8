package main

import (
	"math/rand"

	"github.com/zfsnappr/zfsnappr/endpoint"
	"github.com/zfsnappr/zfsnappr/retention"

	zfs "github.com/zfsnappr/zfsnappr"
)

// shortNameAlphabet is the same alphabet the original tool draws from:
// alphanumeric, ~59.5 bits of entropy over 10 characters.
const shortNameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomShortName generates a random 10-character snapshot name. Not
// cryptographically random: the true identifier is the dataset's 64-bit
// guid, this just needs to avoid collisions within one dataset.
func randomShortName() string {
	b := make([]byte, 10)
	for i := range b {
		b[i] = shortNameAlphabet[rand.Intn(len(shortNameAlphabet))]
	}
	return string(b)
}

// resolveStore turns a "-d" flag value into a store and the dataset path
// within it. An empty spec means the local store with no dataset restriction
// (used by list to enumerate the whole pool).
func resolveStore(spec string) (zfs.SnapshotStore, string, error) {
	if spec == "" {
		return zfs.NewLocalStore(propertyNames, logger), "", nil
	}
	return endpoint.Resolve(spec, propertyNames, logger)
}

// durationValue adapts retention.Duration to pflag.Value for the
// --keep-within* flags. Repeating a flag replaces its earlier value.
type durationValue struct {
	d *retention.Duration
}

func (v *durationValue) String() string {
	if v.d == nil {
		return ""
	}
	return v.d.String()
}

func (v *durationValue) Set(raw string) error {
	d, err := retention.ParseDuration(raw)
	if err != nil {
		return err
	}
	*v.d = d
	return nil
}

func (v *durationValue) Type() string { return "duration" }
