// Package endpoint resolves the "[user@]host[:port]/dataset" specifiers
// accepted by the push and pull subcommands into a zfs.SnapshotStore plus the
// target dataset path.
package endpoint

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	zfs "github.com/zfsnappr/zfsnappr"
)

// ErrInvalidEndpoint is returned when a specifier doesn't match the grammar.
var ErrInvalidEndpoint = errors.New("invalid endpoint specifier")

// ErrNoDataset is returned when a specifier has no "/dataset" component.
var ErrNoDataset = errors.New("endpoint specifier has no dataset")

// validToken matches the characters allowed in a user, host, or dataset
// component: letters, digits, underscore, and hyphen. Dataset paths may also
// contain '/' separating components, handled separately below.
var validToken = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Endpoint is a resolved "[user@]host[:port]/dataset" specifier.
type Endpoint struct {
	User    string
	Host    string
	Port    int
	Dataset string
}

// IsLocal reports whether the specifier had no host component.
func (e Endpoint) IsLocal() bool {
	return e.Host == ""
}

// Parse splits a raw specifier into its components without constructing a
// store, validating every component against the endpoint grammar.
func Parse(spec string) (Endpoint, error) {
	if spec == "" {
		return Endpoint{}, fmt.Errorf("empty endpoint: %w", ErrInvalidEndpoint)
	}

	// A leading '/' is the local marker: "/tank/ds" is a local dataset, with
	// no netloc at all.
	if spec[0] == '/' {
		dataset := spec[1:]
		if dataset == "" {
			return Endpoint{}, fmt.Errorf("%q: %w", spec, ErrNoDataset)
		}
		if !validDatasetPath(dataset) {
			return Endpoint{}, fmt.Errorf("%q: invalid dataset: %w", spec, ErrInvalidEndpoint)
		}
		return Endpoint{Dataset: dataset}, nil
	}

	slashIdx := strings.IndexByte(spec, '/')
	if slashIdx < 0 {
		// No netloc/dataset separator at all: the whole string is a local,
		// single-component dataset path (e.g. a bare pool name).
		//
		// spec.md's grammar is `spec := [ netloc "/" ] dataset?` — a netloc
		// is only ever followed by "/", so a string with no "/" cannot match
		// netloc at all and falls through to a bare dataset. This is a
		// deliberate divergence from original_source's parse_dataset, which
		// treats a token with no "/" as a netloc (host, with dataset left
		// unset) instead: e.g. Python's get_zfs_cli("tank") opens a *remote*
		// connection to host "tank" with no dataset restriction. spec.md's
		// written grammar is taken as authoritative over that original
		// behavior, since a bare local pool/dataset name is by far the more
		// common and less surprising reading of a single bare token.
		if !validDatasetPath(spec) {
			return Endpoint{}, fmt.Errorf("%q: %w", spec, ErrInvalidEndpoint)
		}
		return Endpoint{Dataset: spec}, nil
	}

	head, dataset := spec[:slashIdx], spec[slashIdx+1:]
	if dataset == "" {
		return Endpoint{}, fmt.Errorf("%q: %w", spec, ErrNoDataset)
	}
	if !validDatasetPath(dataset) {
		return Endpoint{}, fmt.Errorf("%q: invalid dataset: %w", spec, ErrInvalidEndpoint)
	}

	var ep Endpoint
	ep.Dataset = dataset

	if atIdx := strings.IndexByte(head, '@'); atIdx >= 0 {
		ep.User = head[:atIdx]
		head = head[atIdx+1:]
		if ep.User == "" || !validToken.MatchString(ep.User) {
			return Endpoint{}, fmt.Errorf("%q: invalid user: %w", spec, ErrInvalidEndpoint)
		}
	}

	if colonIdx := strings.IndexByte(head, ':'); colonIdx >= 0 {
		portStr := head[colonIdx+1:]
		head = head[:colonIdx]
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("%q: invalid port %q: %w", spec, portStr, ErrInvalidEndpoint)
		}
		ep.Port = port
	}

	ep.Host = head
	if ep.Host == "" || !validToken.MatchString(ep.Host) {
		return Endpoint{}, fmt.Errorf("%q: invalid host: %w", spec, ErrInvalidEndpoint)
	}

	return ep, nil
}

func validDatasetPath(path string) bool {
	for _, part := range strings.Split(path, "/") {
		if part == "" || !validToken.MatchString(part) {
			return false
		}
	}
	return true
}

// Resolve parses spec and builds the zfs.SnapshotStore it addresses: a local
// store when no host is present, a ssh-backed remote store otherwise.
func Resolve(spec string, propertyNames zfs.PropertyNames, logger *slog.Logger) (zfs.SnapshotStore, string, error) {
	ep, err := Parse(spec)
	if err != nil {
		return nil, "", err
	}
	if ep.IsLocal() {
		return zfs.NewLocalStore(propertyNames, logger), ep.Dataset, nil
	}
	return zfs.NewRemoteStore(ep.User, ep.Host, ep.Port, propertyNames, logger), ep.Dataset, nil
}
