// Package zfs provides wrappers around the ZFS command line tools,
// modelling datasets, snapshots, and holds as a SnapshotStore that can run
// locally or over ssh against a remote host.
package zfs
