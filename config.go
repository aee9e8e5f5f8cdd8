package zfs

import "time"

// DefaultPollInterval is how often a send/receive pipe's partner processes are
// checked for an unexpected exit while waiting for the other side to finish.
const DefaultPollInterval = 100 * time.Millisecond

// DefaultTerminateGrace is how long Process.Terminate waits after SIGTERM
// before escalating to SIGKILL.
const DefaultTerminateGrace = 5 * time.Second
