package config

import "time"

// AdmissionConfig tunes the waiting-queue side of the system: how many
// users may be active at once, how long an admitted user keeps their
// window, and how often the background jobs tick. The lock settings
// govern the cross-instance mutex around the activation pass.
type AdmissionConfig struct {
    Capacity         int           // maximum concurrently ACTIVE users
    ActiveWindow     time.Duration // how long a promoted user stays active
    ActivateInterval time.Duration // activation scheduler tick
    ReapInterval     time.Duration // reservation expiry reaper tick
    RetryInterval    time.Duration // event retry worker tick
    LockWait         time.Duration // how long a pass waits for the admission lock
    LockLease        time.Duration // admission lock lease, watchdog-renewed
}

// LoadAdmissionConfig reads environment variables to build an
// AdmissionConfig. Defaults are used when variables are not set.
func LoadAdmissionConfig() AdmissionConfig {
    return AdmissionConfig{
        Capacity:         envInt("ADMISSION_CAPACITY", 100),
        ActiveWindow:     envDur("ADMISSION_ACTIVE_WINDOW", 10*time.Minute),
        ActivateInterval: envDur("ADMISSION_ACTIVATE_INTERVAL", 10*time.Second),
        ReapInterval:     envDur("RESERVATION_REAP_INTERVAL", time.Minute),
        RetryInterval:    envDur("EVENT_RETRY_INTERVAL", 30*time.Second),
        LockWait:         envDur("ADMISSION_LOCK_WAIT", 3*time.Second),
        LockLease:        envDur("ADMISSION_LOCK_LEASE", 30*time.Second),
    }
}
