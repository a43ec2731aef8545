// Package probe sends scheduled synthetic requests to configured targets
// through an instrumented HTTP client, so every probe becomes a client
// timing sample labeled with the target's route template.
//
// A Prober runs one cycle with RunOnce; a Scheduler runs it on a cron
// schedule and can be reloaded with new targets and schedule. Each probe
// carries a fresh X-Request-ID header.
package probe
