// Package backoff computes and performs the harvester's waits.
//
// Controller.NextDelay maps a Kind (rate limit, empty run, pacing, quota)
// and attempt number to a duration. A TimedWaiter then waits that long on
// a single timer, logging the remaining time as mm:ss every interval.
// Retry covers short request-level retries of transient failures.
package backoff
