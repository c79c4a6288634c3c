// Copyright 2025 James Ross
package queuestore

import (
	"fmt"
	"regexp"
	"time"
)

// Queue name classes (spec.md §3).
const (
	Pending     = "pend"
	PendingWork = "pend.work"
	FailWork    = "fail.work"

	retryPrefix = "retr_"
	failPrefix  = "fail_"

	dateLayout = "20060102"
)

var retryNameRe = regexp.MustCompile(`^retr_(\d+)_#(\d+)$`)

// RetryQueueName builds a retry queue name with the given UTC
// timestamp and attempt counter, e.g. retr_20240101000000000000_#0.
func RetryQueueName(ts time.Time, attempt int) string {
	return fmt.Sprintf("%s%s_#%d", retryPrefix, formatTimestamp(ts), attempt)
}

// FailQueueName builds a dated fail queue name, e.g. fail_20240101.
func FailQueueName(ts time.Time) string {
	return fmt.Sprintf("%s%s", failPrefix, ts.UTC().Format(dateLayout))
}

// RetryPattern is the glob pattern that enumerates all retry queues.
const RetryPattern = "retr_*"

// FailPattern is the glob pattern that enumerates all fail queues.
const FailPattern = "fail_*"

// ParseRetryName extracts the attempt counter from a retry queue
// name. It returns ok=false for any name that doesn't match the
// grammar in spec.md §3 ("^retr_(\d+)_#(\d+)$") — such names must be
// logged and skipped, never deleted.
func ParseRetryName(name string) (attempt int, ok bool) {
	m := retryNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	var a int
	if _, err := fmt.Sscanf(m[2], "%d", &a); err != nil {
		return 0, false
	}
	return a, true
}

// RetryQueueWithAttempt renames the attempt suffix of a retry queue
// name that has already been parsed, preserving its timestamp.
func RetryQueueWithAttempt(name string, newAttempt int) string {
	m := retryNameRe.FindStringSubmatch(name)
	if m == nil {
		return name
	}
	return fmt.Sprintf("%s%s_#%d", retryPrefix, m[1], newAttempt)
}

func formatTimestamp(ts time.Time) string {
	u := ts.UTC()
	return fmt.Sprintf("%04d%02d%02d%02d%02d%02d%06d",
		u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond()/1000)
}
