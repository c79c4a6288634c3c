// Copyright 2025 James Ross
package queuestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryQueueNameRoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	name := RetryQueueName(ts, 0)
	require.Equal(t, "retr_20240102030405000006_#0", name)

	attempt, ok := ParseRetryName(name)
	require.True(t, ok)
	require.Equal(t, 0, attempt)
}

func TestParseRetryNameRejectsUnknownGrammar(t *testing.T) {
	_, ok := ParseRetryName("retr_not_a_timestamp")
	require.False(t, ok)
}

func TestRetryQueueWithAttemptPreservesTimestamp(t *testing.T) {
	name := "retr_20240102030405000006_#0"
	next := RetryQueueWithAttempt(name, 1)
	require.Equal(t, "retr_20240102030405000006_#1", next)
}

func TestFailQueueNameIsDated(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.Equal(t, "fail_20240102", FailQueueName(ts))
}
