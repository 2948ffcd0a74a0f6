package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var jobIDRegex = regexp.MustCompile(`^job_[0-9]{10}_[0-9a-f]{8}$`)

// GenerateJobID returns a new job ID of the form job_<unix>_<hex>. The
// timestamp prefix keeps generated IDs sortable by creation time.
func GenerateJobID() (string, error) {
	timestamp := time.Now().Unix()
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return fmt.Sprintf("job_%010d_%s", timestamp, hex.EncodeToString(randomBytes)), nil
}

// IsGeneratedJobID reports whether id matches the generated job ID format.
// Caller-supplied IDs are accepted in any format; this only distinguishes
// the two for diagnostics.
func IsGeneratedJobID(id string) bool {
	return jobIDRegex.MatchString(id)
}

// ParseJobIDTimestamp extracts the creation time from a generated job ID.
func ParseJobIDTimestamp(id string) (time.Time, error) {
	if !IsGeneratedJobID(id) {
		return time.Time{}, fmt.Errorf("not a generated job ID: %s", id)
	}
	tsStr := id[len("job_") : len("job_")+10]
	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp from ID %s: %w", id, err)
	}
	return time.Unix(ts, 0), nil
}
