package bootstrap

import (
	"fmt"
	"strings"
)

// WritePolicy decides what happens when the destination already holds data.
type WritePolicy int

const (
	// PolicyOverwrite replaces existing data with a fresh copy.
	PolicyOverwrite WritePolicy = iota
	// PolicySkip keeps a non-empty destination as is and skips the download.
	PolicySkip
)

// String returns the configuration spelling of the policy.
func (p WritePolicy) String() string {
	switch p {
	case PolicyOverwrite:
		return "overwrite"
	case PolicySkip:
		return "skip"
	default:
		return fmt.Sprintf("WritePolicy(%d)", int(p))
	}
}

// ParsePolicy converts a configuration value into a WritePolicy.
// An empty value means PolicyOverwrite.
func ParsePolicy(s string) (WritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overwrite", "force":
		return PolicyOverwrite, nil
	case "skip":
		return PolicySkip, nil
	default:
		return PolicyOverwrite, fmt.Errorf("%w: unknown write policy %q", ErrUsage, s)
	}
}
