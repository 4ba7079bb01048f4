package eventschema

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// DefaultVersionConstraint is the supported schema-version window
// (">=1, <2"): only schema version 1 is accepted; version 2 and later are
// rejected.
const DefaultVersionConstraint = ">=1, <2"

// VersionChecker checks an event's integer schema version against a
// semantic-version range constraint. Schema versions are plain integers
// (event.v), not dotted semver strings, so each check is rendered as
// "<v>.0.0" before being matched against the configured constraint; this
// reuses semver's range-matching machinery without requiring the chain's
// schema-version field to become a real semver string.
type VersionChecker struct {
	constraint *semver.Constraints
}

// NewVersionChecker parses constraintExpr (e.g. ">=1, <2") once at startup.
func NewVersionChecker(constraintExpr string) (*VersionChecker, error) {
	if constraintExpr == "" {
		constraintExpr = DefaultVersionConstraint
	}
	c, err := semver.NewConstraint(constraintExpr)
	if err != nil {
		return nil, fmt.Errorf("eventschema: parse version constraint %q: %w", constraintExpr, err)
	}
	return &VersionChecker{constraint: c}, nil
}

// Supported reports whether schema version v falls within the configured
// compatibility window.
func (vc *VersionChecker) Supported(v int) (bool, error) {
	if v < 0 {
		return false, fmt.Errorf("eventschema: negative schema version %d", v)
	}
	sv, err := semver.NewVersion(fmt.Sprintf("%d.0.0", v))
	if err != nil {
		return false, fmt.Errorf("eventschema: build semver for v=%d: %w", v, err)
	}
	return vc.constraint.Check(sv), nil
}
