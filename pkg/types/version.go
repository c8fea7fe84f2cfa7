package types

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// ProtocolVersion is the wire format version this build of the module
// stamps onto every outbound Message. Bumping it is how a future
// change to the Op/Message shape signals incompatibility to older
// peers.
const ProtocolVersion = "1.0.0"

// CompatibleVersions is the constraint a received Message.ProtocolVersion
// must satisfy to be accepted. A constraint range rather than strict
// equality, so a future backwards-compatible minor bump doesn't
// require every peer to upgrade in lockstep.
const CompatibleVersions = ">= 1.0.0, < 2.0.0"

// CheckProtocolVersion reports an error if raw does not satisfy
// CompatibleVersions.
func CheckProtocolVersion(raw string) error {
	v, err := version.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("parsing protocol version %q: %w", raw, err)
	}
	constraints, err := version.NewConstraint(CompatibleVersions)
	if err != nil {
		return fmt.Errorf("parsing protocol constraint: %w", err)
	}
	if !constraints.Check(v) {
		return fmt.Errorf("protocol version %s does not satisfy %s", raw, CompatibleVersions)
	}
	return nil
}
