package types

// Classification is the verdict of the customization detector for one path
// involved in an upgrade.
type Classification int

const (
	// Unmodified files match their install-time baseline and are safe to
	// overwrite silently.
	Unmodified Classification = iota
	// UserModified files were edited after install and differ from the
	// incoming package version. They are never overwritten by default.
	UserModified
	// NewFromPlugin files exist only in the package source.
	NewFromPlugin
	// NewFromUser files exist only in the target and were never installed
	// by the orchestrator. They are never deleted.
	NewFromUser
	// Obsolete files were installed by a previous run but are no longer
	// shipped by the package.
	Obsolete
)

func (c Classification) String() string {
	switch c {
	case Unmodified:
		return "unmodified"
	case UserModified:
		return "user-modified"
	case NewFromPlugin:
		return "new-from-plugin"
	case NewFromUser:
		return "new-from-user"
	case Obsolete:
		return "obsolete"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
