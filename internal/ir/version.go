package ir

// Version constants for descriptors and the journal.
const (
	// DescriptorVersion is the patch descriptor schema version.
	DescriptorVersion = "1"

	// EngineVersion is the substrate version stamped into journal sessions.
	EngineVersion = "0.3.0"
)
