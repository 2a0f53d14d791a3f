package engine

// Gateway is the effect seam host code calls for randomness and identifiers.
//
// Call sites are designed in rather than patched in: a host routine that needs
// a random decision or a new job id asks the gateway, naming the call-site key.
// Production wires *Context, which serves synchronized values inside replicated
// execution. Tests wire a scripted implementation with controlled sequences.
type Gateway interface {
	Oracle

	Chance(key string, p float64) (bool, error)
	Range(key string, lo, hi float64) (float64, error)
	IntRange(key string, lo, hi int) (int, error)
	MTBEventOccurs(key string, mtb, mtbUnit, checkDuration float64) (bool, error)

	// MintID returns the next causally sequenced identifier.
	MintID() (int64, error)
}

var _ Gateway = (*Context)(nil)
