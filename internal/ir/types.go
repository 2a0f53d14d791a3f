package ir

// ShimKind names the substrate shim a descriptor installs on its target.
type ShimKind string

const (
	// ShimRngWrap routes draws made inside the target to a keyed synchronized stream.
	ShimRngWrap ShimKind = "rng_wrap"

	// ShimCancelIfUnsynced skips the target when it runs in a session but
	// outside replicated execution.
	ShimCancelIfUnsynced ShimKind = "cancel_if_unsynced"

	// ShimDeferAndRetry suppresses the target outside replicated execution and
	// re-issues it at the next tick boundary.
	ShimDeferAndRetry ShimKind = "defer_and_retry"

	// ShimRewriteStream rewrites the target's instruction stream to snapshot an
	// ordered structure at the point of use.
	ShimRewriteStream ShimKind = "rewrite_stream"
)

// ValidShimKinds defines the allowed shim kinds.
var ValidShimKinds = map[ShimKind]bool{
	ShimRngWrap:          true,
	ShimCancelIfUnsynced: true,
	ShimDeferAndRetry:    true,
	ShimRewriteStream:    true,
}

// PatchDescriptor names a host operation and the shim that applies to it.
type PatchDescriptor struct {
	Target  string       `json:"target"`            // Qualified "Type:Method" name
	Shim    ShimKind     `json:"shim"`
	Stream  string       `json:"stream,omitempty"`  // rng_wrap only; defaults to Target
	Rewrite *RewriteSpec `json:"rewrite,omitempty"` // rewrite_stream only
	Mod     string       `json:"mod,omitempty"`     // Compatibility group, e.g. "Mehni.PickUpAndHaul"
	Reason  string       `json:"reason,omitempty"`
}

// StreamKey returns the keyed stream used by an rng_wrap descriptor.
func (d PatchDescriptor) StreamKey() string {
	if d.Stream != "" {
		return d.Stream
	}
	return d.Target
}

// RewriteSpec describes a snapshot insertion for rewrite_stream descriptors.
type RewriteSpec struct {
	Call     string `json:"call"`     // Operand of the call whose result is snapshotted
	Snapshot string `json:"snapshot"` // Operand of the inserted newobj instruction
}

// EventKind distinguishes journal events.
type EventKind string

const (
	// EventCommand marks the start of a replicated command.
	EventCommand EventKind = "command"
	// EventDraw records one unit consumed from a keyed stream.
	EventDraw EventKind = "draw"
	// EventMint records a synchronized identifier.
	EventMint EventKind = "mint"
	// EventReissue records a deferred subject re-issued at a tick boundary.
	EventReissue EventKind = "reissue"
	// EventSkip records a deferred subject dropped because it became invalid.
	EventSkip EventKind = "skip"
	// EventTick closes a tick boundary.
	EventTick EventKind = "tick"
)

// Event is one replicated occurrence observed by the substrate.
// Only events produced inside replicated execution are journaled, so the
// event list of a tick is identical on every peer that stays in sync.
type Event struct {
	Seq     int64     `json:"seq"`  // Logical clock
	Tick    int64     `json:"tick"` // Tick the event belongs to
	Kind    EventKind `json:"kind"`
	Key     string    `json:"key,omitempty"`     // Stream key, command or queue name
	Subject string    `json:"subject,omitempty"` // Deferred subject ID
	Pos     int64     `json:"pos,omitempty"`     // Stream position after a draw
	Value   int64     `json:"value,omitempty"`   // Raw draw bits or minted ID
}

// Canonical converts the event to a map accepted by MarshalCanonical.
// Empty optional fields are omitted so the encoding matches the JSON tags.
func (e Event) Canonical() map[string]any {
	m := map[string]any{
		"seq":  e.Seq,
		"tick": e.Tick,
		"kind": string(e.Kind),
	}
	if e.Key != "" {
		m["key"] = e.Key
	}
	if e.Subject != "" {
		m["subject"] = e.Subject
	}
	if e.Pos != 0 {
		m["pos"] = e.Pos
	}
	if e.Value != 0 {
		m["value"] = e.Value
	}
	return m
}
