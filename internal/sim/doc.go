// Package sim is a reference colony used to exercise the substrate.
//
// It models no gameplay. Each routine is registered under the name of a real
// host method that desynced in multiplayer and reproduces only the part that
// mattered: an unsynchronized draw, a job id minted from the wrong context, or
// a shared list reordered in place. The builtin descriptor set fixes all of
// them; running the colony with and without it is how the lockstep harness
// demonstrates each fix.
package sim
