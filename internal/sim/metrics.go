package sim

import "slices"

// Metrics is the observable state of a colony. Two peers that stayed in sync
// have equal Metrics.
type Metrics struct {
	IceMelted  int      `json:"ice_melted" yaml:"ice_melted"`
	Spawns     []string `json:"spawns,omitempty" yaml:"spawns,omitempty"`
	Issued     []string `json:"issued,omitempty" yaml:"issued,omitempty"`
	Flecks     int      `json:"flecks" yaml:"flecks"`
	FleckScale int64    `json:"fleck_scale" yaml:"fleck_scale"` // Sum of fleck scales, in thousandths
	Hediffs    int      `json:"hediffs" yaml:"hediffs"`
	Duties     int      `json:"duties" yaml:"duties"`
	Jobs       []Job    `json:"jobs,omitempty" yaml:"jobs,omitempty"`
	Hauled     []string `json:"hauled,omitempty" yaml:"hauled,omitempty"`
}

func (m Metrics) clone() Metrics {
	m.Spawns = slices.Clone(m.Spawns)
	m.Issued = slices.Clone(m.Issued)
	m.Jobs = slices.Clone(m.Jobs)
	m.Hauled = slices.Clone(m.Hauled)
	return m
}

// Equal reports whether two colonies are in the same observable state.
func (m Metrics) Equal(o Metrics) bool {
	return m.IceMelted == o.IceMelted &&
		slices.Equal(m.Spawns, o.Spawns) &&
		slices.Equal(m.Issued, o.Issued) &&
		m.Flecks == o.Flecks &&
		m.FleckScale == o.FleckScale &&
		m.Hediffs == o.Hediffs &&
		m.Duties == o.Duties &&
		slices.Equal(m.Jobs, o.Jobs) &&
		slices.Equal(m.Hauled, o.Hauled)
}
