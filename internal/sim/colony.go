package sim

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strconv"

	"github.com/T6751/Multiplayer-Compatibility/internal/engine"
	"github.com/T6751/Multiplayer-Compatibility/internal/host"
	"github.com/T6751/Multiplayer-Compatibility/internal/rewrite"
)

// Thing is a haulable item at a one-dimensional map position.
type Thing struct {
	Name string
	Pos  int
}

// Pawn is a colonist the haul work giver runs for.
type Pawn struct {
	Name string
	Pos  int
}

// Lord runs a ritual. It is the subject of deferred duty updates.
type Lord struct {
	ID    string
	Pawns []string
	alive bool
}

// SubjectID implements engine.Subject.
func (l *Lord) SubjectID() string { return l.ID }

// Valid implements engine.Subject. A lord is invalid once its ritual ended.
func (l *Lord) Valid() bool { return l.alive }

// Job is a unit of work stamped with a minted job id.
type Job struct {
	ID   int64  `json:"id" yaml:"id"`
	Def  string `json:"def" yaml:"def"`
	Pawn string `json:"pawn" yaml:"pawn"`
}

// listerHaulables owns the live, mutable haul list.
type listerHaulables struct {
	things []Thing
}

// names yields the thing names in current list order.
func (l *listerHaulables) names() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, t := range l.things {
			if !yield(t.Name) {
				return
			}
		}
	}
}

// Colony is one peer's copy of the reference simulation.
type Colony struct {
	reg     *host.Registry
	haul    *listerHaulables
	lords   map[string]*Lord
	metrics Metrics
}

// New builds a colony whose routines draw and mint through gw.
func New(gw engine.Gateway, opts ...host.Option) (*Colony, error) {
	c := &Colony{
		reg: host.NewRegistry(gw, opts...),
		haul: &listerHaulables{things: []Thing{
			{Name: "steel", Pos: 3},
			{Name: "wood", Pos: 8},
			{Name: "meal", Pos: 1},
			{Name: "silver", Pos: 6},
			{Name: "herbs", Pos: 4},
		}},
		lords: make(map[string]*Lord),
	}
	if err := c.register(); err != nil {
		return nil, fmt.Errorf("register colony: %w", err)
	}
	return c, nil
}

// Host returns the registry descriptors are applied to.
func (c *Colony) Host() *host.Registry {
	return c.reg
}

// Metrics returns a copy of the colony's observable state.
func (c *Colony) Metrics() Metrics {
	return c.metrics.clone()
}

// Haulables returns a snapshot of the haul list names in current order.
func (c *Colony) Haulables() []string {
	return engine.Snapshot(c.haul.names())
}

func (c *Colony) register() error {
	bodies := []struct {
		name string
		body host.Body
	}{
		{DoIceMelting, c.doIceMelting},
		{SpawnPos, c.spawnPos},
		{TryIssueJobPackage, c.tryIssueJobPackage},
		{SpawnFleck, c.spawnFleck},
		{OnIntervalPassed, c.onIntervalPassed},
		{UpdateAllDuties, c.updateAllDuties},
		{DropUnusedInventory, c.dropUnusedInventory},
	}
	for _, b := range bodies {
		if err := c.reg.Define(b.name, b.body); err != nil {
			return err
		}
	}

	natives := []struct {
		name string
		n    host.Native
	}{
		{nativeMapHaulables, host.Native{Arity: 1, Fn: func(*host.Call, []any) (any, error) {
			return c.haul, nil
		}}},
		{nativeThingsToHaul, host.Native{Arity: 1, Fn: func(_ *host.Call, args []any) (any, error) {
			return args[0].(*listerHaulables).things, nil
		}}},
		{ThingListCtor, host.Native{Arity: 1, Fn: func(_ *host.Call, args []any) (any, error) {
			return engine.SnapshotSlice(args[0].([]Thing)), nil
		}}},
		{nativeSortByDistance, host.Native{Arity: 2, Fn: func(_ *host.Call, args []any) (any, error) {
			things, pawn := args[0].([]Thing), args[1].(Pawn)
			slices.SortStableFunc(things, func(a, b Thing) int {
				return cmp.Compare(abs(a.Pos-pawn.Pos), abs(b.Pos-pawn.Pos))
			})
			return things, nil
		}}},
	}
	for _, n := range natives {
		if err := c.reg.DefineNative(n.name, n.n); err != nil {
			return err
		}
	}

	return c.reg.DefineProgram(PotentialWorkThingsGlobal, rewrite.MustParse(haulProgram))
}

// doIceMelting rolls a melt chance for each frozen cell.
func (c *Colony) doIceMelting(call *host.Call) (any, error) {
	for cell := 0; cell < 8; cell++ {
		melt, err := call.Chance(0.4)
		if err != nil {
			return nil, err
		}
		if melt {
			c.metrics.IceMelted++
		}
	}
	return nil, nil
}

// spawnPos picks a cell on the ritual spawn circle.
func (c *Colony) spawnPos(call *host.Call) (any, error) {
	x, err := call.IntRange(-4, 4)
	if err != nil {
		return nil, err
	}
	z, err := call.IntRange(-4, 4)
	if err != nil {
		return nil, err
	}
	c.metrics.Spawns = append(c.metrics.Spawns, fmt.Sprintf("%d,%d", x, z))
	return nil, nil
}

// tryIssueJobPackage orders job givers by priority, breaking ties randomly.
func (c *Colony) tryIssueJobPackage(call *host.Call) (any, error) {
	givers := []struct {
		name     string
		priority float64
	}{
		{"Haul", 5}, {"Clean", 5}, {"Cook", 5}, {"Research", 3},
	}

	best, bestScore := "", -1.0
	for _, g := range givers {
		jitter, err := call.Range(0, 1)
		if err != nil {
			return nil, err
		}
		if score := g.priority + jitter; score > bestScore {
			best, bestScore = g.name, score
		}
	}
	c.metrics.Issued = append(c.metrics.Issued, best)
	return best, nil
}

// spawnFleck scales a fleck and places it on the spawn circle.
func (c *Colony) spawnFleck(call *host.Call) (any, error) {
	scale, err := call.Range(0.5, 1.5)
	if err != nil {
		return nil, err
	}
	c.metrics.FleckScale += int64(scale * 1000)
	c.metrics.Flecks++
	return call.Invoke(SpawnPos, nil)
}

// onIntervalPassed rolls an age-related hediff for each colonist.
func (c *Colony) onIntervalPassed(call *host.Call) (any, error) {
	for pawn := 0; pawn < 3; pawn++ {
		occurs, err := call.MTBEventOccurs(2, 1, 1)
		if err != nil {
			return nil, err
		}
		if occurs {
			c.metrics.Hediffs++
		}
	}
	return nil, nil
}

// updateAllDuties gives each pawn of the lord a ritual job.
func (c *Colony) updateAllDuties(call *host.Call) (any, error) {
	lord, ok := call.Subject.(*Lord)
	if !ok {
		return nil, fmt.Errorf("%s: subject is %T, want *Lord", UpdateAllDuties, call.Subject)
	}
	for _, pawn := range lord.Pawns {
		id, err := call.MintID()
		if err != nil {
			return nil, err
		}
		c.metrics.Jobs = append(c.metrics.Jobs, Job{ID: id, Def: "Ritual", Pawn: pawn})
	}
	c.metrics.Duties++
	return nil, nil
}

// dropUnusedInventory creates an unload job for the hauling pawn.
func (c *Colony) dropUnusedInventory(call *host.Call) (any, error) {
	id, err := call.MintID()
	if err != nil {
		return nil, err
	}
	c.metrics.Jobs = append(c.metrics.Jobs, Job{ID: id, Def: "UnloadInventory", Pawn: "hauler"})
	return nil, nil
}

// lord returns the lord with id, creating it with two pawns if needed.
func (c *Colony) lord(id string) *Lord {
	l, ok := c.lords[id]
	if !ok {
		l = &Lord{ID: id, Pawns: []string{id + "/pawn-1", id + "/pawn-2"}, alive: true}
		c.lords[id] = l
	}
	return l
}

// take removes and returns the head of the live haul list.
func (c *Colony) take() (Thing, bool) {
	if len(c.haul.things) == 0 {
		return Thing{}, false
	}
	t := c.haul.things[0]
	c.haul.things = c.haul.things[1:]
	return t, true
}

func parsePos(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	return n, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
