package sim

import (
	"fmt"
	"slices"
	"strings"
)

// action is a colony entry point. Commands and local calls share them; the
// caller decides whether it runs inside replicated execution.
type action struct {
	args int
	run  func(c *Colony, args []string) error
}

var actions = map[string]action{
	"melt_ice": {run: func(c *Colony, _ []string) error {
		return c.invoke(DoIceMelting, nil)
	}},
	"spawn_circle": {run: func(c *Colony, _ []string) error {
		return c.invoke(SpawnPos, nil)
	}},
	"think": {run: func(c *Colony, _ []string) error {
		return c.invoke(TryIssueJobPackage, nil)
	}},
	"ritual_fx": {run: func(c *Colony, _ []string) error {
		return c.invoke(SpawnFleck, nil)
	}},
	"age": {run: func(c *Colony, _ []string) error {
		return c.invoke(OnIntervalPassed, nil)
	}},
	"update_duties": {args: 1, run: func(c *Colony, args []string) error {
		return c.invoke(UpdateAllDuties, c.lord(args[0]))
	}},
	"end_ritual": {args: 1, run: func(c *Colony, args []string) error {
		if l, ok := c.lords[args[0]]; ok {
			l.alive = false
			delete(c.lords, args[0])
		}
		return nil
	}},
	"drop_inventory": {run: func(c *Colony, _ []string) error {
		return c.invoke(DropUnusedInventory, nil)
	}},
	"haul_scan": {args: 1, run: func(c *Colony, args []string) error {
		pos, err := parsePos(args[0])
		if err != nil {
			return err
		}
		return c.invoke(PotentialWorkThingsGlobal, nil, Pawn{Name: "hauler", Pos: pos})
	}},
	"haul_take": {run: func(c *Colony, _ []string) error {
		if t, ok := c.take(); ok {
			c.metrics.Hauled = append(c.metrics.Hauled, t.Name)
		}
		return nil
	}},
}

// Actions returns the names accepted by Do, sorted.
func Actions() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Do runs a colony action, e.g. Do("update_duties", "lord-1").
func (c *Colony) Do(name string, args ...string) error {
	a, ok := actions[name]
	if !ok {
		return fmt.Errorf("unknown action %q (known: %s)", name, strings.Join(Actions(), ", "))
	}
	if len(args) != a.args {
		return fmt.Errorf("action %s: want %d argument(s), got %d", name, a.args, len(args))
	}
	return a.run(c, args)
}

func (c *Colony) invoke(name string, subject *Lord, args ...any) error {
	var err error
	if subject != nil {
		_, err = c.reg.Invoke(name, subject, args...)
	} else {
		_, err = c.reg.Invoke(name, nil, args...)
	}
	return err
}
