package scene

import (
	"reflect"
)

// Result partitions a desired cell set against the current one
type Result struct {
	Create []Cell   `json:"create"`
	Update []Cell   `json:"update"`
	Remove []string `json:"remove"`
}

// Empty reports whether applying the result would change nothing
func (r Result) Empty() bool {
	return len(r.Create) == 0 && len(r.Update) == 0 && len(r.Remove) == 0
}

// Diff classifies desired cells against current ones by id. Matched nodes are
// updated only when their props differ. Matched edges are always updated
// since their port bindings can change without the bag looking different.
// Later duplicates of an id in desired are ignored.
func Diff(current, desired []Cell) Result {
	res := Result{
		Create: []Cell{},
		Update: []Cell{},
		Remove: []string{},
	}

	existing := make(map[string]Cell, len(current))
	for _, c := range current {
		existing[c.ID] = c
	}

	wanted := make(map[string]bool, len(desired))
	for _, d := range desired {
		if wanted[d.ID] {
			continue
		}
		wanted[d.ID] = true

		cur, ok := existing[d.ID]
		switch {
		case !ok:
			res.Create = append(res.Create, d.Clone())
		case d.Kind == KindEdge || cur.Kind != d.Kind:
			res.Update = append(res.Update, d.Clone())
		case !propsEqual(cur.Props, d.Props):
			res.Update = append(res.Update, d.Clone())
		}
	}

	for _, c := range current {
		if !wanted[c.ID] {
			res.Remove = append(res.Remove, c.ID)
		}
	}

	return res
}

// DiffCanvas diffs against the cells of c. A nil canvas yields empty buckets.
func DiffCanvas(c Canvas, desired []Cell) Result {
	if c == nil {
		return Result{Create: []Cell{}, Update: []Cell{}, Remove: []string{}}
	}
	return Diff(c.Cells(), desired)
}

// Patch applies r to c in one batch: creations first, then property-wise
// updates, then removals. A nil canvas is a no-op.
func Patch(c Canvas, r Result) error {
	if c == nil || r.Empty() {
		return nil
	}

	return c.Batch(func(b Batch) error {
		for _, cell := range r.Create {
			if err := b.Add(cell); err != nil {
				return err
			}
		}

		for _, cell := range r.Update {
			if err := applyUpdate(b, cell); err != nil {
				return err
			}
		}

		for _, id := range r.Remove {
			if err := b.Remove(id); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyUpdate(b Batch, want Cell) error {
	cur, ok := b.Get(want.ID)
	if !ok {
		return b.Add(want)
	}

	if cur.Kind != want.Kind {
		if err := b.Remove(want.ID); err != nil {
			return err
		}
		return b.Add(want)
	}

	for key, value := range want.Props {
		if err := b.SetProp(want.ID, key, value); err != nil {
			return err
		}
	}
	for key := range cur.Props {
		if _, keep := want.Props[key]; keep {
			continue
		}
		if err := b.DeleteProp(want.ID, key); err != nil {
			return err
		}
	}
	return nil
}

func propsEqual(a, b Props) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
