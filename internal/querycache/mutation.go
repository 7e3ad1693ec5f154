package querycache

import (
	"context"

	"github.com/proenglish/go_proenglish/internal/routine"
)

// MutationDef declares a write endpoint.
type MutationDef[B, R any] struct {
	Name string
	// Do performs the write.
	Do func(ctx context.Context, body B) (R, error)
	// InvalidatesTags names the entries to refresh after a successful write.
	InvalidatesTags func(result R, body B) []Tag
	// Optimistic applies patches before the write is sent.
	Optimistic func(p *Patcher, body B)
}

// Patcher collects the optimistic patches of one mutation so they can be
// undone or committed together, each in isolation from other mutations.
type Patcher struct {
	c        *Client
	mutation string
	patches  []*PatchResult
}

// PatchResult identifies one applied patch.
type PatchResult struct {
	c       *Client
	e       *entry
	id      uint64
	Key     Key
	Applied bool
}

// Mutate runs the optimistic functions, performs the write and then either
// undoes every patch it applied (on error) or commits them and invalidates
// the declared tags. Optimistic functions that panic are logged and skipped;
// the write is still sent.
func Mutate[B, R any](ctx context.Context, c *Client, def *MutationDef[B, R], body B, optimistic ...func(p *Patcher)) (result R, err error) {
	if def == nil || def.Name == "" || def.Do == nil {
		return result, ErrInvalidDefinition
	}
	if c.isClosed() {
		return result, ErrClosed
	}

	p := &Patcher{c: c, mutation: def.Name}
	if def.Optimistic != nil {
		p.run(func() { def.Optimistic(p, body) })
	}
	for _, fn := range optimistic {
		p.run(func() { fn(p) })
	}

	settled := false
	defer func() {
		if !settled {
			p.undo()
		}
	}()

	result, err = def.Do(ctx, body)
	settled = true
	if err != nil {
		c.log.Debugf("mutation %s failed, rolling back %d patches: %v", def.Name, len(p.patches), err)
		p.undo()
		return result, err
	}

	p.commit()
	if def.InvalidatesTags != nil {
		c.Invalidate(def.InvalidatesTags(result, body)...)
	}
	return result, nil
}

// Patch applies recipe to the cached def(args) as part of the mutation.
func Patch[A, T any](p *Patcher, def *QueryDef[A, T], args A, recipe func(draft *T)) *PatchResult {
	res, err := UpdateQueryData(p.c, def, args, recipe)
	if err != nil {
		p.c.log.Warnf("mutation %s: optimistic patch on %s skipped: %v", p.mutation, def.Name, err)
	}
	if res != nil && res.Applied {
		p.patches = append(p.patches, res)
	}
	return res
}

// UpdateQueryData applies recipe to a deep copy of the cached def(args) and
// layers the result as a patch. It is a no-op when the entry has no data.
func UpdateQueryData[A, T any](c *Client, def *QueryDef[A, T], args A, recipe func(draft *T)) (*PatchResult, error) {
	key, err := makeKey(def.Name, args)
	if err != nil {
		return nil, err
	}
	res := &PatchResult{c: c, Key: key}

	apply := func(cur any) (any, error) {
		typed, ok := cur.(T)
		if !ok {
			return nil, ErrType(key, cur)
		}
		draft, err := cloneValue(typed)
		if err != nil {
			return nil, err
		}
		if panicked, rec := routine.Safe(func() { recipe(&draft) }); panicked {
			return nil, ErrPatch(def.Name, rec)
		}
		return draft, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return res, ErrClosed
	}
	e, ok := c.entries[key]
	if !ok || !e.hasData {
		return res, nil
	}
	next, err := apply(e.view)
	if err != nil {
		return res, err
	}

	c.nextID++
	e.patches = append(e.patches, &patch{id: c.nextID, apply: apply})
	e.view = next
	e.broadcast()

	res.e = e
	res.id = c.nextID
	res.Applied = true
	return res, nil
}

// Undo removes this patch and recomputes the entry from its confirmed payload
// and the patches that remain.
func (r *PatchResult) Undo() {
	if r == nil || !r.Applied {
		return
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	i := r.e.findPatch(r.id)
	r.Applied = false
	if i < 0 {
		return
	}
	r.e.patches = append(r.e.patches[:i], r.e.patches[i+1:]...)
	r.e.recompute()
	r.e.broadcast()
}

// Commit marks the patch as confirmed; it stays layered until the next
// confirmed response replaces the entry's payload.
func (r *PatchResult) Commit() {
	if r == nil || !r.Applied {
		return
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if i := r.e.findPatch(r.id); i >= 0 {
		r.e.patches[i].committed = true
	}
}

func (p *Patcher) run(fn func()) {
	if panicked, rec := routine.Safe(fn); panicked {
		p.c.log.Warnf("mutation %s: optimistic update panicked, continuing with the write: %v", p.mutation, rec)
	}
}

func (p *Patcher) undo() {
	for _, r := range p.patches {
		r.Undo()
	}
}

func (p *Patcher) commit() {
	for _, r := range p.patches {
		r.Commit()
	}
}
