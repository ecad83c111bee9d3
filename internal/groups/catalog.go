// Package groups holds the live catalog of custom groups.
//
// Every mutation re-serializes the whole catalog through store.GroupStore
// before returning. If the save fails the in-memory catalog is left as it was.
package groups

import (
	"context"
	"fmt"
	"sync"

	"github.com/vovakirdan/roomchat-server/internal/store"
)

// IDPolicy selects how new group ids are assigned.
type IDPolicy string

const (
	// IDPolicyMonotonic never hands out an id twice within a process.
	IDPolicyMonotonic IDPolicy = "monotonic"
	// IDPolicyCompact assigns FirstGroupID + live count, skipping ids still in use.
	IDPolicyCompact IDPolicy = "compact"
)

// Catalog is the in-memory group table.
type Catalog struct {
	mu       sync.Mutex
	groups   []store.Group
	capacity int
	policy   IDPolicy
	nextID   int
	persist  store.GroupStore
}

// Options configure a Catalog.
type Options struct {
	Capacity int
	Policy   IDPolicy
}

// Load builds a catalog from the persisted groups.
func Load(ctx context.Context, persist store.GroupStore, opts Options) (*Catalog, error) {
	loaded, err := persist.LoadGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 100
	}
	if opts.Policy == "" {
		opts.Policy = IDPolicyMonotonic
	}

	c := &Catalog{
		capacity: opts.Capacity,
		policy:   opts.Policy,
		nextID:   store.FirstGroupID,
		persist:  persist,
	}
	// Every persisted group is kept even above capacity; capacity only gates Create.
	for _, g := range loaded {
		c.groups = append(c.groups, g)
		if g.ID >= c.nextID {
			c.nextID = g.ID + 1
		}
	}
	return c, nil
}

// Create adds a group with creator as sole admin and member and returns its id.
func (c *Catalog) Create(ctx context.Context, name, creator string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexByName(name) >= 0 {
		return 0, store.ErrDuplicateName
	}
	if len(c.groups) >= c.capacity {
		return 0, store.ErrCapacityExceeded
	}

	id := c.allocateID()
	g := store.Group{
		ID:      id,
		Name:    name,
		Admins:  store.NewNameSet(creator),
		Members: store.NewNameSet(creator),
	}

	next := append(c.cloneGroups(), g)
	if err := c.commit(ctx, next); err != nil {
		return 0, err
	}
	if id >= c.nextID {
		c.nextID = id + 1
	}
	return id, nil
}

// Join adds user to the group's members. Banned users get store.ErrBanned.
func (c *Catalog) Join(ctx context.Context, id int, user string) error {
	_, err := c.mutate(ctx, id, func(g *store.Group) (bool, error) {
		if g.Banned.Has(user) {
			return false, store.ErrBanned
		}
		return g.Members.Add(user), nil
	})
	return err
}

// IsAdmin reports whether user is an admin of group id.
func (c *Catalog) IsAdmin(id int, user string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexByID(id)
	return i >= 0 && c.groups[i].Admins.Has(user)
}

// Kick removes user from members and admins and reports whether user held
// either. Relocating the user's session is the caller's job.
func (c *Catalog) Kick(ctx context.Context, id int, user string) (bool, error) {
	return c.mutate(ctx, id, func(g *store.Group) (bool, error) {
		removed := g.Members.Remove(user)
		demoted := g.Admins.Remove(user)
		return removed || demoted, nil
	})
}

// Ban kicks user and adds them to the banned set. It reports false when user
// was already banned and held no role.
func (c *Catalog) Ban(ctx context.Context, id int, user string) (bool, error) {
	return c.mutate(ctx, id, func(g *store.Group) (bool, error) {
		removed := g.Members.Remove(user)
		demoted := g.Admins.Remove(user)
		banned := g.Banned.Add(user)
		return removed || demoted || banned, nil
	})
}

// Promote adds user to the admin set. It reports false if user already was one.
func (c *Catalog) Promote(ctx context.Context, id int, user string) (bool, error) {
	return c.mutate(ctx, id, func(g *store.Group) (bool, error) {
		return g.Admins.Add(user), nil
	})
}

// LookupByName returns the id of the live group called name.
func (c *Catalog) LookupByName(name string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexByName(name)
	if i < 0 {
		return 0, store.ErrNotFound
	}
	return c.groups[i].ID, nil
}

// Delete removes the group by swapping the last group into its slot.
func (c *Catalog) Delete(ctx context.Context, id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexByID(id)
	if i < 0 {
		return store.ErrNotFound
	}
	next := c.cloneGroups()
	last := len(next) - 1
	next[i] = next[last]
	next = next[:last]
	return c.commit(ctx, next)
}

// Get returns a copy of group id.
func (c *Catalog) Get(id int) (store.Group, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexByID(id)
	if i < 0 {
		return store.Group{}, false
	}
	return c.groups[i].Clone(), true
}

// Exists reports whether id names a live group.
func (c *Catalog) Exists(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexByID(id) >= 0
}

// List returns a copy of the catalog in slot order.
func (c *Catalog) List() []store.Group {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cloneGroups()
}

// Len returns the number of live groups.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.groups)
}

// mutate applies fn to a copy of group id and commits if fn reports a change.
func (c *Catalog) mutate(ctx context.Context, id int, fn func(g *store.Group) (bool, error)) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexByID(id)
	if i < 0 {
		return false, store.ErrNotFound
	}
	next := c.cloneGroups()
	changed, err := fn(&next[i])
	if err != nil || !changed {
		return false, err
	}
	if err := c.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// commit persists next and swaps it in. Caller holds c.mu.
func (c *Catalog) commit(ctx context.Context, next []store.Group) error {
	if err := c.persist.SaveGroups(ctx, next); err != nil {
		return fmt.Errorf("save groups: %w", err)
	}
	c.groups = next
	return nil
}

// allocateID picks an id for a new group. Caller holds c.mu.
func (c *Catalog) allocateID() int {
	if c.policy == IDPolicyCompact {
		id := store.FirstGroupID + len(c.groups)
		for c.indexByID(id) >= 0 {
			id++
		}
		return id
	}
	return c.nextID
}

func (c *Catalog) cloneGroups() []store.Group {
	out := make([]store.Group, len(c.groups), len(c.groups)+1)
	for i, g := range c.groups {
		out[i] = g.Clone()
	}
	return out
}

func (c *Catalog) indexByID(id int) int {
	for i := range c.groups {
		if c.groups[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) indexByName(name string) int {
	for i := range c.groups {
		if c.groups[i].Name == name {
			return i
		}
	}
	return -1
}
