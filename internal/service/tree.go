package service

import (
	"context"
	"errors"
	"fmt"

	"xplore/internal/models"
	"xplore/internal/repository"
)

// Unbounded renders a subtree without a depth limit.
const Unbounded = -1

// maxAncestorHops bounds a parent-chain walk so corrupt data cannot loop forever.
const maxAncestorHops = 10_000

var errParentCycle = errors.New("parent chain does not terminate")

// TreeAssembler derives depths and subtrees from the flat parent-id relation.
// Everything it builds is scoped to a single call.
type TreeAssembler struct {
	posts repository.PostRepository
}

func NewTreeAssembler(posts repository.PostRepository) *TreeAssembler {
	return &TreeAssembler{posts: posts}
}

// ComputeDepths returns the depth of every post in the batch. Cached depths
// are taken as-is. Uncached posts walk their parent chain; ancestors that are
// not part of the batch are loaded one hop at a time and memoized for the rest
// of the batch.
func (t *TreeAssembler) ComputeDepths(ctx context.Context, posts []*models.Post) (map[uint]int, error) {
	depths := make(map[uint]int, len(posts))
	known := make(map[uint]*models.Post, len(posts))
	for _, p := range posts {
		if p != nil {
			known[p.ID] = p
		}
	}

	for _, p := range posts {
		if p == nil {
			continue
		}
		if _, done := depths[p.ID]; done {
			continue
		}
		if _, err := t.depthOf(ctx, p, known, depths); err != nil {
			return nil, err
		}
	}
	return depths, nil
}

func (t *TreeAssembler) depthOf(ctx context.Context, p *models.Post, known map[uint]*models.Post, memo map[uint]int) (int, error) {
	// Walk up until a node with a known depth, then unwind.
	var chain []*models.Post
	base := 0
	cur := p
	for hops := 0; ; hops++ {
		if hops > maxAncestorHops {
			return 0, fmt.Errorf("post %d: %w", p.ID, errParentCycle)
		}
		if d, ok := memo[cur.ID]; ok {
			base = d
			break
		}
		if cur.Depth != nil {
			memo[cur.ID] = *cur.Depth
			base = *cur.Depth
			break
		}
		if cur.ParentID == nil {
			memo[cur.ID] = 0
			base = 0
			break
		}
		chain = append(chain, cur)

		parent, ok := known[*cur.ParentID]
		if !ok {
			loaded, err := t.posts.GetByID(ctx, *cur.ParentID)
			if err != nil {
				return 0, fmt.Errorf("load ancestor %d: %w", *cur.ParentID, err)
			}
			known[loaded.ID] = loaded
			parent = loaded
		}
		cur = parent
	}

	for i := len(chain) - 1; i >= 0; i-- {
		base++
		memo[chain[i].ID] = base
	}
	return memo[p.ID], nil
}

// Forest is an in-memory child index over the subtrees of a set of roots.
type Forest struct {
	roots    []*models.Post
	byID     map[uint]*models.Post
	children map[uint][]*models.Post
}

// Collect loads every descendant of roots, one bulk query per tree level.
func (t *TreeAssembler) Collect(ctx context.Context, roots []*models.Post) (*Forest, error) {
	f := &Forest{
		byID:     make(map[uint]*models.Post, len(roots)),
		children: make(map[uint][]*models.Post),
	}
	level := make([]uint, 0, len(roots))
	for _, r := range roots {
		if r == nil {
			continue
		}
		if _, seen := f.byID[r.ID]; seen {
			continue
		}
		f.byID[r.ID] = r
		f.roots = append(f.roots, r)
		level = append(level, r.ID)
	}

	for len(level) > 0 {
		kids, err := t.posts.ListChildren(ctx, level)
		if err != nil {
			return nil, err
		}
		next := make([]uint, 0, len(kids))
		for _, k := range kids {
			if k.ParentID == nil {
				continue
			}
			if _, seen := f.byID[k.ID]; seen {
				continue
			}
			f.byID[k.ID] = k
			f.children[*k.ParentID] = append(f.children[*k.ParentID], k)
			next = append(next, k.ID)
		}
		level = next
	}
	return f, nil
}

// Children returns the direct children of id, oldest first.
func (f *Forest) Children(id uint) []*models.Post {
	if f == nil {
		return nil
	}
	return f.children[id]
}

// CountDescendants returns the size of the subtree below id, at any depth.
func (f *Forest) CountDescendants(id uint) int {
	if f == nil {
		return 0
	}
	n := 0
	stack := append([]*models.Post(nil), f.children[id]...)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, f.children[top.ID]...)
	}
	return n
}

// Descendants returns the subtree below id in breadth-first order.
func (f *Forest) Descendants(id uint) []*models.Post {
	if f == nil {
		return nil
	}
	var out []*models.Post
	queue := append([]*models.Post(nil), f.children[id]...)
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		out = append(out, head)
		queue = append(queue, f.children[head.ID]...)
	}
	return out
}

// All returns the roots followed by every collected descendant.
func (f *Forest) All() []*models.Post {
	if f == nil {
		return nil
	}
	out := make([]*models.Post, 0, len(f.byID))
	for _, r := range f.roots {
		out = append(out, r)
		out = append(out, f.Descendants(r.ID)...)
	}
	return out
}
