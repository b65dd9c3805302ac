package comments

import "github.com/UkralStul/taskboard-comments/internal/domain"

// BuildTree assembles a flat, created_at-ordered list into reply threads.
//
// Roots are comments without a parent. Every other comment hangs under its parent,
// keeping input order among siblings. Comments whose parent is not in the list are
// dropped, as are comments caught in a parent cycle, since neither is reachable from
// a root. A comment with no replies keeps a nil Replies so it serializes without the
// key. The input is not modified; the result is built from copies.
func BuildTree(comments []*domain.Comment) []*domain.Comment {
	// Group children by parent id in one pass.
	children := make(map[string][]*domain.Comment, len(comments))
	roots := make([]*domain.Comment, 0)
	for _, c := range comments {
		if c == nil {
			continue
		}
		if c.ParentCommentID == nil {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentCommentID] = append(children[*c.ParentCommentID], c)
	}

	visited := make(map[string]bool, len(comments))
	return attach(roots, children, visited)
}

// attach copies level and recurses into each node's children. visited guarantees
// each id is emitted once, which also bounds the recursion on corrupt data.
func attach(level []*domain.Comment, children map[string][]*domain.Comment, visited map[string]bool) []*domain.Comment {
	out := make([]*domain.Comment, 0, len(level))
	for _, c := range level {
		if visited[c.ID] {
			continue
		}
		visited[c.ID] = true

		node := *c
		node.Replies = nil
		if kids := children[c.ID]; len(kids) > 0 {
			if replies := attach(kids, children, visited); len(replies) > 0 {
				node.Replies = replies
			}
		}
		out = append(out, &node)
	}
	return out
}

// Flatten walks a tree depth-first, parents before replies.
func Flatten(tree []*domain.Comment) []*domain.Comment {
	var out []*domain.Comment
	var walk func([]*domain.Comment)
	walk = func(level []*domain.Comment) {
		for _, c := range level {
			out = append(out, c)
			walk(c.Replies)
		}
	}
	walk(tree)
	return out
}
