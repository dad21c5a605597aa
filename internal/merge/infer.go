package merge

import "rookery/internal/collect"

// Link is an inferred reply-parent and conversation-root pair for one post.
type Link struct {
	ParentID string
	RootID   string
}

// InferReplyLinks reconstructs reply threading from listing order. A record
// not tagged as a reply opens a new conversation rooted at itself; a reply
// takes the previous record as its parent and inherits the open conversation
// root, falling back to the previous record's id (or its own) when no root is
// open. This is a best-effort heuristic, not ground truth: it holds only while
// the listing order reflects reply adjacency, and an upstream reordering
// silently degrades the inferred links.
func InferReplyLinks(ordered []collect.RawPost) map[string]Link {
	links := make(map[string]Link, len(ordered))
	prevID := ""
	rootID := ""
	for _, p := range ordered {
		if p.ID == "" {
			continue
		}
		if !p.IsReply {
			links[p.ID] = Link{RootID: p.ID}
			rootID = p.ID
		} else {
			root := rootID
			if root == "" {
				root = prevID
			}
			if root == "" {
				root = p.ID
			}
			links[p.ID] = Link{ParentID: prevID, RootID: root}
		}
		prevID = p.ID
	}
	return links
}
