package merge

import (
	"testing"

	"rookery/internal/collect"
)

func TestInferReplyLinksChain(t *testing.T) {
	ordered := []collect.RawPost{
		{ID: "1"},
		{ID: "2", IsReply: true},
		{ID: "3", IsReply: true},
		{ID: "4"},
	}
	links := InferReplyLinks(ordered)

	if l := links["1"]; l.ParentID != "" || l.RootID != "1" {
		t.Fatalf("post 1: %+v", l)
	}
	if l := links["2"]; l.ParentID != "1" || l.RootID != "1" {
		t.Fatalf("post 2: %+v", l)
	}
	if l := links["3"]; l.ParentID != "2" || l.RootID != "1" {
		t.Fatalf("post 3: %+v", l)
	}
	if l := links["4"]; l.ParentID != "" || l.RootID != "4" {
		t.Fatalf("post 4: %+v", l)
	}
}

func TestInferReplyLinksReplyFirst(t *testing.T) {
	// a listing that opens mid-thread has no root to inherit; best effort is
	// rooting the orphan at itself and chaining the rest off it
	ordered := []collect.RawPost{
		{ID: "9", IsReply: true},
		{ID: "10", IsReply: true},
	}
	links := InferReplyLinks(ordered)
	if l := links["9"]; l.ParentID != "" || l.RootID != "9" {
		t.Fatalf("post 9: %+v", l)
	}
	if l := links["10"]; l.ParentID != "9" || l.RootID != "9" {
		t.Fatalf("post 10: %+v", l)
	}
}

func TestInferReplyLinksSkipsMissingIDs(t *testing.T) {
	ordered := []collect.RawPost{
		{ID: "1"},
		{ID: "", IsReply: true},
		{ID: "3", IsReply: true},
	}
	links := InferReplyLinks(ordered)
	if _, ok := links[""]; ok {
		t.Fatal("empty id should not be linked")
	}
	if l := links["3"]; l.ParentID != "1" || l.RootID != "1" {
		t.Fatalf("post 3: %+v", l)
	}
}
