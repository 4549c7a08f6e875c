// Package model defines the canonical graph entities the search core
// retrieves: nodes, entity edges, episodes, and communities.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies which entity a ranked candidate or retrieval request
// belongs to.
type Kind int

const (
	KindNode Kind = iota
	KindEdge
	KindEpisode
	KindCommunity
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindEdge:
		return "edge"
	case KindEpisode:
		return "episode"
	case KindCommunity:
		return "community"
	default:
		return "unknown"
	}
}

// Node represents an extracted entity.
type Node struct {
	UUID       uuid.UUID
	Name       string
	Labels     []string
	Summary    string
	Embedding  []float32
	GroupID    string
	CreatedAt  time.Time
	Attributes map[string]any
}

// Edge is a directed, named relationship between two nodes, bearing a
// bitemporal validity pair.
type Edge struct {
	UUID       uuid.UUID
	SourceUUID uuid.UUID
	TargetUUID uuid.UUID
	Name       string
	Fact       string
	Embedding  []float32
	EpisodeIDs []uuid.UUID
	GroupID    string
	CreatedAt  time.Time
	ValidAt    *time.Time
	InvalidAt  *time.Time
}

// Superseded reports whether the edge has been logically invalidated.
func (e Edge) Superseded() bool { return e.InvalidAt != nil }

// Validate enforces the edge's structural invariants (spec.md §3).
func (e Edge) Validate() error {
	if e.SourceUUID == e.TargetUUID {
		return errInvalidEdge("source and target node must be distinct")
	}
	if e.ValidAt != nil && e.InvalidAt != nil && e.InvalidAt.Before(*e.ValidAt) {
		return errInvalidEdge("invalid_at must not precede valid_at")
	}
	return nil
}

type edgeError string

func (e edgeError) Error() string { return string(e) }

func errInvalidEdge(msg string) error { return edgeError(msg) }

// SourceKind enumerates the provenance of an Episode's content.
type SourceKind int

const (
	SourceText SourceKind = iota
	SourceMessage
	SourceStructured
)

func (k SourceKind) String() string {
	switch k {
	case SourceText:
		return "text"
	case SourceMessage:
		return "message"
	case SourceStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// Episode is a textual record that contributed nodes/edges to the graph.
type Episode struct {
	UUID        uuid.UUID
	Name        string
	Content     string
	Source      SourceKind
	Description string
	GroupID     string
	CreatedAt   time.Time
	ValidAt     time.Time
	EdgeIDs     []uuid.UUID
}

// Community is a cluster over nodes; same shape as Node for search purposes,
// with an added hierarchy level (original_source/graphiti_core community
// detection depth, carried through per SPEC_FULL.md §3 supplement).
type Community struct {
	UUID      uuid.UUID
	Name      string
	Summary   string
	Embedding []float32
	Level     int
	GroupID   string
	CreatedAt time.Time
}

// Filter is a request-scoped predicate set shared by every retrieval method.
type Filter struct {
	GroupIDs           []string
	NodeTypes          []string
	ValidAfter         *time.Time
	ValidBefore        *time.Time
	IncludeInvalidated bool
	CenterNodeUUID     *uuid.UUID
	BFSOriginUUIDs     []uuid.UUID
	BFSMaxDepth        int
}
