package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType distinguishes container folders from cost-bearing files.
type EventType string

const (
	EventTypeFolder EventType = "folder"
	EventTypeFile   EventType = "file"
)

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	return t == EventTypeFolder || t == EventTypeFile
}

// RootEventName is the display name of the folder created with every project.
const RootEventName = "/"

// ProjectEvent is a node of a project's event tree.
type ProjectEvent struct {
	ID          uuid.UUID      `json:"id"`
	ProjectID   uuid.UUID      `json:"project_id"`
	UserID      *uuid.UUID     `json:"user_id,omitempty"`
	ParentID    *uuid.UUID     `json:"parent_id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Extra       map[string]any `json:"extra"`
	EventType   EventType      `json:"event_type"`
	SortOrder   int            `json:"sort_order"`
	Path        string         `json:"path"`
	Depth       int            `json:"depth"`
	Note        string         `json:"note"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsRoot reports whether the event is its project's root.
func (e *ProjectEvent) IsRoot() bool {
	return e.ParentID == nil
}

// IsFolder reports whether the event is a folder.
func (e *ProjectEvent) IsFolder() bool {
	return e.EventType == EventTypeFolder
}

// NewEventInput is the input for creating an event.
// Cost is only honoured for file events.
type NewEventInput struct {
	ProjectID   uuid.UUID
	ParentID    *uuid.UUID
	Name        string
	Description *string
	EventType   EventType
	SortOrder   int
	Extra       map[string]any
	Cost        *FileCostPatch
}

// EventPatch holds the mutable metadata of an event.
// Type, parent and path are fixed at creation.
type EventPatch struct {
	Name        *string
	Description *string
	SortOrder   *int
	Extra       map[string]any
	Note        *string
}

// IsEmpty reports whether the patch changes nothing.
func (p EventPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.SortOrder == nil && p.Extra == nil && p.Note == nil
}

// Apply copies the set fields onto e.
func (p EventPatch) Apply(e *ProjectEvent) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Description != nil {
		e.Description = p.Description
	}
	if p.SortOrder != nil {
		e.SortOrder = *p.SortOrder
	}
	if p.Extra != nil {
		e.Extra = p.Extra
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
}

// EventFilter narrows the flat event listing.
type EventFilter struct {
	ListOptions
	EventType EventType
}

// EventWithCost pairs an event with its cost record.
// Cost is a *FileCost for files and a CostSummary for folders.
type EventWithCost struct {
	*ProjectEvent
	Cost Cost `json:"cost"`
}

// EventNode is one node of the nested tree returned to the UI.
type EventNode struct {
	ID        uuid.UUID    `json:"id"`
	ParentID  *uuid.UUID   `json:"parent_id"`
	Name      string       `json:"name"`
	EventType EventType    `json:"event_type"`
	SortOrder int          `json:"sort_order"`
	Path      string       `json:"path"`
	Depth     int          `json:"depth"`
	Cost      Cost         `json:"cost"`
	Children  []*EventNode `json:"children"`
}

// BuildEventTree nests events (ordered by path) under their parents.
// Events whose parent is absent from the input become top-level nodes.
func BuildEventTree(events []*EventWithCost) []*EventNode {
	nodes := make(map[uuid.UUID]*EventNode, len(events))
	for _, ev := range events {
		nodes[ev.ID] = &EventNode{
			ID:        ev.ID,
			ParentID:  ev.ParentID,
			Name:      ev.Name,
			EventType: ev.EventType,
			SortOrder: ev.SortOrder,
			Path:      ev.Path,
			Depth:     ev.Depth,
			Cost:      ev.Cost,
			Children:  []*EventNode{},
		}
	}

	tree := []*EventNode{}
	for _, ev := range events {
		node := nodes[ev.ID]
		if ev.ParentID != nil {
			if parent, ok := nodes[*ev.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		tree = append(tree, node)
	}
	return tree
}
