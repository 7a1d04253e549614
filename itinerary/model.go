// Package itinerary defines the versioned itinerary document model and the
// two leaf components that operate on node identifiers: the ID Allocator
// and the legacy-ID Migration. Every other package in this module treats
// an *Itinerary as the unit of work.
package itinerary

import "time"

// Status is the lifecycle state of an Itinerary.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusGenerating Status = "generating"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// NodeType classifies what a Node represents on a Day.
type NodeType string

const (
	NodeAttraction NodeType = "attraction"
	NodeMeal       NodeType = "meal"
	NodeTransport  NodeType = "transport"
	NodeHotel      NodeType = "hotel"
	NodeFreetime   NodeType = "freetime"
)

// NodeStatus is the execution state of a single Node.
type NodeStatus string

const (
	NodeStatusPlanned    NodeStatus = "planned"
	NodeStatusInProgress NodeStatus = "in_progress"
	NodeStatusCompleted  NodeStatus = "completed"
)

// Itinerary is the root aggregate: a versioned travel plan spanning N
// calendar days, owned by one user. It is the unit the Document Store
// Gateway loads, the Change Engine mutates, and the Orchestrator commits.
type Itinerary struct {
	ItineraryID string    `json:"itineraryId"`
	Version     int       `json:"version"`
	UpdatedAt   int64     `json:"updatedAt"` // epoch millis

	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	StartDate   string   `json:"startDate"` // ISO date
	EndDate     string   `json:"endDate"`   // ISO date
	Currency    string   `json:"currency"`
	Themes      []string `json:"themes"`

	Summary string `json:"summary"`
	Status  Status `json:"status"`

	Days []*Day `json:"days"`

	// AgentData maps an agent name to its opaque per-agent payload
	// (provenance, raw LLM output, whatever the agent wants to keep
	// around between invocations).
	AgentData map[string]interface{} `json:"agentData,omitempty"`

	// Revisions and Chat are append-only and read-only to this module;
	// they are owned by the Document Store Gateway's revision log and
	// the chat transport, respectively. They round-trip through this
	// struct so a full load/save cycle never drops them.
	Revisions []RevisionRef `json:"revisions,omitempty"`
	Chat      []ChatMessage `json:"chat,omitempty"`
}

// RevisionRef is a pointer into the persistent revision log, enough to
// resolve an undo target without loading the full historical snapshot.
type RevisionRef struct {
	Version   int    `json:"version"`
	CreatedAt int64  `json:"createdAt"`
	Summary   string `json:"summary,omitempty"`
}

// ChatMessage is one turn of the chat-driven edit transcript.
type ChatMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Day is one calendar day of the Itinerary. Node order within a Day is
// semantic: it is the visit order.
type Day struct {
	DayNumber int    `json:"dayNumber"` // 1-based, unique within the Itinerary
	Date      string `json:"date"`
	Location  string `json:"location"`
	Pace      string `json:"pace,omitempty"`

	TotalDistanceKm float64 `json:"totalDistanceKm,omitempty"`
	TotalCost       float64 `json:"totalCost,omitempty"`
	TotalDuration   int     `json:"totalDurationMinutes,omitempty"`

	TimeWindowStart string `json:"timeWindowStart,omitempty"`
	TimeWindowEnd   string `json:"timeWindowEnd,omitempty"`
	TimeZone        string `json:"timeZone,omitempty"`

	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges,omitempty"`

	// NodeSeqHighWater is the highest node sequence number ever allocated
	// in this day, independent of which nodes currently exist. Allocate
	// reads and advances it so a deleted or moved-away node's number is
	// never reissued (spec.md §8's boundary behaviors).
	NodeSeqHighWater int `json:"nodeSeqHighWater,omitempty"`
}

// Edge is an optional transit leg between two consecutive nodes.
type Edge struct {
	FromNodeID string  `json:"fromNodeId"`
	ToNodeID   string  `json:"toNodeId"`
	Mode       string  `json:"mode,omitempty"`
	DurationMin int    `json:"durationMinutes,omitempty"`
	DistanceKm float64 `json:"distanceKm,omitempty"`
}

// Location is a place reference attached to a Node.
type Location struct {
	Name      string  `json:"name"`
	Address   string  `json:"address,omitempty"`
	Lat       float64 `json:"lat,omitempty"`
	Lng       float64 `json:"lng,omitempty"`
	PlaceID   string  `json:"placeId,omitempty"`
}

// Node is a single visit, meal, transit leg, or free-time slot within a
// Day. Its ID is the contract every agent and every Change Engine
// operation resolves against; see id.go.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Title    string   `json:"title"`
	Location Location `json:"location"`

	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`

	Cost       float64  `json:"cost,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	Tips       []string `json:"tips,omitempty"`
	Links      []string `json:"links,omitempty"`
	BookingRef string   `json:"bookingRef,omitempty"`
	Locked     bool     `json:"locked"`

	Status    NodeStatus `json:"status"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	UpdatedAt int64      `json:"updatedAt,omitempty"`
}

// DayByNumber returns the Day with the given number, or nil.
func (it *Itinerary) DayByNumber(n int) *Day {
	for _, d := range it.Days {
		if d.DayNumber == n {
			return d
		}
	}
	return nil
}

// FindNode returns the node with the given id and the day that owns it,
// scanning every day regardless of the id's `day{N}_` prefix — per
// spec.md §8, the prefix is informational, not a routing key.
func (it *Itinerary) FindNode(id string) (*Node, *Day) {
	for _, d := range it.Days {
		for _, n := range d.Nodes {
			if n.ID == id {
				return n, d
			}
		}
	}
	return nil, nil
}

// NodeIDs returns every node id in the itinerary, day order then visit
// order, for building "available ids" diagnostics (spec.md §7).
func (it *Itinerary) NodeIDs() []string {
	var ids []string
	for _, d := range it.Days {
		for _, n := range d.Nodes {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// DayNodeIDs returns the node ids belonging to a single day, in visit
// order, for the per-day "available ids" diagnostic.
func (it *Itinerary) DayNodeIDs(dayNumber int) []string {
	d := it.DayByNumber(dayNumber)
	if d == nil {
		return nil
	}
	ids := make([]string, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// Clone returns a deep copy, used by the Change Engine to mutate a
// working copy and by undo to snapshot pre-commit state.
func (it *Itinerary) Clone() *Itinerary {
	out := *it
	out.Themes = append([]string(nil), it.Themes...)
	out.Days = make([]*Day, len(it.Days))
	for i, d := range it.Days {
		nd := *d
		nd.Nodes = make([]*Node, len(d.Nodes))
		for j, n := range d.Nodes {
			nn := *n
			nn.Labels = append([]string(nil), n.Labels...)
			nn.Tips = append([]string(nil), n.Tips...)
			nn.Links = append([]string(nil), n.Links...)
			nd.Nodes[j] = &nn
		}
		nd.Edges = append([]Edge(nil), d.Edges...)
		out.Days[i] = &nd
	}
	out.Revisions = append([]RevisionRef(nil), it.Revisions...)
	out.Chat = append([]ChatMessage(nil), it.Chat...)
	if it.AgentData != nil {
		out.AgentData = make(map[string]interface{}, len(it.AgentData))
		for k, v := range it.AgentData {
			out.AgentData[k] = v
		}
	}
	return &out
}

// Touch bumps Version and UpdatedAt, marking a successful commit. Callers
// pass the current time in millis so tests stay deterministic.
func (it *Itinerary) Touch(nowMillis int64) {
	it.Version++
	it.UpdatedAt = nowMillis
}

// NowMillis is the epoch-millisecond clock used throughout this module.
// Centralized so tests can't drift between time.Now().UnixMilli() call
// sites and so a future fake clock has one seam to replace.
func NowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
