// Package domain holds the shared entity types from the data model (spec
// §3). Every other package imports these instead of redeclaring shapes.
package domain

import "time"

// Document is immutable after ingestion; destroyed only by explicit purge.
type Document struct {
	ID        string
	SourceURI string
	Content   string
	Metadata  DocumentMetadata
}

// DocumentMetadata carries the descriptive fields of a Document.
type DocumentMetadata struct {
	Type        string
	CreatedAt   time.Time
	RelatedNode string // optional
	Language    string
}

// Chunk is derived from a Document. Invariant: 0 <= Ordinal <
// chunk_count(document); chunks for a (document, embed_version) pair form a
// contiguous sequence.
type Chunk struct {
	ID           string
	DocumentID   string
	Ordinal      int
	Text         string
	TokenCount   int
	EmbedVersion string
}

// Embedding holds a vector for one chunk under one embed version.
type Embedding struct {
	ChunkID string
	ModelID string
	Version string
	Vector  []float32
}

// IndexState is the lifecycle state of a VectorIndex.
type IndexState string

const (
	IndexBuilding IndexState = "building"
	IndexReady    IndexState = "ready"
	IndexRetired  IndexState = "retired"
)

// VectorIndex is a physical index behind a logical Alias.
type VectorIndex struct {
	Name         string
	EmbedVersion string
	State        IndexState
	CreatedAt    time.Time
}

// FeeStats summarizes a node's historical fee behavior, used by scoring.
type FeeStats struct {
	AvgFeeRatePPM   float64
	RevenueSatDaily float64
}

// NodeSnapshot is mutated only by ingestion; read-only elsewhere.
type NodeSnapshot struct {
	NodePubkey         string
	CapturedAt         time.Time
	CapacitySat        int64
	NumChannelsActive  int
	NumChannelsTotal   int
	LocalBalanceSat    int64
	RemoteBalanceSat   int64
	CentralityScore    float64 // [0,1]
	RoutingSuccessRate float64 // [0,1]
	ReputationScore    float64 // [0,1]
	UptimeRatio        float64 // [0,1]
	FeeStats           FeeStats
}

// Valid reports whether the snapshot's cross-field invariants hold
// (spec §3/§8): local+remote <= capacity, active <= total.
func (n NodeSnapshot) Valid() bool {
	if n.LocalBalanceSat+n.RemoteBalanceSat > n.CapacitySat {
		return false
	}
	if n.NumChannelsActive > n.NumChannelsTotal {
		return false
	}
	return true
}

// FeePolicy is a channel's current routing fee policy.
type FeePolicy struct {
	BaseFeeMsat   int64
	FeeRatePPM    int64
	TimeLockDelta int32
}

// ChannelState describes one Lightning channel from the node's perspective.
type ChannelState struct {
	ChannelID       string
	NodePubkey      string
	PeerPubkey      string
	CapacitySat     int64
	LocalBalanceSat int64
	Active          bool
	Policy          FeePolicy
	LastSeenAt      time.Time
}

// DecisionType enumerates the kinds of action MCP can take.
type DecisionType string

const (
	DecisionOpenChannel  DecisionType = "open_channel"
	DecisionCloseChannel DecisionType = "close_channel"
	DecisionUpdateFee    DecisionType = "update_fee"
	DecisionRebalance    DecisionType = "rebalance"
	DecisionNoop         DecisionType = "noop"
)

// DecisionStatus enumerates the lifecycle states of a Decision.
type DecisionStatus string

const (
	DecisionPending    DecisionStatus = "pending"
	DecisionApplied    DecisionStatus = "applied"
	DecisionRejected   DecisionStatus = "rejected"
	DecisionRolledBack DecisionStatus = "rolled_back"
	DecisionFailed     DecisionStatus = "failed"
)

// Decision is a typed, persisted operator action.
type Decision struct {
	DecisionID    string
	NodePubkey    string
	ChannelID     string // optional, empty for node-level decisions
	Type          DecisionType
	Payload       map[string]any
	RationaleText string
	Score         float64
	CreatedAt     time.Time
	Status        DecisionStatus
	StatusReason  string
}

// RollbackEntry exists iff the corresponding Decision reached "applied".
type RollbackEntry struct {
	DecisionID      string
	PriorState      map[string]any
	ReversalPayload map[string]any
	CreatedAt       time.Time
}

// UserProfile is an enrolled operator.
type UserProfile struct {
	UserID               string
	TenantID             string
	LightningPubkey      string
	DailyReportEnabled   bool
	Timezone             string
	NotificationChannels []string
	ApplyDecisions       bool // opted in to non-dry-run application
}

// ReportStatus enumerates the DailyReport state machine (spec §4.8).
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportRunning   ReportStatus = "running"
	ReportSucceeded ReportStatus = "succeeded"
	ReportFailed    ReportStatus = "failed"
)

// ReportSection is one labelled part of a DailyReport.
type ReportSection struct {
	Title string
	Body  string
}

// DailyReport is the per-user, per-day generated artifact.
type DailyReport struct {
	ReportID         string
	UserID           string
	TenantID         string
	NodePubkey       string
	ReportDate       time.Time // UTC date, truncated to midnight
	GenerationStatus ReportStatus
	AttemptCount     int
	Sections         []ReportSection
	DecisionsSummary string
	FailureReason    string
	GeneratedAt      time.Time
}
