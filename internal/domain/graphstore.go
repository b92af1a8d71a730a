package domain

import (
	"context"
	"time"
)

// AccountStore holds account nodes.
type AccountStore interface {
	SaveAccount(ctx context.Context, a *Account) error
	Account(ctx context.Context, id string) (*Account, error)
	AccountByNumber(ctx context.Context, number string) (*Account, error)
	AccountsByCustomer(ctx context.Context, customerID string) ([]*Account, error)

	// HighRiskAccounts returns accounts with risk_score >= threshold,
	// highest first, capped at limit.
	HighRiskAccounts(ctx context.Context, threshold float64, limit int) ([]*Account, error)

	// UpdateAccountRisk persists a recomputed risk score. The write is a
	// full deterministic recomputation, so last-writer-wins is acceptable.
	UpdateAccountRisk(ctx context.Context, accountID string, score float64) error
}

// CustomerStore holds customer nodes and ownership edges.
type CustomerStore interface {
	SaveCustomer(ctx context.Context, c *Customer) error
	Customer(ctx context.Context, id string) (*Customer, error)
	CustomerByEmail(ctx context.Context, email string) (*Customer, error)

	// LinkOwnership records that customer owns account.
	LinkOwnership(ctx context.Context, customerID, accountID string) error
}

// TransactionStore holds transaction nodes and their debit/credit edges.
type TransactionStore interface {
	SaveTransaction(ctx context.Context, t *Transaction) error
	Transaction(ctx context.Context, id string) (*Transaction, error)

	// TransactionsByAccount returns transactions debiting or crediting the
	// account, newest first. Zero times leave the corresponding bound open.
	TransactionsByAccount(ctx context.Context, accountID string, from, to time.Time) ([]*Transaction, error)

	// CountTransactionsSince counts transactions touching the account with
	// timestamp >= since.
	CountTransactionsSince(ctx context.Context, accountID string, since time.Time) (int64, error)

	// FlaggedTransactions returns flagged transactions, newest first,
	// capped at limit.
	FlaggedTransactions(ctx context.Context, limit int) ([]*Transaction, error)
}

// InfraStore holds device, IP, and merchant nodes plus device-usage edges.
type InfraStore interface {
	SaveDevice(ctx context.Context, d *Device) error
	Device(ctx context.Context, id string) (*Device, error)

	SaveIPAddress(ctx context.Context, ip *IPAddress) error
	IPAddress(ctx context.Context, address string) (*IPAddress, error)

	SaveMerchant(ctx context.Context, m *Merchant) error
	Merchant(ctx context.Context, id string) (*Merchant, error)

	// RecordDeviceUse upserts a customer->device usage edge, bumping the
	// usage count and last-used timestamp.
	RecordDeviceUse(ctx context.Context, customerID, deviceID string, at time.Time) error
}

// RingStore holds fraud rings and their membership edges.
type RingStore interface {
	SaveRing(ctx context.Context, r *FraudRing) error
	Ring(ctx context.Context, id string) (*FraudRing, error)

	// ActiveRings returns rings not yet resolved, newest first.
	ActiveRings(ctx context.Context) ([]*FraudRing, error)

	// LinkMember attaches an entity to a ring with a role. Linking the same
	// entity twice is a no-op.
	LinkMember(ctx context.Context, ringID string, member EntityRef, role string) error

	// RingMemberCount returns the distinct linked-member count.
	RingMemberCount(ctx context.Context, ringID string) (int, error)
}

// AlertStore holds alerts.
type AlertStore interface {
	SaveAlert(ctx context.Context, a *Alert) error
	Alert(ctx context.Context, id string) (*Alert, error)
	UnresolvedAlerts(ctx context.Context) ([]*Alert, error)
	ResolveAlert(ctx context.Context, id string, at time.Time) error
}

// CounterpartySummary is one row of a fan-out or fan-in aggregation: an
// account with its distinct-counterparty count and summed amount within the
// queried window.
type CounterpartySummary struct {
	AccountID      string  `json:"accountId"`
	Counterparties int     `json:"counterparties"`
	TotalAmount    float64 `json:"totalAmount"`
}

// AccountFlow summarizes money movement through an account: inbound and
// outbound totals, and the elapsed time between the first inflow and the
// first outflow. HoldTime is negative when no outflow follows an inflow.
type AccountFlow struct {
	AccountID string        `json:"accountId"`
	TotalIn   float64       `json:"totalIn"`
	TotalOut  float64       `json:"totalOut"`
	HoldTime  time.Duration `json:"holdTime"`
}

// InfraKind selects which shared-infrastructure dimension to cluster on.
type InfraKind string

const (
	InfraDevice InfraKind = "device"
	InfraIP     InfraKind = "ip"
)

// InfraCluster is a device or IP shared by two or more distinct entities.
// Device clusters list customers; IP clusters list accounts. Member IDs are
// in canonical (sorted) order so each cluster is reported exactly once.
type InfraCluster struct {
	Kind             InfraKind `json:"kind"`
	InfrastructureID string    `json:"infrastructureId"`
	CustomerIDs      []string  `json:"customerIds,omitempty"`
	AccountIDs       []string  `json:"accountIds,omitempty"`
}

// GraphNode is a node of a neighborhood or path projection.
type GraphNode struct {
	ID    string     `json:"id"`
	Kind  EntityKind `json:"kind"`
	Label string     `json:"label,omitempty"`
}

// GraphEdge is a directed, typed edge of a neighborhood projection.
type GraphEdge struct {
	FromID   string `json:"fromId"`
	ToID     string `json:"toId"`
	Relation string `json:"relation"`
}

// Neighborhood is the bounded-depth subgraph around an entity.
type Neighborhood struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// PathStep is one hop of a connection path, including the relation that was
// traversed to reach the entity.
type PathStep struct {
	Entity   GraphNode `json:"entity"`
	Relation string    `json:"relation,omitempty"`
}

// GraphQueries are the aggregate and traversal primitives consumed by the
// detection engine and the investigation facade. All traversals are bounded
// by depth or window; none block indefinitely.
type GraphQueries interface {
	// FanOut aggregates distinct recipients and summed amounts per source
	// account for transactions with timestamp >= since, keeping accounts
	// with at least minRecipients distinct recipients, highest first.
	FanOut(ctx context.Context, since time.Time, minRecipients int) ([]CounterpartySummary, error)

	// FanIn is the symmetric aggregation over distinct senders per
	// destination account.
	FanIn(ctx context.Context, since time.Time, minSenders int) ([]CounterpartySummary, error)

	// AccountFlows computes inbound/outbound totals and first-in to
	// first-out hold time for every account with both inflow and outflow.
	AccountFlows(ctx context.Context) ([]AccountFlow, error)

	// SharedInfrastructure returns devices or IPs shared by at least
	// minUsers distinct customers (device) or accounts (ip).
	SharedInfrastructure(ctx context.Context, kind InfraKind, minUsers int) ([]InfraCluster, error)

	// Neighborhood returns the subgraph within depth hops of the entity.
	Neighborhood(ctx context.Context, entity EntityRef, depth int) (*Neighborhood, error)

	// ShortestPath returns a shortest connection path between two entities
	// within maxDepth hops, or ErrNotFound when none exists.
	ShortestPath(ctx context.Context, fromID, toID string, maxDepth int) ([]PathStep, error)

	// ResolveEntity determines the kind of an entity ID, trying accounts,
	// customers, transactions, devices, merchants, then IP addresses.
	ResolveEntity(ctx context.Context, id string) (EntityRef, error)
}

// GraphStore is the full capability contract of the persistent entity graph.
// The engine propagates store failures without internal retry; timeout and
// retry policy belong to the implementation.
type GraphStore interface {
	AccountStore
	CustomerStore
	TransactionStore
	InfraStore
	RingStore
	AlertStore
	GraphQueries

	Ping(ctx context.Context) error
	Close() error
}

// GraphStoreConfig holds configuration for graph store initialization.
type GraphStoreConfig struct {
	// Driver is the storage driver: "memory", "sqlite", or "postgres".
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
