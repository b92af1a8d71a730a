package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/finsec/fraudlens/internal/domain"
)

// MemoryStore is an in-memory GraphStore. It backs unit tests and the
// zero-dependency demo mode; all methods are safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	accounts  map[string]*domain.Account
	byNumber  map[string]string
	customers map[string]*domain.Customer
	byEmail   map[string]string

	transactions map[string]*domain.Transaction
	txByAccount  map[string][]string

	ownership map[string]map[string]bool // customerID -> accountIDs
	owners    map[string]map[string]bool // accountID -> customerIDs

	devices   map[string]*domain.Device
	ips       map[string]*domain.IPAddress
	merchants map[string]*domain.Merchant

	deviceUsers  map[string]map[string]bool // deviceID -> customerIDs
	devicesUsed  map[string]map[string]bool // customerID -> deviceIDs
	deviceCounts map[string]int             // customerID|deviceID -> use count

	rings       map[string]*domain.FraudRing
	ringMembers map[string]map[string]domain.EntityRef

	alerts map[string]*domain.Alert
}

// NewMemoryStore creates an empty in-memory graph store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]*domain.Account),
		byNumber:     make(map[string]string),
		customers:    make(map[string]*domain.Customer),
		byEmail:      make(map[string]string),
		transactions: make(map[string]*domain.Transaction),
		txByAccount:  make(map[string][]string),
		ownership:    make(map[string]map[string]bool),
		owners:       make(map[string]map[string]bool),
		devices:      make(map[string]*domain.Device),
		ips:          make(map[string]*domain.IPAddress),
		merchants:    make(map[string]*domain.Merchant),
		deviceUsers:  make(map[string]map[string]bool),
		devicesUsed:  make(map[string]map[string]bool),
		deviceCounts: make(map[string]int),
		rings:        make(map[string]*domain.FraudRing),
		ringMembers:  make(map[string]map[string]domain.EntityRef),
		alerts:       make(map[string]*domain.Alert),
	}
}

func (m *MemoryStore) SaveAccount(ctx context.Context, a *domain.Account) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	cp.RiskScore = domain.Clamp100(cp.RiskScore)
	m.accounts[a.ID] = &cp
	m.byNumber[a.Number] = a.ID
	return nil
}

func (m *MemoryStore) Account(ctx context.Context, id string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) AccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	m.mu.RLock()
	id, ok := m.byNumber[number]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.Account(ctx, id)
}

func (m *MemoryStore) AccountsByCustomer(ctx context.Context, customerID string) ([]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var accounts []*domain.Account
	for accountID := range m.ownership[customerID] {
		if a, ok := m.accounts[accountID]; ok {
			cp := *a
			accounts = append(accounts, &cp)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedDate.Before(accounts[j].CreatedDate)
	})
	return accounts, nil
}

func (m *MemoryStore) HighRiskAccounts(ctx context.Context, threshold float64, limit int) ([]*domain.Account, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var accounts []*domain.Account
	for _, a := range m.accounts {
		if a.RiskScore >= threshold {
			cp := *a
			accounts = append(accounts, &cp)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].RiskScore != accounts[j].RiskScore {
			return accounts[i].RiskScore > accounts[j].RiskScore
		}
		return accounts[i].ID < accounts[j].ID
	})
	if len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

func (m *MemoryStore) UpdateAccountRisk(ctx context.Context, accountID string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	a.RiskScore = domain.Clamp100(score)
	return nil
}

func (m *MemoryStore) SaveCustomer(ctx context.Context, c *domain.Customer) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.customers[c.ID] = &cp
	m.byEmail[c.Email] = c.ID
	return nil
}

func (m *MemoryStore) Customer(ctx context.Context, id string) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) CustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	m.mu.RLock()
	id, ok := m.byEmail[email]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.Customer(ctx, id)
}

func (m *MemoryStore) LinkOwnership(ctx context.Context, customerID, accountID string) error {
	if customerID == "" || accountID == "" {
		return fmt.Errorf("%w: customerID and accountID are required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ownership[customerID] == nil {
		m.ownership[customerID] = make(map[string]bool)
	}
	m.ownership[customerID][accountID] = true

	if m.owners[accountID] == nil {
		m.owners[accountID] = make(map[string]bool)
	}
	m.owners[accountID][customerID] = true
	return nil
}

func (m *MemoryStore) SaveTransaction(ctx context.Context, t *domain.Transaction) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *t
	cp.FraudScore = domain.Clamp01(cp.FraudScore)
	if _, exists := m.transactions[t.ID]; !exists {
		if t.FromAccountID != "" {
			m.txByAccount[t.FromAccountID] = append(m.txByAccount[t.FromAccountID], t.ID)
		}
		if t.ToAccountID != "" && t.ToAccountID != t.FromAccountID {
			m.txByAccount[t.ToAccountID] = append(m.txByAccount[t.ToAccountID], t.ID)
		}
	}
	m.transactions[t.ID] = &cp
	return nil
}

func (m *MemoryStore) Transaction(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) TransactionsByAccount(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Transaction, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: accountID is required", ErrInvalidInput)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: date range end precedes start", ErrInvalidInput)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var transactions []*domain.Transaction
	for _, txID := range m.txByAccount[accountID] {
		t := m.transactions[txID]
		if !from.IsZero() && t.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && t.Timestamp.After(to) {
			continue
		}
		cp := *t
		transactions = append(transactions, &cp)
	}
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].Timestamp.After(transactions[j].Timestamp)
	})
	return transactions, nil
}

func (m *MemoryStore) CountTransactionsSince(ctx context.Context, accountID string, since time.Time) (int64, error) {
	if accountID == "" {
		return 0, fmt.Errorf("%w: accountID is required", ErrInvalidInput)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, txID := range m.txByAccount[accountID] {
		if !m.transactions[txID].Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) FlaggedTransactions(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var transactions []*domain.Transaction
	for _, t := range m.transactions {
		if t.IsFlagged {
			cp := *t
			transactions = append(transactions, &cp)
		}
	}
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].Timestamp.After(transactions[j].Timestamp)
	})
	if len(transactions) > limit {
		transactions = transactions[:limit]
	}
	return transactions, nil
}

func (m *MemoryStore) SaveDevice(ctx context.Context, d *domain.Device) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *d
	m.devices[d.ID] = &cp
	return nil
}

func (m *MemoryStore) Device(ctx context.Context, id string) (*domain.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) SaveIPAddress(ctx context.Context, ip *domain.IPAddress) error {
	if ip == nil || ip.Address == "" {
		return fmt.Errorf("%w: ip address is required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *ip
	cp.RiskScore = domain.Clamp01(cp.RiskScore)
	m.ips[ip.Address] = &cp
	return nil
}

func (m *MemoryStore) IPAddress(ctx context.Context, address string) (*domain.IPAddress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ip, ok := m.ips[address]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ip
	return &cp, nil
}

func (m *MemoryStore) SaveMerchant(ctx context.Context, mr *domain.Merchant) error {
	if mr == nil || mr.ID == "" {
		return fmt.Errorf("%w: merchant id is required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *mr
	m.merchants[mr.ID] = &cp
	return nil
}

func (m *MemoryStore) Merchant(ctx context.Context, id string) (*domain.Merchant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mr, ok := m.merchants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mr
	return &cp, nil
}

func (m *MemoryStore) RecordDeviceUse(ctx context.Context, customerID, deviceID string, at time.Time) error {
	if customerID == "" || deviceID == "" {
		return fmt.Errorf("%w: customerID and deviceID are required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deviceUsers[deviceID] == nil {
		m.deviceUsers[deviceID] = make(map[string]bool)
	}
	m.deviceUsers[deviceID][customerID] = true

	if m.devicesUsed[customerID] == nil {
		m.devicesUsed[customerID] = make(map[string]bool)
	}
	m.devicesUsed[customerID][deviceID] = true

	m.deviceCounts[customerID+"|"+deviceID]++
	return nil
}

func (m *MemoryStore) SaveRing(ctx context.Context, r *domain.FraudRing) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("%w: ring id is required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	cp.Confidence = domain.Clamp01(cp.Confidence)
	m.rings[r.ID] = &cp
	return nil
}

func (m *MemoryStore) Ring(ctx context.Context, id string) (*domain.FraudRing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	cp.MemberCount = len(m.ringMembers[id])
	return &cp, nil
}

func (m *MemoryStore) ActiveRings(ctx context.Context) ([]*domain.FraudRing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rings []*domain.FraudRing
	for _, r := range m.rings {
		if r.Status == domain.RingResolved {
			continue
		}
		cp := *r
		cp.MemberCount = len(m.ringMembers[r.ID])
		rings = append(rings, &cp)
	}
	sort.Slice(rings, func(i, j int) bool {
		return rings[i].DetectedDate.After(rings[j].DetectedDate)
	})
	return rings, nil
}

func (m *MemoryStore) LinkMember(ctx context.Context, ringID string, member domain.EntityRef, role string) error {
	if ringID == "" || member.ID == "" {
		return fmt.Errorf("%w: ringID and member id are required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ringMembers[ringID] == nil {
		m.ringMembers[ringID] = make(map[string]domain.EntityRef)
	}
	m.ringMembers[ringID][member.ID] = member
	return nil
}

func (m *MemoryStore) RingMemberCount(ctx context.Context, ringID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ringMembers[ringID]), nil
}

func (m *MemoryStore) SaveAlert(ctx context.Context, a *domain.Alert) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	if a.RelatedEntities != nil {
		cp.RelatedEntities = append([]string(nil), a.RelatedEntities...)
	}
	m.alerts[a.ID] = &cp
	return nil
}

func (m *MemoryStore) Alert(ctx context.Context, id string) (*domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	cp.RelatedEntities = append([]string(nil), a.RelatedEntities...)
	return &cp, nil
}

func (m *MemoryStore) UnresolvedAlerts(ctx context.Context) ([]*domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var alerts []*domain.Alert
	for _, a := range m.alerts {
		if a.IsResolved {
			continue
		}
		cp := *a
		cp.RelatedEntities = append([]string(nil), a.RelatedEntities...)
		alerts = append(alerts, &cp)
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	return alerts, nil
}

func (m *MemoryStore) ResolveAlert(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.IsResolved = true
	resolved := at
	a.ResolvedAt = &resolved
	return nil
}

func (m *MemoryStore) FanOut(ctx context.Context, since time.Time, minRecipients int) ([]domain.CounterpartySummary, error) {
	if minRecipients < 2 {
		return nil, fmt.Errorf("%w: minRecipients must be at least 2", ErrInvalidInput)
	}
	return m.counterparties(since, minRecipients, false), nil
}

func (m *MemoryStore) FanIn(ctx context.Context, since time.Time, minSenders int) ([]domain.CounterpartySummary, error) {
	if minSenders < 2 {
		return nil, fmt.Errorf("%w: minSenders must be at least 2", ErrInvalidInput)
	}
	return m.counterparties(since, minSenders, true), nil
}

func (m *MemoryStore) counterparties(since time.Time, min int, inbound bool) []domain.CounterpartySummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type agg struct {
		distinct map[string]bool
		total    float64
	}
	byAccount := make(map[string]*agg)

	for _, t := range m.transactions {
		if t.Timestamp.Before(since) || t.FromAccountID == "" || t.ToAccountID == "" {
			continue
		}
		key, other := t.FromAccountID, t.ToAccountID
		if inbound {
			key, other = t.ToAccountID, t.FromAccountID
		}
		a := byAccount[key]
		if a == nil {
			a = &agg{distinct: make(map[string]bool)}
			byAccount[key] = a
		}
		a.distinct[other] = true
		a.total += t.Amount
	}

	var summaries []domain.CounterpartySummary
	for accountID, a := range byAccount {
		if len(a.distinct) < min {
			continue
		}
		summaries = append(summaries, domain.CounterpartySummary{
			AccountID:      accountID,
			Counterparties: len(a.distinct),
			TotalAmount:    a.total,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Counterparties != summaries[j].Counterparties {
			return summaries[i].Counterparties > summaries[j].Counterparties
		}
		return summaries[i].AccountID < summaries[j].AccountID
	})
	return summaries
}

func (m *MemoryStore) AccountFlows(ctx context.Context) ([]domain.AccountFlow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type agg struct {
		totalIn, totalOut float64
		firstIn, firstOut time.Time
	}
	byAccount := make(map[string]*agg)

	get := func(id string) *agg {
		a := byAccount[id]
		if a == nil {
			a = &agg{}
			byAccount[id] = a
		}
		return a
	}

	for _, t := range m.transactions {
		if t.ToAccountID != "" {
			a := get(t.ToAccountID)
			a.totalIn += t.Amount
			if a.firstIn.IsZero() || t.Timestamp.Before(a.firstIn) {
				a.firstIn = t.Timestamp
			}
		}
		if t.FromAccountID != "" {
			a := get(t.FromAccountID)
			a.totalOut += t.Amount
			if a.firstOut.IsZero() || t.Timestamp.Before(a.firstOut) {
				a.firstOut = t.Timestamp
			}
		}
	}

	var flows []domain.AccountFlow
	for accountID, a := range byAccount {
		if a.totalIn == 0 || a.totalOut == 0 {
			continue
		}
		flows = append(flows, domain.AccountFlow{
			AccountID: accountID,
			TotalIn:   a.totalIn,
			TotalOut:  a.totalOut,
			HoldTime:  a.firstOut.Sub(a.firstIn),
		})
	}
	sort.Slice(flows, func(i, j int) bool {
		return flows[i].AccountID < flows[j].AccountID
	})
	return flows, nil
}

func (m *MemoryStore) SharedInfrastructure(ctx context.Context, kind domain.InfraKind, minUsers int) ([]domain.InfraCluster, error) {
	if minUsers < 2 {
		return nil, fmt.Errorf("%w: minUsers must be at least 2", ErrInvalidInput)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var clusters []domain.InfraCluster

	switch kind {
	case domain.InfraDevice:
		for deviceID, customers := range m.deviceUsers {
			if len(customers) < minUsers {
				continue
			}
			clusters = append(clusters, domain.InfraCluster{
				Kind:             domain.InfraDevice,
				InfrastructureID: deviceID,
				CustomerIDs:      sortedKeys(customers),
			})
		}
	case domain.InfraIP:
		byIP := make(map[string]map[string]bool)
		for _, t := range m.transactions {
			if t.IPAddress == "" {
				continue
			}
			accountID := t.FromAccountID
			if accountID == "" {
				accountID = t.ToAccountID
			}
			if accountID == "" {
				continue
			}
			if byIP[t.IPAddress] == nil {
				byIP[t.IPAddress] = make(map[string]bool)
			}
			byIP[t.IPAddress][accountID] = true
		}
		for address, accounts := range byIP {
			if len(accounts) < minUsers {
				continue
			}
			clusters = append(clusters, domain.InfraCluster{
				Kind:             domain.InfraIP,
				InfrastructureID: address,
				AccountIDs:       sortedKeys(accounts),
			})
		}
	default:
		return nil, fmt.Errorf("%w: unknown infrastructure kind %q", ErrInvalidInput, kind)
	}

	sortClusters(clusters)
	return clusters, nil
}

func (m *MemoryStore) Neighborhood(ctx context.Context, entity domain.EntityRef, depth int) (*domain.Neighborhood, error) {
	if depth < 1 || depth > maxTraversalDepth {
		return nil, fmt.Errorf("%w: depth must be in [1, %d]", ErrInvalidInput, maxTraversalDepth)
	}

	start, err := m.nodeFor(entity)
	if err != nil {
		return nil, err
	}
	return bfsNeighborhood(ctx, start, depth, m.neighbors)
}

func (m *MemoryStore) ShortestPath(ctx context.Context, fromID, toID string, maxDepth int) ([]domain.PathStep, error) {
	if maxDepth < 1 || maxDepth > maxTraversalDepth {
		return nil, fmt.Errorf("%w: maxDepth must be in [1, %d]", ErrInvalidInput, maxTraversalDepth)
	}

	fromRef, err := m.ResolveEntity(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if _, err := m.ResolveEntity(ctx, toID); err != nil {
		return nil, err
	}

	start, err := m.nodeFor(fromRef)
	if err != nil {
		return nil, err
	}
	return bfsPath(ctx, start, toID, maxDepth, m.neighbors)
}

func (m *MemoryStore) ResolveEntity(ctx context.Context, id string) (domain.EntityRef, error) {
	if id == "" {
		return domain.EntityRef{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case m.accounts[id] != nil:
		return domain.EntityRef{ID: id, Kind: domain.KindAccount}, nil
	case m.customers[id] != nil:
		return domain.EntityRef{ID: id, Kind: domain.KindCustomer}, nil
	case m.transactions[id] != nil:
		return domain.EntityRef{ID: id, Kind: domain.KindTransaction}, nil
	case m.devices[id] != nil:
		return domain.EntityRef{ID: id, Kind: domain.KindDevice}, nil
	case m.merchants[id] != nil:
		return domain.EntityRef{ID: id, Kind: domain.KindMerchant}, nil
	case m.ips[id] != nil:
		return domain.EntityRef{ID: id, Kind: domain.KindIP}, nil
	}
	return domain.EntityRef{}, ErrNotFound
}

func (m *MemoryStore) nodeFor(ref domain.EntityRef) (domain.GraphNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node := domain.GraphNode{ID: ref.ID, Kind: ref.Kind}
	switch ref.Kind {
	case domain.KindAccount:
		a, ok := m.accounts[ref.ID]
		if !ok {
			return node, ErrNotFound
		}
		node.Label = a.Number
	case domain.KindCustomer:
		c, ok := m.customers[ref.ID]
		if !ok {
			return node, ErrNotFound
		}
		node.Label = c.Name
	case domain.KindTransaction:
		t, ok := m.transactions[ref.ID]
		if !ok {
			return node, ErrNotFound
		}
		node.Label = fmt.Sprintf("%.2f %s", t.Amount, t.Currency)
	case domain.KindDevice:
		d, ok := m.devices[ref.ID]
		if !ok {
			return node, ErrNotFound
		}
		node.Label = d.Type
	case domain.KindIP:
		if _, ok := m.ips[ref.ID]; !ok {
			return node, ErrNotFound
		}
		node.Label = ref.ID
	case domain.KindMerchant:
		mr, ok := m.merchants[ref.ID]
		if !ok {
			return node, ErrNotFound
		}
		node.Label = mr.Name
	default:
		return node, fmt.Errorf("%w: unknown entity kind %q", ErrInvalidInput, ref.Kind)
	}
	return node, nil
}

func (m *MemoryStore) neighbors(ctx context.Context, node domain.GraphNode) ([]neighborEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var edges []neighborEdge

	txNode := func(t *domain.Transaction) domain.GraphNode {
		return domain.GraphNode{
			ID:    t.ID,
			Kind:  domain.KindTransaction,
			Label: fmt.Sprintf("%.2f %s", t.Amount, t.Currency),
		}
	}

	switch node.Kind {
	case domain.KindAccount:
		for customerID := range m.owners[node.ID] {
			if c, ok := m.customers[customerID]; ok {
				edges = append(edges, neighborEdge{
					Node:     domain.GraphNode{ID: c.ID, Kind: domain.KindCustomer, Label: c.Name},
					Relation: "owns",
				})
			}
		}
		for i, txID := range m.txByAccount[node.ID] {
			if i >= maxEdgesPerNode {
				break
			}
			t := m.transactions[txID]
			if t.FromAccountID == node.ID {
				edges = append(edges, neighborEdge{Node: txNode(t), Relation: "debits", Outbound: true})
			} else {
				edges = append(edges, neighborEdge{Node: txNode(t), Relation: "credits"})
			}
		}

	case domain.KindCustomer:
		for accountID := range m.ownership[node.ID] {
			if a, ok := m.accounts[accountID]; ok {
				edges = append(edges, neighborEdge{
					Node:     domain.GraphNode{ID: a.ID, Kind: domain.KindAccount, Label: a.Number},
					Relation: "owns",
					Outbound: true,
				})
			}
		}
		for deviceID := range m.devicesUsed[node.ID] {
			if d, ok := m.devices[deviceID]; ok {
				edges = append(edges, neighborEdge{
					Node:     domain.GraphNode{ID: d.ID, Kind: domain.KindDevice, Label: d.Type},
					Relation: "uses",
					Outbound: true,
				})
			}
		}

	case domain.KindTransaction:
		t, ok := m.transactions[node.ID]
		if !ok {
			return nil, ErrNotFound
		}
		if a, ok := m.accounts[t.FromAccountID]; ok {
			edges = append(edges, neighborEdge{
				Node:     domain.GraphNode{ID: a.ID, Kind: domain.KindAccount, Label: a.Number},
				Relation: "debits",
			})
		}
		if a, ok := m.accounts[t.ToAccountID]; ok {
			edges = append(edges, neighborEdge{
				Node:     domain.GraphNode{ID: a.ID, Kind: domain.KindAccount, Label: a.Number},
				Relation: "credits",
				Outbound: true,
			})
		}
		if d, ok := m.devices[t.DeviceID]; ok {
			edges = append(edges, neighborEdge{
				Node:     domain.GraphNode{ID: d.ID, Kind: domain.KindDevice, Label: d.Type},
				Relation: "via_device",
				Outbound: true,
			})
		}
		if ip, ok := m.ips[t.IPAddress]; ok {
			edges = append(edges, neighborEdge{
				Node:     domain.GraphNode{ID: ip.Address, Kind: domain.KindIP, Label: ip.Address},
				Relation: "via_ip",
				Outbound: true,
			})
		}
		if mr, ok := m.merchants[t.MerchantID]; ok {
			edges = append(edges, neighborEdge{
				Node:     domain.GraphNode{ID: mr.ID, Kind: domain.KindMerchant, Label: mr.Name},
				Relation: "to_merchant",
				Outbound: true,
			})
		}

	case domain.KindDevice:
		for customerID := range m.deviceUsers[node.ID] {
			if c, ok := m.customers[customerID]; ok {
				edges = append(edges, neighborEdge{
					Node:     domain.GraphNode{ID: c.ID, Kind: domain.KindCustomer, Label: c.Name},
					Relation: "uses",
				})
			}
		}
		edges = append(edges, m.txReferencing(func(t *domain.Transaction) bool {
			return t.DeviceID == node.ID
		}, "via_device", txNode)...)

	case domain.KindIP:
		edges = append(edges, m.txReferencing(func(t *domain.Transaction) bool {
			return t.IPAddress == node.ID
		}, "via_ip", txNode)...)

	case domain.KindMerchant:
		edges = append(edges, m.txReferencing(func(t *domain.Transaction) bool {
			return t.MerchantID == node.ID
		}, "to_merchant", txNode)...)
	}

	return edges, nil
}

// txReferencing lists transactions matching a predicate, capped. Caller holds
// the read lock.
func (m *MemoryStore) txReferencing(match func(*domain.Transaction) bool, relation string, txNode func(*domain.Transaction) domain.GraphNode) []neighborEdge {
	var edges []neighborEdge
	for _, t := range m.transactions {
		if !match(t) {
			continue
		}
		edges = append(edges, neighborEdge{Node: txNode(t), Relation: relation})
		if len(edges) >= maxEdgesPerNode {
			break
		}
	}
	return edges
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
