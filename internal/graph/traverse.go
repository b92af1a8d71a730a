package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finsec/fraudlens/internal/domain"
)

// Traversal bounds. Neighbor expansion is capped per node so a hub account
// with thousands of transactions cannot blow up a bounded exploration.
const (
	maxTraversalDepth   = 5
	maxNeighborhoodSize = 500
	maxEdgesPerNode     = 25
)

// neighborEdge is one adjacency discovered during traversal: the node on the
// other side plus the directed relation between them.
type neighborEdge struct {
	Node     domain.GraphNode
	Relation string
	Outbound bool // true when the edge points from the visited node to Node
}

// neighborFunc lists the adjacent nodes of a graph node.
type neighborFunc func(ctx context.Context, node domain.GraphNode) ([]neighborEdge, error)

// Neighborhood returns the subgraph within depth hops of the entity.
func (s *SQLStore) Neighborhood(ctx context.Context, entity domain.EntityRef, depth int) (*domain.Neighborhood, error) {
	if depth < 1 || depth > maxTraversalDepth {
		return nil, fmt.Errorf("%w: depth must be in [1, %d]", ErrInvalidInput, maxTraversalDepth)
	}

	start, err := s.nodeFor(ctx, entity)
	if err != nil {
		return nil, err
	}
	return bfsNeighborhood(ctx, start, depth, s.neighbors)
}

// ShortestPath returns a shortest connection path between two entities within
// maxDepth hops, or ErrNotFound when none exists.
func (s *SQLStore) ShortestPath(ctx context.Context, fromID, toID string, maxDepth int) ([]domain.PathStep, error) {
	if maxDepth < 1 || maxDepth > maxTraversalDepth {
		return nil, fmt.Errorf("%w: maxDepth must be in [1, %d]", ErrInvalidInput, maxTraversalDepth)
	}

	fromRef, err := s.ResolveEntity(ctx, fromID)
	if err != nil {
		return nil, err
	}
	toRef, err := s.ResolveEntity(ctx, toID)
	if err != nil {
		return nil, err
	}

	start, err := s.nodeFor(ctx, fromRef)
	if err != nil {
		return nil, err
	}
	return bfsPath(ctx, start, toRef.ID, maxDepth, s.neighbors)
}

// ResolveEntity determines the kind of an entity ID, trying accounts,
// customers, transactions, devices, merchants, then IP addresses.
func (s *SQLStore) ResolveEntity(ctx context.Context, id string) (domain.EntityRef, error) {
	if id == "" {
		return domain.EntityRef{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}

	lookups := []struct {
		kind  domain.EntityKind
		query string
	}{
		{domain.KindAccount, `SELECT 1 FROM accounts WHERE id = ?`},
		{domain.KindCustomer, `SELECT 1 FROM customers WHERE id = ?`},
		{domain.KindTransaction, `SELECT 1 FROM transactions WHERE id = ?`},
		{domain.KindDevice, `SELECT 1 FROM devices WHERE id = ?`},
		{domain.KindMerchant, `SELECT 1 FROM merchants WHERE id = ?`},
		{domain.KindIP, `SELECT 1 FROM ip_addresses WHERE address = ?`},
	}

	for _, l := range lookups {
		var one int
		err := s.db.QueryRowContext(ctx, s.rebind(l.query), id).Scan(&one)
		if err == nil {
			return domain.EntityRef{ID: id, Kind: l.kind}, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return domain.EntityRef{}, err
		}
	}
	return domain.EntityRef{}, ErrNotFound
}

// nodeFor builds the labelled starting node for a traversal, verifying the
// entity exists.
func (s *SQLStore) nodeFor(ctx context.Context, ref domain.EntityRef) (domain.GraphNode, error) {
	node := domain.GraphNode{ID: ref.ID, Kind: ref.Kind}

	switch ref.Kind {
	case domain.KindAccount:
		a, err := s.Account(ctx, ref.ID)
		if err != nil {
			return node, err
		}
		node.Label = a.Number
	case domain.KindCustomer:
		c, err := s.Customer(ctx, ref.ID)
		if err != nil {
			return node, err
		}
		node.Label = c.Name
	case domain.KindTransaction:
		t, err := s.Transaction(ctx, ref.ID)
		if err != nil {
			return node, err
		}
		node.Label = fmt.Sprintf("%.2f %s", t.Amount, t.Currency)
	case domain.KindDevice:
		d, err := s.Device(ctx, ref.ID)
		if err != nil {
			return node, err
		}
		node.Label = d.Type
	case domain.KindIP:
		ip, err := s.IPAddress(ctx, ref.ID)
		if err != nil {
			return node, err
		}
		node.Label = ip.Address
	case domain.KindMerchant:
		m, err := s.Merchant(ctx, ref.ID)
		if err != nil {
			return node, err
		}
		node.Label = m.Name
	default:
		return node, fmt.Errorf("%w: unknown entity kind %q", ErrInvalidInput, ref.Kind)
	}
	return node, nil
}

// neighbors lists adjacent nodes of a node, capped at maxEdgesPerNode per
// relation to keep traversals bounded.
func (s *SQLStore) neighbors(ctx context.Context, node domain.GraphNode) ([]neighborEdge, error) {
	switch node.Kind {
	case domain.KindAccount:
		return s.accountNeighbors(ctx, node.ID)
	case domain.KindCustomer:
		return s.customerNeighbors(ctx, node.ID)
	case domain.KindTransaction:
		return s.transactionNeighbors(ctx, node.ID)
	case domain.KindDevice:
		return s.deviceNeighbors(ctx, node.ID)
	case domain.KindIP:
		return s.ipNeighbors(ctx, node.ID)
	case domain.KindMerchant:
		return s.merchantNeighbors(ctx, node.ID)
	}
	return nil, nil
}

func (s *SQLStore) accountNeighbors(ctx context.Context, accountID string) ([]neighborEdge, error) {
	var edges []neighborEdge

	ownerQuery := `
		SELECT c.id, c.name FROM customers c
		JOIN ownership o ON o.customer_id = c.id
		WHERE o.account_id = ?
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(ownerQuery), accountID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return nil, err
		}
		edges = append(edges, neighborEdge{
			Node:     domain.GraphNode{ID: id, Kind: domain.KindCustomer, Label: name},
			Relation: "owns",
			Outbound: false,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	txQuery := `
		SELECT id, amount, currency, from_account_id
		FROM transactions
		WHERE from_account_id = ? OR to_account_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`
	rows, err = s.db.QueryContext(ctx, s.rebind(txQuery), accountID, accountID, maxEdgesPerNode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, currency string
		var amount float64
		var from sql.NullString
		if err := rows.Scan(&id, &amount, &currency, &from); err != nil {
			return nil, err
		}
		node := domain.GraphNode{
			ID:    id,
			Kind:  domain.KindTransaction,
			Label: fmt.Sprintf("%.2f %s", amount, currency),
		}
		if from.String == accountID {
			edges = append(edges, neighborEdge{Node: node, Relation: "debits", Outbound: true})
		} else {
			edges = append(edges, neighborEdge{Node: node, Relation: "credits", Outbound: false})
		}
	}
	return edges, rows.Err()
}

func (s *SQLStore) customerNeighbors(ctx context.Context, customerID string) ([]neighborEdge, error) {
	var edges []neighborEdge

	accounts, err := s.AccountsByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		edges = append(edges, neighborEdge{
			Node:     domain.GraphNode{ID: a.ID, Kind: domain.KindAccount, Label: a.Number},
			Relation: "owns",
			Outbound: true,
		})
	}

	deviceQuery := `
		SELECT d.id, d.type FROM devices d
		JOIN device_usage u ON u.device_id = d.id
		WHERE u.customer_id = ?
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(deviceQuery), customerID, maxEdgesPerNode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, typ string
		if err := rows.Scan(&id, &typ); err != nil {
			return nil, err
		}
		edges = append(edges, neighborEdge{
			Node:     domain.GraphNode{ID: id, Kind: domain.KindDevice, Label: typ},
			Relation: "uses",
			Outbound: true,
		})
	}
	return edges, rows.Err()
}

func (s *SQLStore) transactionNeighbors(ctx context.Context, txID string) ([]neighborEdge, error) {
	t, err := s.Transaction(ctx, txID)
	if err != nil {
		return nil, err
	}

	var edges []neighborEdge

	if t.FromAccountID != "" {
		if a, err := s.Account(ctx, t.FromAccountID); err == nil {
			edges = append(edges, neighborEdge{
				Node:     domain.GraphNode{ID: a.ID, Kind: domain.KindAccount, Label: a.Number},
				Relation: "debits",
				Outbound: false,
			})
		}
	}
	if t.ToAccountID != "" {
		if a, err := s.Account(ctx, t.ToAccountID); err == nil {
			edges = append(edges, neighborEdge{
				Node:     domain.GraphNode{ID: a.ID, Kind: domain.KindAccount, Label: a.Number},
				Relation: "credits",
				Outbound: true,
			})
		}
	}
	if t.DeviceID != "" {
		if d, err := s.Device(ctx, t.DeviceID); err == nil {
			edges = append(edges, neighborEdge{
				Node:     domain.GraphNode{ID: d.ID, Kind: domain.KindDevice, Label: d.Type},
				Relation: "via_device",
				Outbound: true,
			})
		}
	}
	if t.IPAddress != "" {
		if ip, err := s.IPAddress(ctx, t.IPAddress); err == nil {
			edges = append(edges, neighborEdge{
				Node:     domain.GraphNode{ID: ip.Address, Kind: domain.KindIP, Label: ip.Address},
				Relation: "via_ip",
				Outbound: true,
			})
		}
	}
	if t.MerchantID != "" {
		if m, err := s.Merchant(ctx, t.MerchantID); err == nil {
			edges = append(edges, neighborEdge{
				Node:     domain.GraphNode{ID: m.ID, Kind: domain.KindMerchant, Label: m.Name},
				Relation: "to_merchant",
				Outbound: true,
			})
		}
	}
	return edges, nil
}

func (s *SQLStore) deviceNeighbors(ctx context.Context, deviceID string) ([]neighborEdge, error) {
	var edges []neighborEdge

	customerQuery := `
		SELECT c.id, c.name FROM customers c
		JOIN device_usage u ON u.customer_id = c.id
		WHERE u.device_id = ?
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(customerQuery), deviceID, maxEdgesPerNode)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return nil, err
		}
		edges = append(edges, neighborEdge{
			Node:     domain.GraphNode{ID: id, Kind: domain.KindCustomer, Label: name},
			Relation: "uses",
			Outbound: false,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	more, err := s.referencingTransactions(ctx, "device_id", deviceID, "via_device")
	if err != nil {
		return nil, err
	}
	return append(edges, more...), nil
}

func (s *SQLStore) ipNeighbors(ctx context.Context, address string) ([]neighborEdge, error) {
	return s.referencingTransactions(ctx, "ip_address", address, "via_ip")
}

func (s *SQLStore) merchantNeighbors(ctx context.Context, merchantID string) ([]neighborEdge, error) {
	return s.referencingTransactions(ctx, "merchant_id", merchantID, "to_merchant")
}

func (s *SQLStore) referencingTransactions(ctx context.Context, column, value, relation string) ([]neighborEdge, error) {
	query := `
		SELECT id, amount, currency FROM transactions
		WHERE ` + column + ` = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), value, maxEdgesPerNode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []neighborEdge
	for rows.Next() {
		var id, currency string
		var amount float64
		if err := rows.Scan(&id, &amount, &currency); err != nil {
			return nil, err
		}
		edges = append(edges, neighborEdge{
			Node: domain.GraphNode{
				ID:    id,
				Kind:  domain.KindTransaction,
				Label: fmt.Sprintf("%.2f %s", amount, currency),
			},
			Relation: relation,
			Outbound: false,
		})
	}
	return edges, rows.Err()
}

// bfsNeighborhood performs a breadth-first expansion around start, bounded by
// depth and maxNeighborhoodSize. Shared by the SQL and in-memory stores.
func bfsNeighborhood(ctx context.Context, start domain.GraphNode, depth int, neighbors neighborFunc) (*domain.Neighborhood, error) {
	visited := map[string]bool{start.ID: true}
	seenEdges := map[string]bool{}
	result := &domain.Neighborhood{
		Nodes: []domain.GraphNode{start},
	}

	frontier := []domain.GraphNode{start}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []domain.GraphNode
		for _, node := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			adjacent, err := neighbors(ctx, node)
			if err != nil {
				return nil, err
			}
			for _, edge := range adjacent {
				from, to := node.ID, edge.Node.ID
				if !edge.Outbound {
					from, to = to, from
				}
				key := from + "|" + edge.Relation + "|" + to
				if !seenEdges[key] {
					seenEdges[key] = true
					result.Edges = append(result.Edges, domain.GraphEdge{
						FromID:   from,
						ToID:     to,
						Relation: edge.Relation,
					})
				}

				if visited[edge.Node.ID] {
					continue
				}
				if len(result.Nodes) >= maxNeighborhoodSize {
					continue
				}
				visited[edge.Node.ID] = true
				result.Nodes = append(result.Nodes, edge.Node)
				next = append(next, edge.Node)
			}
		}
		frontier = next
	}
	return result, nil
}

// bfsPath finds a shortest path from start to the target ID within maxDepth
// hops using breadth-first search with parent tracking.
func bfsPath(ctx context.Context, start domain.GraphNode, targetID string, maxDepth int, neighbors neighborFunc) ([]domain.PathStep, error) {
	if start.ID == targetID {
		return []domain.PathStep{{Entity: start}}, nil
	}

	visited := map[string]parentLink{start.ID: {node: start}}
	frontier := []domain.GraphNode{start}

	for d := 0; d < maxDepth && len(frontier) > 0; d++ {
		var next []domain.GraphNode
		for _, node := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			adjacent, err := neighbors(ctx, node)
			if err != nil {
				return nil, err
			}
			for _, edge := range adjacent {
				if _, ok := visited[edge.Node.ID]; ok {
					continue
				}
				visited[edge.Node.ID] = parentLink{
					node:     edge.Node,
					parentID: node.ID,
					relation: edge.Relation,
				}
				if edge.Node.ID == targetID {
					return assemblePath(visited, targetID), nil
				}
				next = append(next, edge.Node)
			}
		}
		frontier = next
	}
	return nil, ErrNotFound
}

type parentLink struct {
	node     domain.GraphNode
	parentID string
	relation string
}

func assemblePath(visited map[string]parentLink, targetID string) []domain.PathStep {
	var reversed []domain.PathStep
	for id := targetID; id != ""; {
		link := visited[id]
		reversed = append(reversed, domain.PathStep{Entity: link.node, Relation: link.relation})
		id = link.parentID
	}

	steps := make([]domain.PathStep, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		steps = append(steps, reversed[i])
	}
	return steps
}
