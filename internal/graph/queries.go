package graph

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/finsec/fraudlens/internal/domain"
)

// FanOut aggregates distinct recipients per source account since the given
// time, keeping accounts with at least minRecipients distinct recipients.
func (s *SQLStore) FanOut(ctx context.Context, since time.Time, minRecipients int) ([]domain.CounterpartySummary, error) {
	if minRecipients < 2 {
		return nil, fmt.Errorf("%w: minRecipients must be at least 2", ErrInvalidInput)
	}

	query := `
		SELECT from_account_id, COUNT(DISTINCT to_account_id), SUM(amount)
		FROM transactions
		WHERE timestamp >= ?
		AND from_account_id IS NOT NULL
		AND to_account_id IS NOT NULL
		GROUP BY from_account_id
		HAVING COUNT(DISTINCT to_account_id) >= ?
		ORDER BY COUNT(DISTINCT to_account_id) DESC, from_account_id
	`

	return s.queryCounterparties(ctx, query, since, minRecipients)
}

// FanIn is the symmetric aggregation over distinct senders per destination.
func (s *SQLStore) FanIn(ctx context.Context, since time.Time, minSenders int) ([]domain.CounterpartySummary, error) {
	if minSenders < 2 {
		return nil, fmt.Errorf("%w: minSenders must be at least 2", ErrInvalidInput)
	}

	query := `
		SELECT to_account_id, COUNT(DISTINCT from_account_id), SUM(amount)
		FROM transactions
		WHERE timestamp >= ?
		AND from_account_id IS NOT NULL
		AND to_account_id IS NOT NULL
		GROUP BY to_account_id
		HAVING COUNT(DISTINCT from_account_id) >= ?
		ORDER BY COUNT(DISTINCT from_account_id) DESC, to_account_id
	`

	return s.queryCounterparties(ctx, query, since, minSenders)
}

func (s *SQLStore) queryCounterparties(ctx context.Context, query string, since time.Time, min int) ([]domain.CounterpartySummary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), since, min)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.CounterpartySummary
	for rows.Next() {
		var cs domain.CounterpartySummary
		if err := rows.Scan(&cs.AccountID, &cs.Counterparties, &cs.TotalAmount); err != nil {
			return nil, err
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

// AccountFlows computes inbound/outbound totals and first-in to first-out
// hold time for every account with both inflow and outflow. Aggregation runs
// in Go over raw rows so the hold computation stays driver-agnostic.
func (s *SQLStore) AccountFlows(ctx context.Context) ([]domain.AccountFlow, error) {
	query := `
		SELECT from_account_id, to_account_id, amount, timestamp
		FROM transactions
		WHERE from_account_id IS NOT NULL OR to_account_id IS NOT NULL
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

	for rows.Next() {
		var from, to sql.NullString
		var amount float64
		var ts time.Time
		if err := rows.Scan(&from, &to, &amount, &ts); err != nil {
			return nil, err
		}
		if to.Valid {
			a := get(to.String)
			a.totalIn += amount
			if a.firstIn.IsZero() || ts.Before(a.firstIn) {
				a.firstIn = ts
			}
		}
		if from.Valid {
			a := get(from.String)
			a.totalOut += amount
			if a.firstOut.IsZero() || ts.Before(a.firstOut) {
				a.firstOut = ts
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
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

// SharedInfrastructure returns devices shared by at least minUsers distinct
// customers, or IPs shared by at least minUsers distinct accounts.
func (s *SQLStore) SharedInfrastructure(ctx context.Context, kind domain.InfraKind, minUsers int) ([]domain.InfraCluster, error) {
	if minUsers < 2 {
		return nil, fmt.Errorf("%w: minUsers must be at least 2", ErrInvalidInput)
	}

	switch kind {
	case domain.InfraDevice:
		return s.sharedDevices(ctx, minUsers)
	case domain.InfraIP:
		return s.sharedIPs(ctx, minUsers)
	default:
		return nil, fmt.Errorf("%w: unknown infrastructure kind %q", ErrInvalidInput, kind)
	}
}

func (s *SQLStore) sharedDevices(ctx context.Context, minUsers int) ([]domain.InfraCluster, error) {
	query := `SELECT device_id, customer_id FROM device_usage`

	rows, err := s.db.QueryContext(ctx, s.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make(map[string]map[string]bool)
	for rows.Next() {
		var deviceID, customerID string
		if err := rows.Scan(&deviceID, &customerID); err != nil {
			return nil, err
		}
		if members[deviceID] == nil {
			members[deviceID] = make(map[string]bool)
		}
		members[deviceID][customerID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var clusters []domain.InfraCluster
	for deviceID, customers := range members {
		if len(customers) < minUsers {
			continue
		}
		clusters = append(clusters, domain.InfraCluster{
			Kind:             domain.InfraDevice,
			InfrastructureID: deviceID,
			CustomerIDs:      sortedKeys(customers),
		})
	}
	sortClusters(clusters)
	return clusters, nil
}

func (s *SQLStore) sharedIPs(ctx context.Context, minUsers int) ([]domain.InfraCluster, error) {
	query := `
		SELECT ip_address, COALESCE(from_account_id, to_account_id)
		FROM transactions
		WHERE ip_address IS NOT NULL
		AND COALESCE(from_account_id, to_account_id) IS NOT NULL
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make(map[string]map[string]bool)
	for rows.Next() {
		var address, accountID string
		if err := rows.Scan(&address, &accountID); err != nil {
			return nil, err
		}
		if members[address] == nil {
			members[address] = make(map[string]bool)
		}
		members[address][accountID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var clusters []domain.InfraCluster
	for address, accounts := range members {
		if len(accounts) < minUsers {
			continue
		}
		clusters = append(clusters, domain.InfraCluster{
			Kind:             domain.InfraIP,
			InfrastructureID: address,
			AccountIDs:       sortedKeys(accounts),
		})
	}
	sortClusters(clusters)
	return clusters, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortClusters(clusters []domain.InfraCluster) {
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].InfrastructureID < clusters[j].InfrastructureID
	})
}
