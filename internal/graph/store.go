// Package graph provides GraphStore implementations for the entity graph.
package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finsec/fraudlens/internal/domain"
)

// Sentinel errors, aliased from domain so callers can match either way.
var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = domain.ErrInvalidInput
)

// SQLStore implements domain.GraphStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// New creates a new graph store based on configuration.
func New(cfg domain.GraphStoreConfig) (domain.GraphStore, error) {
	if cfg.Driver == "memory" {
		return NewMemoryStore(), nil
	}

	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveAccount upserts an account node.
func (s *SQLStore) SaveAccount(ctx context.Context, a *domain.Account) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO accounts (id, number, type, status, created_date, risk_score, country, currency, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			type = excluded.type,
			status = excluded.status,
			risk_score = excluded.risk_score,
			country = excluded.country,
			currency = excluded.currency,
			balance = excluded.balance
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		a.ID, a.Number, string(a.Type), string(a.Status), a.CreatedDate,
		domain.Clamp100(a.RiskScore), a.Country, a.Currency, a.Balance,
	)
	return err
}

// Account retrieves an account by ID.
func (s *SQLStore) Account(ctx context.Context, id string) (*domain.Account, error) {
	return s.accountWhere(ctx, "id = ?", id)
}

// AccountByNumber retrieves an account by account number.
func (s *SQLStore) AccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return s.accountWhere(ctx, "number = ?", number)
}

func (s *SQLStore) accountWhere(ctx context.Context, where string, arg any) (*domain.Account, error) {
	query := `
		SELECT id, number, type, status, created_date, risk_score, country, currency, balance
		FROM accounts WHERE ` + where

	row := s.db.QueryRowContext(ctx, s.rebind(query), arg)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// AccountsByCustomer retrieves accounts owned by a customer.
func (s *SQLStore) AccountsByCustomer(ctx context.Context, customerID string) ([]*domain.Account, error) {
	query := `
		SELECT a.id, a.number, a.type, a.status, a.created_date, a.risk_score, a.country, a.currency, a.balance
		FROM accounts a
		JOIN ownership o ON o.account_id = a.id
		WHERE o.customer_id = ?
		ORDER BY a.created_date
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// HighRiskAccounts retrieves accounts at or above the risk threshold.
func (s *SQLStore) HighRiskAccounts(ctx context.Context, threshold float64, limit int) ([]*domain.Account, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}

	query := `
		SELECT id, number, type, status, created_date, risk_score, country, currency, balance
		FROM accounts
		WHERE risk_score >= ?
		ORDER BY risk_score DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateAccountRisk persists a recomputed risk score.
func (s *SQLStore) UpdateAccountRisk(ctx context.Context, accountID string, score float64) error {
	query := `UPDATE accounts SET risk_score = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, s.rebind(query), domain.Clamp100(score), accountID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveCustomer upserts a customer node.
func (s *SQLStore) SaveCustomer(ctx context.Context, c *domain.Customer) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO customers (id, name, email, date_of_birth, address, customer_since, kyc_status, risk_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			address = excluded.address,
			kyc_status = excluded.kyc_status,
			risk_level = excluded.risk_level
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		c.ID, c.Name, c.Email, c.DateOfBirth, c.Address, c.CustomerSince,
		string(c.KYCStatus), string(c.RiskLevel),
	)
	return err
}

// Customer retrieves a customer by ID.
func (s *SQLStore) Customer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.customerWhere(ctx, "id = ?", id)
}

// CustomerByEmail retrieves a customer by email.
func (s *SQLStore) CustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return s.customerWhere(ctx, "email = ?", email)
}

func (s *SQLStore) customerWhere(ctx context.Context, where string, arg any) (*domain.Customer, error) {
	query := `
		SELECT id, name, email, date_of_birth, address, customer_since, kyc_status, risk_level
		FROM customers WHERE ` + where

	var c domain.Customer
	var kyc, level string
	var address sql.NullString

	err := s.db.QueryRowContext(ctx, s.rebind(query), arg).Scan(
		&c.ID, &c.Name, &c.Email, &c.DateOfBirth, &address, &c.CustomerSince, &kyc, &level,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Address = address.String
	c.KYCStatus = domain.KYCStatus(kyc)
	c.RiskLevel = domain.RiskLevel(level)
	return &c, nil
}

// LinkOwnership records that a customer owns an account.
func (s *SQLStore) LinkOwnership(ctx context.Context, customerID, accountID string) error {
	if customerID == "" || accountID == "" {
		return fmt.Errorf("%w: customerID and accountID are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO ownership (customer_id, account_id)
		VALUES (?, ?)
		ON CONFLICT(customer_id, account_id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query), customerID, accountID)
	return err
}

// SaveTransaction stores a transaction node and its graph references.
func (s *SQLStore) SaveTransaction(ctx context.Context, t *domain.Transaction) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	flagged := 0
	if t.IsFlagged {
		flagged = 1
	}

	query := `
		INSERT INTO transactions (
			id, amount, currency, timestamp, type, status, channel, description,
			is_flagged, fraud_score, from_account_id, to_account_id,
			merchant_id, device_id, ip_address
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		t.ID, t.Amount, t.Currency, t.Timestamp,
		string(t.Type), string(t.Status), string(t.Channel), t.Description,
		flagged, domain.Clamp01(t.FraudScore),
		nullable(t.FromAccountID), nullable(t.ToAccountID),
		nullable(t.MerchantID), nullable(t.DeviceID), nullable(t.IPAddress),
	)
	return err
}

const transactionColumns = `id, amount, currency, timestamp, type, status, channel, description,
	is_flagged, fraud_score, from_account_id, to_account_id, merchant_id, device_id, ip_address`

// Transaction retrieves a transaction by ID.
func (s *SQLStore) Transaction(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

	row := s.db.QueryRowContext(ctx, s.rebind(query), id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// TransactionsByAccount retrieves transactions debiting or crediting an
// account, newest first. Zero times leave the corresponding bound open.
func (s *SQLStore) TransactionsByAccount(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Transaction, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: accountID is required", ErrInvalidInput)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: date range end precedes start", ErrInvalidInput)
	}

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE (from_account_id = ? OR to_account_id = ?)`
	args := []any{accountID, accountID}

	if !from.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY timestamp DESC`

	return s.queryTransactions(ctx, query, args...)
}

// CountTransactionsSince counts transactions touching an account within the
// trailing window starting at since.
func (s *SQLStore) CountTransactionsSince(ctx context.Context, accountID string, since time.Time) (int64, error) {
	if accountID == "" {
		return 0, fmt.Errorf("%w: accountID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM transactions
		WHERE (from_account_id = ? OR to_account_id = ?)
		AND timestamp >= ?
	`

	var count int64
	err := s.db.QueryRowContext(ctx, s.rebind(query), accountID, accountID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// FlaggedTransactions retrieves flagged transactions, newest first.
func (s *SQLStore) FlaggedTransactions(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE is_flagged = 1
		ORDER BY timestamp DESC
		LIMIT ?`

	return s.queryTransactions(ctx, query, limit)
}

func (s *SQLStore) queryTransactions(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// SaveDevice upserts a device node.
func (s *SQLStore) SaveDevice(ctx context.Context, d *domain.Device) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidInput)
	}

	trusted := 0
	if d.IsTrusted {
		trusted = 1
	}

	query := `
		INSERT INTO devices (id, type, os, browser, first_seen, last_seen, is_trusted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_seen = excluded.last_seen,
			is_trusted = excluded.is_trusted
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		d.ID, d.Type, d.OS, d.Browser, d.FirstSeen, d.LastSeen, trusted,
	)
	return err
}

// Device retrieves a device by ID.
func (s *SQLStore) Device(ctx context.Context, id string) (*domain.Device, error) {
	query := `SELECT id, type, os, browser, first_seen, last_seen, is_trusted FROM devices WHERE id = ?`

	var d domain.Device
	var browser sql.NullString
	var trusted int

	err := s.db.QueryRowContext(ctx, s.rebind(query), id).Scan(
		&d.ID, &d.Type, &d.OS, &browser, &d.FirstSeen, &d.LastSeen, &trusted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	d.Browser = browser.String
	d.IsTrusted = trusted == 1
	return &d, nil
}

// SaveIPAddress upserts an IP node.
func (s *SQLStore) SaveIPAddress(ctx context.Context, ip *domain.IPAddress) error {
	if ip == nil || ip.Address == "" {
		return fmt.Errorf("%w: ip address is required", ErrInvalidInput)
	}

	proxy, vpn := 0, 0
	if ip.IsProxy {
		proxy = 1
	}
	if ip.IsVPN {
		vpn = 1
	}

	query := `
		INSERT INTO ip_addresses (address, country, city, is_proxy, is_vpn, risk_score, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			last_seen = excluded.last_seen,
			risk_score = excluded.risk_score
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		ip.Address, ip.Country, ip.City, proxy, vpn,
		domain.Clamp01(ip.RiskScore), ip.FirstSeen, ip.LastSeen,
	)
	return err
}

// IPAddress retrieves an IP node by address.
func (s *SQLStore) IPAddress(ctx context.Context, address string) (*domain.IPAddress, error) {
	query := `SELECT address, country, city, is_proxy, is_vpn, risk_score, first_seen, last_seen
		FROM ip_addresses WHERE address = ?`

	var ip domain.IPAddress
	var city sql.NullString
	var proxy, vpn int

	err := s.db.QueryRowContext(ctx, s.rebind(query), address).Scan(
		&ip.Address, &ip.Country, &city, &proxy, &vpn, &ip.RiskScore, &ip.FirstSeen, &ip.LastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	ip.City = city.String
	ip.IsProxy = proxy == 1
	ip.IsVPN = vpn == 1
	return &ip, nil
}

// SaveMerchant upserts a merchant node.
func (s *SQLStore) SaveMerchant(ctx context.Context, m *domain.Merchant) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: merchant id is required", ErrInvalidInput)
	}

	verified := 0
	if m.IsVerified {
		verified = 1
	}

	query := `
		INSERT INTO merchants (id, name, category, country, risk_level, is_verified)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			risk_level = excluded.risk_level,
			is_verified = excluded.is_verified
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		m.ID, m.Name, m.Category, m.Country, string(m.RiskLevel), verified,
	)
	return err
}

// Merchant retrieves a merchant by ID.
func (s *SQLStore) Merchant(ctx context.Context, id string) (*domain.Merchant, error) {
	query := `SELECT id, name, category, country, risk_level, is_verified FROM merchants WHERE id = ?`

	var m domain.Merchant
	var level string
	var verified int

	err := s.db.QueryRowContext(ctx, s.rebind(query), id).Scan(
		&m.ID, &m.Name, &m.Category, &m.Country, &level, &verified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m.RiskLevel = domain.RiskLevel(level)
	m.IsVerified = verified == 1
	return &m, nil
}

// RecordDeviceUse upserts a customer->device usage edge.
func (s *SQLStore) RecordDeviceUse(ctx context.Context, customerID, deviceID string, at time.Time) error {
	if customerID == "" || deviceID == "" {
		return fmt.Errorf("%w: customerID and deviceID are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO device_usage (customer_id, device_id, use_count, last_used)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(customer_id, device_id) DO UPDATE SET
			use_count = device_usage.use_count + 1,
			last_used = excluded.last_used
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query), customerID, deviceID, at)
	return err
}

// SaveRing upserts a fraud ring.
func (s *SQLStore) SaveRing(ctx context.Context, r *domain.FraudRing) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("%w: ring id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO fraud_rings (id, detected_date, confidence, status, total_amount, member_count, pattern_type, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			total_amount = excluded.total_amount,
			member_count = excluded.member_count,
			description = excluded.description
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		r.ID, r.DetectedDate, domain.Clamp01(r.Confidence), string(r.Status),
		r.TotalAmount, r.MemberCount, string(r.PatternType), r.Description,
	)
	return err
}

// Ring retrieves a fraud ring by ID. MemberCount reflects the distinct
// linked members at query time.
func (s *SQLStore) Ring(ctx context.Context, id string) (*domain.FraudRing, error) {
	query := `SELECT id, detected_date, confidence, status, total_amount, member_count, pattern_type, description
		FROM fraud_rings WHERE id = ?`

	row := s.db.QueryRowContext(ctx, s.rebind(query), id)
	r, err := scanRing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	count, err := s.RingMemberCount(ctx, id)
	if err != nil {
		return nil, err
	}
	r.MemberCount = count
	return r, nil
}

// ActiveRings retrieves rings not yet resolved, newest first.
func (s *SQLStore) ActiveRings(ctx context.Context) ([]*domain.FraudRing, error) {
	query := `SELECT id, detected_date, confidence, status, total_amount, member_count, pattern_type, description
		FROM fraud_rings
		WHERE status != ?
		ORDER BY detected_date DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), string(domain.RingResolved))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rings []*domain.FraudRing
	for rows.Next() {
		r, err := scanRing(rows)
		if err != nil {
			return nil, err
		}
		rings = append(rings, r)
	}
	return rings, rows.Err()
}

// LinkMember attaches an entity to a ring with a role.
func (s *SQLStore) LinkMember(ctx context.Context, ringID string, member domain.EntityRef, role string) error {
	if ringID == "" || member.ID == "" {
		return fmt.Errorf("%w: ringID and member id are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO ring_members (ring_id, member_id, member_kind, role)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ring_id, member_id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query), ringID, member.ID, string(member.Kind), role)
	return err
}

// RingMemberCount returns the distinct linked-member count for a ring.
func (s *SQLStore) RingMemberCount(ctx context.Context, ringID string) (int, error) {
	query := `SELECT COUNT(DISTINCT member_id) FROM ring_members WHERE ring_id = ?`

	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(query), ringID).Scan(&count)
	return count, err
}

// SaveAlert stores an alert.
func (s *SQLStore) SaveAlert(ctx context.Context, a *domain.Alert) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidInput)
	}

	related, _ := json.Marshal(a.RelatedEntities)

	resolved := 0
	if a.IsResolved {
		resolved = 1
	}

	query := `
		INSERT INTO alerts (id, type, severity, created_at, resolved_at, is_resolved, notes, related_entities)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			resolved_at = excluded.resolved_at,
			is_resolved = excluded.is_resolved,
			notes = excluded.notes
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		a.ID, a.Type, string(a.Severity), a.CreatedAt, a.ResolvedAt, resolved,
		a.Notes, string(related),
	)
	return err
}

// Alert retrieves an alert by ID.
func (s *SQLStore) Alert(ctx context.Context, id string) (*domain.Alert, error) {
	query := `SELECT id, type, severity, created_at, resolved_at, is_resolved, notes, related_entities
		FROM alerts WHERE id = ?`

	row := s.db.QueryRowContext(ctx, s.rebind(query), id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// UnresolvedAlerts retrieves unresolved alerts, newest first.
func (s *SQLStore) UnresolvedAlerts(ctx context.Context) ([]*domain.Alert, error) {
	query := `SELECT id, type, severity, created_at, resolved_at, is_resolved, notes, related_entities
		FROM alerts
		WHERE is_resolved = 0
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ResolveAlert marks an alert resolved.
func (s *SQLStore) ResolveAlert(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE alerts SET is_resolved = 1, resolved_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, s.rebind(query), at, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*domain.Account, error) {
	var a domain.Account
	var typ, status string

	err := row.Scan(&a.ID, &a.Number, &typ, &status, &a.CreatedDate,
		&a.RiskScore, &a.Country, &a.Currency, &a.Balance)
	if err != nil {
		return nil, err
	}

	a.Type = domain.AccountType(typ)
	a.Status = domain.AccountStatus(status)
	return &a, nil
}

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var typ, status, channel string
	var description, from, to, merchant, device, ip sql.NullString
	var flagged int

	err := row.Scan(&t.ID, &t.Amount, &t.Currency, &t.Timestamp,
		&typ, &status, &channel, &description,
		&flagged, &t.FraudScore, &from, &to, &merchant, &device, &ip)
	if err != nil {
		return nil, err
	}

	t.Type = domain.TransactionType(typ)
	t.Status = domain.TransactionStatus(status)
	t.Channel = domain.TransactionChannel(channel)
	t.Description = description.String
	t.IsFlagged = flagged == 1
	t.FromAccountID = from.String
	t.ToAccountID = to.String
	t.MerchantID = merchant.String
	t.DeviceID = device.String
	t.IPAddress = ip.String
	return &t, nil
}

func scanRing(row scanner) (*domain.FraudRing, error) {
	var r domain.FraudRing
	var status, pattern string
	var description sql.NullString

	err := row.Scan(&r.ID, &r.DetectedDate, &r.Confidence, &status,
		&r.TotalAmount, &r.MemberCount, &pattern, &description)
	if err != nil {
		return nil, err
	}

	r.Status = domain.RingStatus(status)
	r.PatternType = domain.PatternType(pattern)
	r.Description = description.String
	return &r, nil
}

func scanAlert(row scanner) (*domain.Alert, error) {
	var a domain.Alert
	var severity, related string
	var notes sql.NullString
	var resolvedAt sql.NullTime
	var resolved int

	err := row.Scan(&a.ID, &a.Type, &severity, &a.CreatedAt,
		&resolvedAt, &resolved, &notes, &related)
	if err != nil {
		return nil, err
	}

	a.Severity = domain.RiskLevel(severity)
	a.IsResolved = resolved == 1
	a.Notes = notes.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	if related != "" {
		json.Unmarshal([]byte(related), &a.RelatedEntities)
	}
	return &a, nil
}

// nullable converts an empty string to NULL for optional reference columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
