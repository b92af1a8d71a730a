package graph

// Schema definitions for the FraudLens entity graph.
// Compatible with both SQLite and PostgreSQL.

const schemaAccounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    number TEXT NOT NULL,
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    created_date TIMESTAMP NOT NULL,
    risk_score REAL NOT NULL DEFAULT 0,
    country TEXT NOT NULL,
    currency TEXT NOT NULL,
    balance REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_accounts_number ON accounts(number);
CREATE INDEX IF NOT EXISTS idx_accounts_risk ON accounts(risk_score);
`

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    date_of_birth TIMESTAMP NOT NULL,
    address TEXT,
    customer_since TIMESTAMP NOT NULL,
    kyc_status TEXT NOT NULL,
    risk_level TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_customers_email ON customers(email);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    channel TEXT NOT NULL,
    description TEXT,
    is_flagged INTEGER NOT NULL DEFAULT 0,
    fraud_score REAL NOT NULL DEFAULT 0,
    from_account_id TEXT,
    to_account_id TEXT,
    merchant_id TEXT,
    device_id TEXT,
    ip_address TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_from ON transactions(from_account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_to ON transactions(to_account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_flagged ON transactions(is_flagged, timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_ip ON transactions(ip_address);
CREATE INDEX IF NOT EXISTS idx_transactions_device ON transactions(device_id);
`

const schemaInfrastructure = `
CREATE TABLE IF NOT EXISTS devices (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    os TEXT NOT NULL,
    browser TEXT,
    first_seen TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL,
    is_trusted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ip_addresses (
    address TEXT PRIMARY KEY,
    country TEXT NOT NULL,
    city TEXT,
    is_proxy INTEGER NOT NULL DEFAULT 0,
    is_vpn INTEGER NOT NULL DEFAULT 0,
    risk_score REAL NOT NULL DEFAULT 0,
    first_seen TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS merchants (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL,
    country TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    is_verified INTEGER NOT NULL DEFAULT 1
);
`

const schemaEdges = `
CREATE TABLE IF NOT EXISTS ownership (
    customer_id TEXT NOT NULL,
    account_id TEXT NOT NULL,
    PRIMARY KEY (customer_id, account_id)
);

CREATE INDEX IF NOT EXISTS idx_ownership_account ON ownership(account_id);

CREATE TABLE IF NOT EXISTS device_usage (
    customer_id TEXT NOT NULL,
    device_id TEXT NOT NULL,
    use_count INTEGER NOT NULL DEFAULT 1,
    last_used TIMESTAMP NOT NULL,
    PRIMARY KEY (customer_id, device_id)
);

CREATE INDEX IF NOT EXISTS idx_device_usage_device ON device_usage(device_id);
`

const schemaRings = `
CREATE TABLE IF NOT EXISTS fraud_rings (
    id TEXT PRIMARY KEY,
    detected_date TIMESTAMP NOT NULL,
    confidence REAL NOT NULL,
    status TEXT NOT NULL,
    total_amount REAL NOT NULL DEFAULT 0,
    member_count INTEGER NOT NULL DEFAULT 0,
    pattern_type TEXT NOT NULL,
    description TEXT
);

CREATE INDEX IF NOT EXISTS idx_fraud_rings_status ON fraud_rings(status);

CREATE TABLE IF NOT EXISTS ring_members (
    ring_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    member_kind TEXT NOT NULL,
    role TEXT NOT NULL,
    PRIMARY KEY (ring_id, member_id)
);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    severity TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    resolved_at TIMESTAMP,
    is_resolved INTEGER NOT NULL DEFAULT 0,
    notes TEXT,
    related_entities TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_unresolved ON alerts(is_resolved, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAccounts,
		schemaCustomers,
		schemaTransactions,
		schemaInfrastructure,
		schemaEdges,
		schemaRings,
		schemaAlerts,
	}
}
