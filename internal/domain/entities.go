// Package domain defines the core entities and interfaces for FraudLens.
package domain

import (
	"time"
)

// AccountType classifies a bank account.
type AccountType string

const (
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
	AccountCredit   AccountType = "credit"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountClosed    AccountStatus = "closed"
)

// KYCStatus is the know-your-customer verification state.
type KYCStatus string

const (
	KYCVerified KYCStatus = "verified"
	KYCPending  KYCStatus = "pending"
	KYCFailed   KYCStatus = "failed"
)

// RiskLevel is a categorical risk classification, also used as alert severity.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// TransactionType classifies a transaction.
type TransactionType string

const (
	TxTransfer   TransactionType = "transfer"
	TxWithdrawal TransactionType = "withdrawal"
	TxDeposit    TransactionType = "deposit"
	TxPayment    TransactionType = "payment"
)

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	TxCompleted TransactionStatus = "completed"
	TxPending   TransactionStatus = "pending"
	TxFailed    TransactionStatus = "failed"
	TxReversed  TransactionStatus = "reversed"
)

// TransactionChannel is the origination channel of a transaction.
type TransactionChannel string

const (
	ChannelOnline TransactionChannel = "online"
	ChannelATM    TransactionChannel = "atm"
	ChannelBranch TransactionChannel = "branch"
	ChannelMobile TransactionChannel = "mobile"
)

// Account is a bank account node in the entity graph.
type Account struct {
	ID          string        `json:"id"`
	Number      string        `json:"number"`
	Type        AccountType   `json:"type"`
	Status      AccountStatus `json:"status"`
	CreatedDate time.Time     `json:"createdDate"`

	// RiskScore is in [0, 100] and is mutated only by the risk scoring
	// engine; everything else on the account is append-only.
	RiskScore float64 `json:"riskScore"`

	Country  string  `json:"country"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
}

// Customer is a customer node. A customer owns one or more accounts.
type Customer struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	DateOfBirth   time.Time `json:"dateOfBirth"`
	Address       string    `json:"address"`
	CustomerSince time.Time `json:"customerSince"`
	KYCStatus     KYCStatus `json:"kycStatus"`
	RiskLevel     RiskLevel `json:"riskLevel"`
}

// Transaction is a money movement node. It debits at most one account and
// credits at most one account; optional references associate it with a
// merchant, device, or IP address. Amount is always positive.
type Transaction struct {
	ID          string             `json:"id"`
	Amount      float64            `json:"amount"`
	Currency    string             `json:"currency"`
	Timestamp   time.Time          `json:"timestamp"`
	Type        TransactionType    `json:"type"`
	Status      TransactionStatus  `json:"status"`
	Channel     TransactionChannel `json:"channel"`
	Description string             `json:"description,omitempty"`

	IsFlagged  bool    `json:"isFlagged"`
	FraudScore float64 `json:"fraudScore"` // [0, 1]

	// Optional graph references; empty string means absent.
	FromAccountID string `json:"fromAccountId,omitempty"`
	ToAccountID   string `json:"toAccountId,omitempty"`
	MerchantID    string `json:"merchantId,omitempty"`
	DeviceID      string `json:"deviceId,omitempty"`
	IPAddress     string `json:"ipAddress,omitempty"`
}

// Device is a device node referenced by transactions and customer usage.
type Device struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // mobile, desktop, tablet
	OS        string    `json:"os"`
	Browser   string    `json:"browser,omitempty"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	IsTrusted bool      `json:"isTrusted"`
}

// IPAddress is an IP node. Address is the unique key.
type IPAddress struct {
	Address   string    `json:"address"`
	Country   string    `json:"country"`
	City      string    `json:"city,omitempty"`
	IsProxy   bool      `json:"isProxy"`
	IsVPN     bool      `json:"isVpn"`
	RiskScore float64   `json:"riskScore"` // [0, 1]
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Merchant is a merchant node referenced by settlement transactions.
type Merchant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"` // retail, gambling, crypto, ...
	Country    string    `json:"country"`
	RiskLevel  RiskLevel `json:"riskLevel"`
	IsVerified bool      `json:"isVerified"`
}

// RingStatus is the investigation lifecycle state of a fraud ring.
type RingStatus string

const (
	RingInvestigating RingStatus = "investigating"
	RingConfirmed     RingStatus = "confirmed"
	RingFalsePositive RingStatus = "false_positive"
	RingResolved      RingStatus = "resolved"
)

// FraudRing is a tracked group of correlated accounts and customers linked
// by a shared detected pattern. Status and membership are mutated only by
// the ring analysis service.
type FraudRing struct {
	ID           string      `json:"id"`
	DetectedDate time.Time   `json:"detectedDate"`
	Confidence   float64     `json:"confidence"` // [0, 1]
	Status       RingStatus  `json:"status"`
	TotalAmount  float64     `json:"totalAmount"`
	MemberCount  int         `json:"memberCount"`
	PatternType  PatternType `json:"patternType"`
	Description  string      `json:"description"`
}

// Alert is an investigator-facing notification produced from a detected
// pattern. Alerts are created unresolved and resolved by analysts.
type Alert struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	Severity        RiskLevel  `json:"severity"`
	CreatedAt       time.Time  `json:"createdAt"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	IsResolved      bool       `json:"isResolved"`
	Notes           string     `json:"notes,omitempty"`
	RelatedEntities []string   `json:"relatedEntities"`
}

// EntityKind identifies the node type of a graph entity.
type EntityKind string

const (
	KindAccount     EntityKind = "account"
	KindCustomer    EntityKind = "customer"
	KindTransaction EntityKind = "transaction"
	KindDevice      EntityKind = "device"
	KindIP          EntityKind = "ip"
	KindMerchant    EntityKind = "merchant"
)

// EntityRef is a typed reference to a graph entity. Pattern evidence and
// ring membership carry EntityRefs so participants are never re-derived
// from display strings.
type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// Clamp100 clamps a score to [0, 100].
func Clamp100(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Clamp01 clamps a score to [0, 1].
func Clamp01(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
