package rules

import "github.com/finsec/fraudlens/internal/domain"

// BuiltinRules returns the default screening rule set. Deployments can load
// additional rules on top or replace these entirely.
func BuiltinRules() []domain.ScreeningRule {
	return []domain.ScreeningRule{
		{
			ID:          "high-amount",
			Name:        "High transaction amount",
			Description: "Transactions above 10,000 in any currency",
			Expression:  `amount > 10000.0`,
			Weight:      0.30,
			Enabled:     true,
		},
		{
			ID:          "structuring-band",
			Name:        "Just below reporting threshold",
			Description: "Amounts in the 9,000-10,000 band suggest structuring",
			Expression:  `amount >= 9000.0 && amount <= 10000.0`,
			Weight:      0.35,
			Enabled:     true,
		},
		{
			ID:          "night-transfer",
			Name:        "Night-hours transfer",
			Description: "Online or mobile transfers between midnight and 5am UTC",
			Expression:  `tx_type == "transfer" && (channel == "online" || channel == "mobile") && hour >= 0 && hour < 5`,
			Weight:      0.20,
			Enabled:     true,
		},
		{
			ID:          "anonymized-ip",
			Name:        "Proxy or VPN origin",
			Description: "Transaction originated from a proxy or VPN address",
			Expression:  `ip_is_proxy || ip_is_vpn`,
			Weight:      0.35,
			Enabled:     true,
		},
		{
			ID:          "risky-ip",
			Name:        "High-risk IP reputation",
			Description: "Scales with the IP risk score",
			Expression:  `ip_risk`,
			Weight:      0.25,
			Enabled:     true,
		},
		{
			ID:          "untrusted-device",
			Name:        "Untrusted device",
			Description: "Transaction from a device not yet trusted",
			Expression:  `!device_trusted`,
			Weight:      0.15,
			Enabled:     true,
		},
		{
			ID:          "high-risk-merchant",
			Name:        "High-risk merchant category",
			Description: "Gambling and crypto merchants, or unverified merchants",
			Expression:  `merchant_category == "gambling" || merchant_category == "crypto" || !merchant_verified`,
			Weight:      0.25,
			Enabled:     true,
		},
		{
			ID:          "suspended-counterparty",
			Name:        "Suspended account involved",
			Description: "Either side of the transaction is a suspended account",
			Expression:  `from_account_status == "suspended" || to_account_status == "suspended"`,
			Weight:      0.40,
			Enabled:     true,
		},
		{
			ID:          "large-withdrawal",
			Name:        "Large cash withdrawal",
			Description: "ATM or branch withdrawals above 5,000",
			Expression:  `tx_type == "withdrawal" && amount > 5000.0`,
			Weight:      0.25,
			Enabled:     true,
		},
	}
}
