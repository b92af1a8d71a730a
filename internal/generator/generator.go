// Package generator produces synthetic banking graphs with embedded fraud
// patterns for demos and local testing. The shape of the dataset is
// deterministic for a given seed; entity IDs are freshly minted each run.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/finsec/fraudlens/internal/domain"
)

// Params controls the size and shape of the generated dataset.
type Params struct {
	Customers    int   // default 100
	Transactions int   // normal background transactions, default 1000
	Merchants    int   // default 20
	Devices      int   // default 50
	Seed         int64 // rng seed, default 1

	// Now anchors all generated timestamps.
	Now time.Time
}

func (p *Params) normalize() {
	if p.Customers <= 0 {
		p.Customers = 100
	}
	if p.Transactions <= 0 {
		p.Transactions = 1000
	}
	if p.Merchants <= 0 {
		p.Merchants = 20
	}
	if p.Devices <= 0 {
		p.Devices = 50
	}
	if p.Seed == 0 {
		p.Seed = 1
	}
	if p.Now.IsZero() {
		p.Now = time.Now().UTC()
	}
}

// Summary reports what a generation run produced.
type Summary struct {
	Customers    int `json:"customers"`
	Accounts     int `json:"accounts"`
	Merchants    int `json:"merchants"`
	Devices      int `json:"devices"`
	Transactions int `json:"transactions"`

	// Injected fraud structures.
	CircularRings      int `json:"circularRings"`
	FanOutBursts       int `json:"fanOutBursts"`
	MuleChains         int `json:"muleChains"`
	SharedDeviceGroups int `json:"sharedDeviceGroups"`
}

// Generator writes synthetic entities into a graph store.
type Generator struct {
	store  domain.GraphStore
	logger *slog.Logger
	rng    *rand.Rand
	params Params

	customers []*domain.Customer
	accounts  []*domain.Account
	merchants []*domain.Merchant
	devices   []*domain.Device

	summary Summary
}

// New creates a generator over the given store.
func New(store domain.GraphStore, logger *slog.Logger, params Params) *Generator {
	params.normalize()
	return &Generator{
		store:  store,
		logger: logger.With("component", "generator"),
		rng:    rand.New(rand.NewSource(params.Seed)),
		params: params,
	}
}

// Generate builds the complete dataset: legitimate customers, accounts,
// merchants, devices, background transactions, and injected fraud patterns.
func (g *Generator) Generate(ctx context.Context) (*Summary, error) {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"customers", g.generateCustomers},
		{"merchants", g.generateMerchants},
		{"devices", g.generateDevices},
		{"transactions", g.generateTransactions},
		{"fraud patterns", g.injectFraudPatterns},
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return nil, fmt.Errorf("generating %s: %w", step.name, err)
		}
		g.logger.Info("generation step complete", "step", step.name)
	}

	g.summary.Customers = len(g.customers)
	g.summary.Accounts = len(g.accounts)
	g.summary.Merchants = len(g.merchants)
	g.summary.Devices = len(g.devices)
	return &g.summary, nil
}

var (
	firstNames = []string{"Ava", "Ben", "Clara", "Dan", "Elena", "Felix", "Grace",
		"Hugo", "Iris", "Jonas", "Kira", "Liam", "Mona", "Nils", "Olga", "Pavel",
		"Quinn", "Rosa", "Sam", "Tara"}
	lastNames = []string{"Adler", "Brandt", "Costa", "Dietrich", "Evans", "Fischer",
		"Garcia", "Hansen", "Ivanov", "Jensen", "Keller", "Lang", "Meyer", "Novak",
		"Olsen", "Petrov", "Quist", "Romero", "Schmidt", "Toth"}
	countries          = []string{"US", "GB", "DE", "FR", "NL", "ES", "PL", "SE"}
	merchantCategories = []string{"retail", "restaurant", "online", "gambling",
		"crypto", "travel", "entertainment"}
	deviceTypes      = []string{"mobile", "desktop", "tablet"}
	operatingSystems = []string{"iOS", "Android", "Windows", "MacOS", "Linux"}
	browsers         = []string{"Chrome", "Safari", "Firefox", "Edge"}
)

func (g *Generator) generateCustomers(ctx context.Context) error {
	for i := 0; i < g.params.Customers; i++ {
		name := g.pick(firstNames) + " " + g.pick(lastNames)
		customer := &domain.Customer{
			ID:            uuid.New().String(),
			Name:          name,
			Email:         fmt.Sprintf("user%04d@example.com", i),
			DateOfBirth:   g.params.Now.AddDate(-18-g.rng.Intn(62), 0, -g.rng.Intn(365)),
			Address:       fmt.Sprintf("%d Main Street", 1+g.rng.Intn(999)),
			CustomerSince: g.params.Now.AddDate(0, 0, -g.rng.Intn(5*365)),
			KYCStatus:     g.weightedKYC(),
			RiskLevel:     g.weightedRisk(),
		}
		if err := g.store.SaveCustomer(ctx, customer); err != nil {
			return err
		}
		g.customers = append(g.customers, customer)

		// Each customer has 1-3 accounts.
		for j := 0; j < g.accountsPerCustomer(); j++ {
			account := &domain.Account{
				ID:          uuid.New().String(),
				Number:      fmt.Sprintf("FL%010d", g.rng.Int63n(1e10)),
				Type:        g.accountType(),
				Status:      g.accountStatus(),
				CreatedDate: customer.CustomerSince.AddDate(0, 0, g.rng.Intn(365)),
				Country:     g.pick(countries),
				Currency:    "USD",
				Balance:     100 + g.rng.Float64()*49900,
			}
			if err := g.store.SaveAccount(ctx, account); err != nil {
				return err
			}
			if err := g.store.LinkOwnership(ctx, customer.ID, account.ID); err != nil {
				return err
			}
			g.accounts = append(g.accounts, account)
		}
	}
	return nil
}

func (g *Generator) generateMerchants(ctx context.Context) error {
	for i := 0; i < g.params.Merchants; i++ {
		merchant := &domain.Merchant{
			ID:         uuid.New().String(),
			Name:       fmt.Sprintf("%s %s Co", g.pick(lastNames), g.pick(merchantCategories)),
			Category:   g.pick(merchantCategories),
			Country:    g.pick(countries),
			RiskLevel:  g.weightedMerchantRisk(),
			IsVerified: g.rng.Intn(4) != 0, // 75% verified
		}
		if err := g.store.SaveMerchant(ctx, merchant); err != nil {
			return err
		}
		g.merchants = append(g.merchants, merchant)
	}
	return nil
}

func (g *Generator) generateDevices(ctx context.Context) error {
	for i := 0; i < g.params.Devices; i++ {
		firstSeen := g.params.Now.AddDate(0, 0, -g.rng.Intn(2*365))
		device := &domain.Device{
			ID:        uuid.New().String(),
			Type:      g.pick(deviceTypes),
			OS:        g.pick(operatingSystems),
			Browser:   g.pick(browsers),
			FirstSeen: firstSeen,
			LastSeen:  g.params.Now.AddDate(0, 0, -g.rng.Intn(30)),
			IsTrusted: g.rng.Intn(4) != 0, // 75% trusted
		}
		if err := g.store.SaveDevice(ctx, device); err != nil {
			return err
		}
		g.devices = append(g.devices, device)
	}
	return nil
}

// generateTransactions creates the normal background traffic: random
// transfers and merchant payments between unrelated accounts.
func (g *Generator) generateTransactions(ctx context.Context) error {
	if len(g.accounts) < 2 {
		return fmt.Errorf("%w: need at least two accounts", domain.ErrInvalidInput)
	}

	for i := 0; i < g.params.Transactions; i++ {
		from := g.pickAccount(nil)
		to := g.pickAccount(from)

		tx := &domain.Transaction{
			ID:            uuid.New().String(),
			Amount:        10 + g.rng.Float64()*2000,
			Currency:      "USD",
			Timestamp:     g.params.Now.Add(-time.Duration(g.rng.Intn(30*24)) * time.Hour),
			Type:          g.transactionType(),
			Status:        domain.TxCompleted,
			Channel:       g.channel(),
			FromAccountID: from.ID,
			ToAccountID:   to.ID,
		}

		// A share of payments settle at a merchant.
		if tx.Type == domain.TxPayment && len(g.merchants) > 0 {
			tx.MerchantID = g.pick2(g.merchants).ID
			tx.ToAccountID = ""
		}
		if len(g.devices) > 0 && g.rng.Intn(2) == 0 {
			tx.DeviceID = g.pick3(g.devices).ID
		}

		if err := g.store.SaveTransaction(ctx, tx); err != nil {
			return err
		}
		g.summary.Transactions++
	}
	return nil
}

func (g *Generator) pick(items []string) string {
	return items[g.rng.Intn(len(items))]
}

func (g *Generator) pick2(items []*domain.Merchant) *domain.Merchant {
	return items[g.rng.Intn(len(items))]
}

func (g *Generator) pick3(items []*domain.Device) *domain.Device {
	return items[g.rng.Intn(len(items))]
}

func (g *Generator) pickAccount(exclude *domain.Account) *domain.Account {
	for {
		a := g.accounts[g.rng.Intn(len(g.accounts))]
		if exclude == nil || a.ID != exclude.ID {
			return a
		}
	}
}

func (g *Generator) accountsPerCustomer() int {
	switch r := g.rng.Float64(); {
	case r < 0.6:
		return 1
	case r < 0.9:
		return 2
	default:
		return 3
	}
}

func (g *Generator) weightedKYC() domain.KYCStatus {
	switch r := g.rng.Float64(); {
	case r < 0.85:
		return domain.KYCVerified
	case r < 0.95:
		return domain.KYCPending
	default:
		return domain.KYCFailed
	}
}

func (g *Generator) weightedRisk() domain.RiskLevel {
	switch r := g.rng.Float64(); {
	case r < 0.70:
		return domain.RiskLow
	case r < 0.90:
		return domain.RiskMedium
	case r < 0.98:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

func (g *Generator) weightedMerchantRisk() domain.RiskLevel {
	switch r := g.rng.Float64(); {
	case r < 0.7:
		return domain.RiskLow
	case r < 0.9:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

func (g *Generator) accountType() domain.AccountType {
	types := []domain.AccountType{domain.AccountChecking, domain.AccountSavings, domain.AccountCredit}
	return types[g.rng.Intn(len(types))]
}

func (g *Generator) accountStatus() domain.AccountStatus {
	switch r := g.rng.Float64(); {
	case r < 0.90:
		return domain.AccountActive
	case r < 0.95:
		return domain.AccountSuspended
	default:
		return domain.AccountClosed
	}
}

func (g *Generator) transactionType() domain.TransactionType {
	types := []domain.TransactionType{domain.TxTransfer, domain.TxWithdrawal, domain.TxDeposit, domain.TxPayment}
	return types[g.rng.Intn(len(types))]
}

func (g *Generator) channel() domain.TransactionChannel {
	channels := []domain.TransactionChannel{domain.ChannelOnline, domain.ChannelATM, domain.ChannelBranch, domain.ChannelMobile}
	return channels[g.rng.Intn(len(channels))]
}
