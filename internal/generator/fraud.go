package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finsec/fraudlens/internal/domain"
)

// injectFraudPatterns plants the structures the detectors look for: circular
// flows, fan-out bursts, mule chains, and shared-device clusters. Each
// structure gets its own freshly created mule accounts so legitimate traffic
// stays clean.
func (g *Generator) injectFraudPatterns(ctx context.Context) error {
	if err := g.injectCircularRing(ctx, 4); err != nil {
		return err
	}
	if err := g.injectFanOutBurst(ctx, 8); err != nil {
		return err
	}
	if err := g.injectMuleChain(ctx); err != nil {
		return err
	}
	if err := g.injectSharedDeviceGroup(ctx, 3); err != nil {
		return err
	}
	return nil
}

// newFraudAccount creates a recently opened account owned by a fresh
// customer with weak KYC, the typical mule profile.
func (g *Generator) newFraudAccount(ctx context.Context, label string) (*domain.Account, *domain.Customer, error) {
	customer := &domain.Customer{
		ID:            uuid.New().String(),
		Name:          g.pick(firstNames) + " " + g.pick(lastNames),
		Email:         fmt.Sprintf("%s-%s@example.com", label, uuid.New().String()[:8]),
		DateOfBirth:   g.params.Now.AddDate(-20-g.rng.Intn(30), 0, 0),
		Address:       fmt.Sprintf("%d Shell Lane", 1+g.rng.Intn(99)),
		CustomerSince: g.params.Now.AddDate(0, 0, -g.rng.Intn(30)),
		KYCStatus:     domain.KYCPending,
		RiskLevel:     domain.RiskLow,
	}
	if err := g.store.SaveCustomer(ctx, customer); err != nil {
		return nil, nil, err
	}

	account := &domain.Account{
		ID:          uuid.New().String(),
		Number:      fmt.Sprintf("FL%010d", g.rng.Int63n(1e10)),
		Type:        domain.AccountChecking,
		Status:      domain.AccountActive,
		CreatedDate: customer.CustomerSince,
		Country:     g.pick(countries),
		Currency:    "USD",
		Balance:     g.rng.Float64() * 500,
	}
	if err := g.store.SaveAccount(ctx, account); err != nil {
		return nil, nil, err
	}
	if err := g.store.LinkOwnership(ctx, customer.ID, account.ID); err != nil {
		return nil, nil, err
	}
	g.customers = append(g.customers, customer)
	g.accounts = append(g.accounts, account)
	return account, customer, nil
}

func (g *Generator) flaggedTransfer(ctx context.Context, from, to string, amount float64, at time.Time) error {
	tx := &domain.Transaction{
		ID:            uuid.New().String(),
		Amount:        amount,
		Currency:      "USD",
		Timestamp:     at,
		Type:          domain.TxTransfer,
		Status:        domain.TxCompleted,
		Channel:       domain.ChannelOnline,
		IsFlagged:     true,
		FraudScore:    0.6 + g.rng.Float64()*0.35,
		FromAccountID: from,
		ToAccountID:   to,
	}
	if err := g.store.SaveTransaction(ctx, tx); err != nil {
		return err
	}
	g.summary.Transactions++
	return nil
}

// injectCircularRing creates a closed loop of flagged transfers across
// size fresh accounts, each hop slightly smaller than the last.
func (g *Generator) injectCircularRing(ctx context.Context, size int) error {
	accounts := make([]*domain.Account, size)
	for i := range accounts {
		account, _, err := g.newFraudAccount(ctx, "ring")
		if err != nil {
			return err
		}
		accounts[i] = account
	}

	amount := 5000 + g.rng.Float64()*5000
	at := g.params.Now.Add(-time.Duration(size) * time.Hour)
	for i := range accounts {
		next := accounts[(i+1)%len(accounts)]
		if err := g.flaggedTransfer(ctx, accounts[i].ID, next.ID, amount, at); err != nil {
			return err
		}
		amount *= 0.98 // layering fee at each hop
		at = at.Add(time.Hour)
	}

	g.summary.CircularRings++
	return nil
}

// injectFanOutBurst sends from one fresh source to many fresh recipients
// within a single hour.
func (g *Generator) injectFanOutBurst(ctx context.Context, recipients int) error {
	source, _, err := g.newFraudAccount(ctx, "fan")
	if err != nil {
		return err
	}

	at := g.params.Now.Add(-2 * time.Hour)
	for i := 0; i < recipients; i++ {
		recipient, _, err := g.newFraudAccount(ctx, "fan-dst")
		if err != nil {
			return err
		}
		if err := g.flaggedTransfer(ctx, source.ID, recipient.ID, 500+g.rng.Float64()*1500, at); err != nil {
			return err
		}
		at = at.Add(5 * time.Minute)
	}

	g.summary.FanOutBursts++
	return nil
}

// injectMuleChain routes a large inbound sum through a mule that forwards
// nearly all of it within hours.
func (g *Generator) injectMuleChain(ctx context.Context) error {
	origin, _, err := g.newFraudAccount(ctx, "mule-src")
	if err != nil {
		return err
	}
	mule, _, err := g.newFraudAccount(ctx, "mule")
	if err != nil {
		return err
	}
	destination, _, err := g.newFraudAccount(ctx, "mule-dst")
	if err != nil {
		return err
	}

	inbound := 12000 + g.rng.Float64()*8000
	receivedAt := g.params.Now.Add(-10 * time.Hour)
	if err := g.flaggedTransfer(ctx, origin.ID, mule.ID, inbound, receivedAt); err != nil {
		return err
	}
	// Forward within hours, retaining a small cut.
	if err := g.flaggedTransfer(ctx, mule.ID, destination.ID, inbound*0.97, receivedAt.Add(4*time.Hour)); err != nil {
		return err
	}

	g.summary.MuleChains++
	return nil
}

// injectSharedDeviceGroup registers one device used by several fresh
// customers.
func (g *Generator) injectSharedDeviceGroup(ctx context.Context, members int) error {
	device := &domain.Device{
		ID:        uuid.New().String(),
		Type:      "mobile",
		OS:        g.pick(operatingSystems),
		Browser:   g.pick(browsers),
		FirstSeen: g.params.Now.AddDate(0, 0, -14),
		LastSeen:  g.params.Now,
		IsTrusted: false,
	}
	if err := g.store.SaveDevice(ctx, device); err != nil {
		return err
	}
	g.devices = append(g.devices, device)

	for i := 0; i < members; i++ {
		_, customer, err := g.newFraudAccount(ctx, "shared-dev")
		if err != nil {
			return err
		}
		if err := g.store.RecordDeviceUse(ctx, customer.ID, device.ID, g.params.Now.AddDate(0, 0, -i)); err != nil {
			return err
		}
	}

	g.summary.SharedDeviceGroups++
	return nil
}
