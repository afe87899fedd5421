// Package enrich resolves canonical payees and categories for transactions.
//
// Enrichment runs in two steps per transaction, normalize then categorize,
// each exactly once. Both steps are non-fatal: an unmatched payee or an
// unresolved category is logged and the transaction continues with the
// field left empty.
package enrich

import (
	"context"
	"fmt"

	"github.com/rumor-ml/commons.systems/txconv/internal/amount"
	"github.com/rumor-ml/commons.systems/txconv/internal/config"
	"github.com/rumor-ml/commons.systems/txconv/internal/domain"
	"github.com/rumor-ml/commons.systems/txconv/internal/logger"
	"github.com/rumor-ml/commons.systems/txconv/internal/rules"
)

// Prompter asks the user to choose one of several options.
type Prompter interface {
	// Select returns the 0-based index of the chosen option, or ok=false when
	// the user chose to skip.
	Select(ctx context.Context, question string, options []string) (index int, ok bool, err error)
}

// Catalog is the read-only configuration enrichment needs.
// *config.Config satisfies it.
type Catalog interface {
	Account() *config.Account
	Category(id string) (*config.Category, bool)
	SkipPrompts() bool
}

// Normalizer resolves raw payee text to one of an account's payees.
type Normalizer struct {
	account *config.Account
	engine  *rules.Engine
}

// NewNormalizer compiles the account's normalizer rules.
func NewNormalizer(account *config.Account) (*Normalizer, error) {
	engine, err := rules.NewEngine(account.PayeeNormalizers)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", account.ID, err)
	}
	return &Normalizer{account: account, engine: engine}, nil
}

// Normalize returns txn advanced to the normalized phase. When no rule
// matches the payee ids stay empty and a warning is logged.
func (n *Normalizer) Normalize(ctx context.Context, txn domain.Transaction) (domain.Transaction, error) {
	result, ok := n.engine.Match(txn.RawPayeeName())
	if !ok {
		log := logger.FromContext(ctx)
		log.Warn().
			Str("account", n.account.ID).
			Str("payee", txn.RawPayeeName()).
			Msg("payee was not normalized")
		return txn.WithNormalizedPayee("", "")
	}

	// Best-effort: the id is normally validated at load time
	var name string
	if payee, found := n.account.Payee(result.PayeeID); found {
		name = payee.Name
	}
	return txn.WithNormalizedPayee(result.PayeeID, name)
}

// Categorizer assigns a category from the resolved payee's candidates,
// prompting when there is more than one.
type Categorizer struct {
	catalog  Catalog
	prompter Prompter
}

// NewCategorizer creates a categorizer. prompter may be nil when prompts are
// skipped.
func NewCategorizer(catalog Catalog, prompter Prompter) *Categorizer {
	return &Categorizer{catalog: catalog, prompter: prompter}
}

// Categorize returns txn advanced to the categorized phase and whether the
// user was asked. A transaction whose payee was not normalized keeps any
// category supplied by its source row.
func (c *Categorizer) Categorize(ctx context.Context, txn domain.Transaction) (domain.Transaction, bool, error) {
	name, prompted, err := c.resolve(ctx, txn)
	if err != nil {
		return txn, prompted, err
	}

	out, err := txn.WithCategory(name)
	if err != nil {
		return txn, prompted, err
	}

	if out.Category() == "" {
		log := logger.FromContext(ctx)
		log.Warn().
			Str("payee", out.Payee()).
			Str("amount", amount.Format(out.Amount())).
			Str("type", string(out.Type())).
			Time("date", out.Date()).
			Msg("transaction has no category")
	}
	return out, prompted, nil
}

func (c *Categorizer) resolve(ctx context.Context, txn domain.Transaction) (string, bool, error) {
	if !txn.IsNormalized() {
		return "", false, nil
	}

	payee, ok := c.catalog.Account().Payee(txn.NormalizedPayeeID())
	if !ok {
		return "", false, nil
	}

	var names []string
	seen := make(map[string]bool, len(payee.CategoryIDs))
	for _, id := range payee.CategoryIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if category, found := c.catalog.Category(id); found {
			names = append(names, category.Name)
		}
	}

	switch {
	case len(names) == 0:
		return "", false, nil
	case len(names) == 1:
		return names[0], false, nil
	case c.catalog.SkipPrompts() || c.prompter == nil:
		return "", false, nil
	}

	question := fmt.Sprintf("Select a category for %s (%s %s on %s)",
		txn.Payee(), amount.Format(txn.Amount()), txn.Type(), txn.Date().Format("2006-01-02"))
	index, chosen, err := c.prompter.Select(ctx, question, names)
	if err != nil {
		return "", true, fmt.Errorf("category prompt for %s: %w", txn.Payee(), err)
	}
	if !chosen {
		return "", true, nil
	}
	if index < 0 || index >= len(names) {
		return "", true, fmt.Errorf("category prompt for %s returned option %d of %d", txn.Payee(), index+1, len(names))
	}
	return names[index], true, nil
}
