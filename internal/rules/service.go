// Package rules guards the split-rule lifecycle: percentage, fee and
// priority may change only while no execution references the rule, and rules
// are only ever soft-deleted.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/msantanna/splitledger/internal/domain"
	"github.com/msantanna/splitledger/internal/logging"
)

type ruleStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SplitRule, error)
	Create(ctx context.Context, rule *domain.SplitRule) error
	Update(ctx context.Context, rule *domain.SplitRule) error
	SoftDelete(ctx context.Context, id uuid.UUID, when time.Time) error
}

type executionCounter interface {
	CountByRule(ctx context.Context, ruleID uuid.UUID) (int, error)
}

type Service struct {
	rules ruleStore
	execs executionCounter
}

func NewService(rules ruleStore, execs executionCounter) *Service {
	return &Service{rules: rules, execs: execs}
}

func (s *Service) CreateRule(ctx context.Context, contractID uuid.UUID, beneficiaryRef string, percentage, fixedFee decimal.Decimal, priority int) (*domain.SplitRule, error) {
	if err := validateBounds(percentage, fixedFee); err != nil {
		return nil, fmt.Errorf("CreateRule: %w", err)
	}

	now := time.Now().UTC()
	rule := &domain.SplitRule{
		ID:             uuid.New(),
		ContractID:     contractID,
		BeneficiaryRef: beneficiaryRef,
		Percentage:     percentage,
		FixedFee:       fixedFee,
		Priority:       priority,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("CreateRule: %w", err)
	}
	return rule, nil
}

// UpdateRule changes the mutable fields of a rule. Once any execution
// references the rule its terms are frozen and ErrRuleInUse is returned.
func (s *Service) UpdateRule(ctx context.Context, ruleID uuid.UUID, percentage, fixedFee decimal.Decimal, priority int) (*domain.SplitRule, error) {
	if err := validateBounds(percentage, fixedFee); err != nil {
		return nil, fmt.Errorf("UpdateRule: %w", err)
	}

	rule, err := s.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("UpdateRule: %w", err)
	}
	if rule.Deleted() {
		return nil, fmt.Errorf("UpdateRule: %w", domain.ErrNotFound)
	}

	count, err := s.execs.CountByRule(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("UpdateRule: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("UpdateRule: rule %s has %d executions: %w", ruleID, count, domain.ErrRuleInUse)
	}

	rule.Percentage = percentage
	rule.FixedFee = fixedFee
	rule.Priority = priority

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("UpdateRule: %w", err)
	}
	return rule, nil
}

// RemoveRule soft-deletes; the row stays for executions that reference it.
func (s *Service) RemoveRule(ctx context.Context, ruleID uuid.UUID) error {
	if err := s.rules.SoftDelete(ctx, ruleID, time.Now().UTC()); err != nil {
		return fmt.Errorf("RemoveRule: %w", err)
	}

	logging.FromContext(ctx).Info("split rule removed", "split_rule_id", ruleID)
	return nil
}

func validateBounds(percentage, fixedFee decimal.Decimal) error {
	if percentage.IsNegative() || percentage.GreaterThan(decimal.NewFromInt(100)) {
		return domain.ErrPercentageOutOfRange
	}
	if fixedFee.IsNegative() {
		return domain.ErrNegativeFee
	}
	return nil
}
