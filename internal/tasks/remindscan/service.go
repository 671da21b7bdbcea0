// internal/tasks/remindscan/service.go
package remindscan

import (
	"context"
	"fmt"
	"time"

	"nudge-engine/internal/common/logger"
	"nudge-engine/internal/common/metrics"
	"nudge-engine/internal/models"
)

// SnapshotReader loads the scan input: agents and their in-flight
// transactions with milestones and parties attached.
type SnapshotReader interface {
	AgentsWithActiveTransactions(ctx context.Context) ([]models.User, error)
	ActiveTransactions(ctx context.Context, agentID string) ([]models.Transaction, error)
}

// RuleReader loads an agent's active notification rules.
type RuleReader interface {
	ActiveRulesForAgent(ctx context.Context, agentID string) (models.RuleSet, error)
}

// IntentQueue enqueues notification intents with idempotency-key dedupe.
type IntentQueue interface {
	Enqueue(ctx context.Context, n *models.NotificationLog) (bool, error)
}

// MilestoneRecorder persists per-milestone reminder bookkeeping.
type MilestoneRecorder interface {
	RecordReminder(ctx context.Context, milestoneID string, escalationLevel int) error
}

// Service is the hourly reminder scanner. It converts due-date state into
// queued notification intents; it never sends anything itself.
type Service struct {
	config     *Config
	snapshots  SnapshotReader
	rules      RuleReader
	queue      IntentQueue
	milestones MilestoneRecorder
	logger     logger.Logger
	now        func() time.Time
}

func NewService(
	cfg *Config,
	snapshots SnapshotReader,
	rules RuleReader,
	queue IntentQueue,
	milestones MilestoneRecorder,
	log logger.Logger,
) *Service {
	return &Service{
		config:     cfg,
		snapshots:  snapshots,
		rules:      rules,
		queue:      queue,
		milestones: milestones,
		logger:     log,
		now:        time.Now,
	}
}

// Run executes one full scan pass. Suitable as a scheduler task.
func (s *Service) Run(ctx context.Context) error {
	summary, err := s.Scan(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("reminder scan completed", map[string]interface{}{
		"agents":          summary.Agents,
		"agents_skipped":  summary.AgentsSkipped,
		"transactions":    summary.Transactions,
		"intents_created": summary.IntentsCreated,
		"skipped":         summary.Skipped,
		"errors":          summary.Errors,
	})
	return nil
}

// Scan walks every agent with active transactions and evaluates each
// transaction in isolation. Only the initial agent listing can fail the
// whole pass.
func (s *Service) Scan(ctx context.Context) (*ScanSummary, error) {
	agents, err := s.snapshots.AgentsWithActiveTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	summary := &ScanSummary{Agents: len(agents)}
	for i := range agents {
		s.scanAgent(ctx, &agents[i], summary)
	}
	return summary, nil
}

func (s *Service) scanAgent(ctx context.Context, agent *models.User, summary *ScanSummary) {
	if agent.VacationMode {
		summary.AgentsSkipped++
		s.logger.Debug("agent on vacation, skipping", map[string]interface{}{
			"agent_id": agent.ID,
		})
		return
	}

	loc := s.agentLocation(agent)
	today := dateIn(s.now(), loc)

	rules, err := s.rules.ActiveRulesForAgent(ctx, agent.ID)
	if err != nil {
		summary.Errors++
		s.logger.WithError(err).Error("failed to load rules for agent", map[string]interface{}{
			"agent_id": agent.ID,
		})
		return
	}
	if len(rules) == 0 {
		return
	}

	transactions, err := s.snapshots.ActiveTransactions(ctx, agent.ID)
	if err != nil {
		summary.Errors++
		s.logger.WithError(err).Error("failed to load transactions for agent", map[string]interface{}{
			"agent_id": agent.ID,
		})
		return
	}

	for i := range transactions {
		summary.Transactions++
		res := s.evalTransaction(ctx, &transactions[i], rules, today)

		metrics.ScanEntities.WithLabelValues(res.Outcome).Inc()
		switch res.Outcome {
		case OutcomeErrored:
			summary.Errors++
			s.logger.WithError(res.Err).Error("transaction evaluation failed", map[string]interface{}{
				"transaction_id": res.TransactionID,
			})
		case OutcomeSkipped:
			summary.Skipped++
		default:
			summary.IntentsCreated += res.IntentsQueued
		}
	}
}

// evalTransaction evaluates one transaction's milestones. Any error is
// captured in the result so a bad transaction never aborts the scan.
func (s *Service) evalTransaction(ctx context.Context, txn *models.Transaction, rules models.RuleSet, today time.Time) EvalResult {
	res := EvalResult{TransactionID: txn.ID}

	if txn.Overrides.RemindersDisabled() {
		res.Outcome = OutcomeSkipped
		return res
	}

	for i := range txn.Milestones {
		ms := &txn.Milestones[i]
		if ms.IsTerminal() || ms.DueDate == nil {
			continue
		}
		if ms.RemindersPausedUntil != nil && ms.RemindersPausedUntil.After(s.now()) {
			continue
		}

		rule := rules.Resolve(ms.Type)
		if rule == nil {
			continue
		}

		ntype, level, fires := classify(daysBetween(today, dateOf(*ms.DueDate)), rule, s.effectiveDays(txn, ms, rule))
		if !fires {
			continue
		}

		queued, err := s.enqueueForMilestone(ctx, txn, ms, rule, ntype, level)
		if err != nil {
			res.Outcome = OutcomeErrored
			res.Err = err
			return res
		}
		res.IntentsQueued += queued
	}

	res.Outcome = OutcomeSuccess
	return res
}

func (s *Service) enqueueForMilestone(ctx context.Context, txn *models.Transaction, ms *models.Milestone, rule *models.NotificationRule, ntype string, level int) (int, error) {
	now := s.now()
	keyDate := now.UTC().Format("2006-01-02")

	queued := 0
	for i := range txn.Parties {
		p := &txn.Parties[i]
		if p.Role != ms.ResponsiblePartyRole || !p.Reachable() {
			continue
		}

		n := &models.NotificationLog{
			TransactionID:   txn.ID,
			MilestoneID:     ms.ID,
			RuleID:          rule.ID,
			Type:            ntype,
			EscalationLevel: level,
			RecipientEmail:  p.Email,
			RecipientName:   p.Name,
			RecipientRole:   p.Role,
			Subject:         fmt.Sprintf("Reminder: %s", ms.Title),
			ScheduledFor:    now,
			IdempotencyKey:  fmt.Sprintf("%s:%s:%s:%s", ms.ID, p.Email, ntype, keyDate),
		}

		inserted, err := s.queue.Enqueue(ctx, n)
		if err != nil {
			return queued, fmt.Errorf("enqueue intent for milestone %s: %w", ms.ID, err)
		}
		if !inserted {
			continue
		}

		queued++
		metrics.IntentsQueued.WithLabelValues(ntype).Inc()
		if err := s.milestones.RecordReminder(ctx, ms.ID, level); err != nil {
			s.logger.WithError(err).Warn("failed to record reminder on milestone", map[string]interface{}{
				"milestone_id": ms.ID,
			})
		}
	}
	return queued, nil
}

// effectiveDays resolves the reminder window: transaction override first,
// then the milestone's own setting, then the rule.
func (s *Service) effectiveDays(txn *models.Transaction, ms *models.Milestone, rule *models.NotificationRule) int {
	if txn.Overrides != nil && txn.Overrides.ReminderDaysOverride != nil {
		return *txn.Overrides.ReminderDaysOverride
	}
	if ms.ReminderDaysBefore != nil {
		return *ms.ReminderDaysBefore
	}
	return rule.DaysBefore
}

func (s *Service) agentLocation(agent *models.User) *time.Location {
	if agent.Timezone != "" {
		if loc, err := time.LoadLocation(agent.Timezone); err == nil {
			return loc
		}
		s.logger.Warn("invalid agent timezone, using default", map[string]interface{}{
			"agent_id": agent.ID,
			"timezone": agent.Timezone,
		})
	}
	loc, err := time.LoadLocation(s.config.timezone())
	if err != nil {
		return time.UTC
	}
	return loc
}

// classify maps calendar distance to a notification type and escalation
// level, or reports that nothing fires.
func classify(daysUntil int, rule *models.NotificationRule, effectiveDays int) (string, int, bool) {
	switch {
	case daysUntil == 0:
		return models.NotificationTypeDueToday, 0, true
	case daysUntil > 0 && daysUntil <= effectiveDays:
		return models.NotificationTypeReminder, 0, true
	case daysUntil < 0 && rule.EscalationEnabled:
		level := escalationLevel(-daysUntil, rule.EffectiveEscalationDays())
		return models.OverdueType(level), level, true
	}
	return "", 0, false
}

// escalationLevel is the count of satisfied thresholds, capped at 3. A
// milestone one day overdue against [1,3,7] is level 1; five days overdue is
// level 2.
func escalationLevel(daysOverdue int, thresholds []int) int {
	level := 0
	for _, t := range thresholds {
		if daysOverdue >= t {
			level++
		}
	}
	if level > 3 {
		level = 3
	}
	return level
}

// dateIn truncates an instant to its calendar date in loc, normalized to UTC
// midnight for day arithmetic. Used only for "today": due dates are
// date-only values and go through dateOf instead.
func dateIn(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
}

// dateOf takes a stored due date's calendar date as-is, without timezone
// conversion, normalized to UTC midnight.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole calendar days from a to b. Both must be UTC
// midnights.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
