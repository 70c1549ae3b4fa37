package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"shipboard-health/internal/assessment/application"
	assessment "shipboard-health/internal/assessment/domain"
	equipment "shipboard-health/internal/equipment/domain"
	"shipboard-health/internal/observability/metrics"
)

const (
	channelWebhook   = "webhook"
	maxNotifyActions = 3
)

// EquipmentReader loads equipment metadata.
type EquipmentReader interface {
	Get(ctx context.Context, id string) (*equipment.Equipment, error)
}

// Clock provides time for dedupe bookkeeping.
type Clock interface {
	Now() time.Time
}

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier sends risk notifications for diagnoses at or above a minimum
// risk level.
type Notifier struct {
	equipment    EquipmentReader
	channel      Channel
	template     *Template
	minRisk      assessment.FaultRiskLevel
	clock        Clock
	logger       Logger
	cooldown     time.Duration
	dedupeWindow time.Duration
	mu           sync.Mutex
	sent         map[string]sendRecord
}

// Option configures the notifier.
type Option func(*Notifier)

// WithMinRisk sets the lowest risk level that triggers a notification.
func WithMinRisk(level assessment.FaultRiskLevel) Option {
	return func(n *Notifier) {
		if level.Rank() > 0 {
			n.minRisk = level
		}
	}
}

// WithEquipmentReader resolves equipment names for the message.
func WithEquipmentReader(reader EquipmentReader) Option {
	return func(n *Notifier) {
		n.equipment = reader
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithLogger assigns a logger for delivery failures.
func WithLogger(logger Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// WithCooldown sets a minimum interval between notifications for the same equipment and risk level.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs a risk notifier. The default minimum risk is high.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("assessment notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:  channel,
		template: template,
		minRisk:  assessment.RiskHigh,
		clock:    systemClock{},
		sent:     make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements application.ResultNotifier.
func (n *Notifier) Notify(ctx context.Context, event application.AssessmentEvent) {
	if n == nil || n.channel == nil || event.Diagnosis == nil {
		return
	}
	if event.RiskLevel().Rank() < n.minRisk.Rank() {
		return
	}
	data := buildTemplateData(event, n.equipmentName(ctx, event.EquipmentID))
	content, err := n.template.Render(data)
	if err != nil {
		metrics.IncNotify(channelWebhook, metrics.ResultError)
		n.logf("assessment notify render failed: equipment=%s err=%v", event.EquipmentID, err)
		return
	}
	key := notificationKey(event.EquipmentID, string(event.RiskLevel()))
	release, ok := n.claim(key, content)
	if !ok {
		return
	}
	if err := n.channel.Send(ctx, content); err != nil {
		release()
		metrics.IncNotify(channelWebhook, metrics.ResultError)
		n.logf("assessment notify failed: equipment=%s risk=%s err=%v", event.EquipmentID, event.RiskLevel(), err)
		return
	}
	metrics.IncNotify(channelWebhook, metrics.ResultSuccess)
}

func (n *Notifier) equipmentName(ctx context.Context, id string) string {
	if n.equipment == nil || id == "" {
		return id
	}
	item, err := n.equipment.Get(ctx, id)
	if err != nil || item == nil || item.Name == "" {
		return id
	}
	return item.Name
}

func buildTemplateData(event application.AssessmentEvent, name string) TemplateData {
	diagnosis := event.Diagnosis
	data := TemplateData{
		Equipment:   name,
		EquipmentID: event.EquipmentID,
		Event:       event.Type,
		RiskLevel:   string(diagnosis.FaultRiskLevel),
		RiskLabel:   riskLabel(diagnosis.FaultRiskLevel),
		Probability: formatFloat(diagnosis.FaultProbability),
		ReportID:    event.ReportID,
		Start:       formatTime(event.Start),
		End:         formatTime(event.End),
	}
	if event.SOH != nil {
		data.SOH = formatFloat(event.SOH.SOH)
	}
	if event.HealthIndex != nil {
		data.HealthIndex = formatFloat(event.HealthIndex.HealthIndex)
		data.Grade = string(event.HealthIndex.Grade)
	}
	if len(diagnosis.SuspectedFaults) > 0 {
		top := diagnosis.SuspectedFaults[0]
		data.SuspectedFault = fmt.Sprintf("%s (%s%%)", top.FaultType, formatFloat(top.Probability))
	}
	if diagnosis.PredictedFailureTime != nil {
		data.PredictedFailure = formatTime(*diagnosis.PredictedFailureTime)
	}
	for _, rec := range diagnosis.Recommendations {
		if len(data.Actions) == maxNotifyActions {
			break
		}
		data.Actions = append(data.Actions, fmt.Sprintf("[%s] %s", rec.Priority, rec.Action))
	}
	return data
}

func riskLabel(level assessment.FaultRiskLevel) string {
	switch level {
	case assessment.RiskCritical:
		return "Critical"
	case assessment.RiskHigh:
		return "High"
	case assessment.RiskMedium:
		return "Medium"
	case assessment.RiskLow:
		return "Low"
	default:
		return strings.ToUpper(string(level))
	}
}

func formatFloat(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

// claim checks cooldown and dedupe for key and records the send in the same
// critical section, so concurrent diagnoses cannot both pass. release undoes
// the record when delivery fails.
func (n *Notifier) claim(key, content string) (release func(), ok bool) {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return func() {}, true
	}
	now := n.clock.Now().UTC()
	claimed := sendRecord{at: now, hash: hashContent(content)}

	n.mu.Lock()
	defer n.mu.Unlock()
	prev, had := n.sent[key]
	if had {
		if n.cooldown > 0 && now.Sub(prev.at) < n.cooldown {
			return nil, false
		}
		if n.dedupeWindow > 0 && prev.hash == claimed.hash && now.Sub(prev.at) < n.dedupeWindow {
			return nil, false
		}
	}
	n.sent[key] = claimed
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if current, ok := n.sent[key]; !ok || current != claimed {
			return
		}
		if had {
			n.sent[key] = prev
		} else {
			delete(n.sent, key)
		}
	}, true
}

func (n *Notifier) logf(format string, args ...any) {
	if n.logger != nil {
		n.logger.Printf(format, args...)
	}
}

func notificationKey(equipmentID, risk string) string {
	return equipmentID + "|" + risk
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
