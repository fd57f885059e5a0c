// internal/escalation/notifier.go
//
// Package escalation delivers crisis alerts to the on-call humans over
// SES email and an SNS topic. Delivery is best-effort: the escalation
// decision shown to the user is already final before Notify runs, so a
// channel failure is reported back but never blocks or rewrites it.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	commonaws "clarity-agent/internal/common/aws"
	"clarity-agent/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

var (
	ErrAlertDeliveryFailed = errors.New("ALERT_DELIVERY_FAILED")
)

// maxExcerptLen bounds how much raw user text leaves the service in an
// alert body.
const maxExcerptLen = 160

// SESService and SNSService mirror the common/aws wrappers so tests can
// substitute fakes.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Notifier struct {
	config    *Config
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
}

// NewNotifier builds AWS clients only for the channels that are enabled;
// a fully disabled notifier needs no credentials at all.
func NewNotifier(ctx context.Context, config *Config, log logger.Logger) (*Notifier, error) {
	if config == nil {
		config = DefaultConfig()
	}

	n := &Notifier{
		config: config,
		logger: log.WithFields(map[string]interface{}{"component": "escalation"}),
	}

	if config.EmailEnabled {
		client, err := commonaws.NewSESClient(ctx, config.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		n.sesClient = client
	}
	if config.SMSEnabled {
		client, err := commonaws.NewSNSClient(ctx, config.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		n.snsClient = client
	}

	return n, nil
}

// Notify dispatches one alert across every enabled channel. It always
// returns a receipt; a non-nil error reports channel failures for the
// caller to log and carries no veto over the escalation itself.
//
// Cancellation of the caller's context is deliberately not honored: a
// user who disconnects mid-crisis must not cancel the on-call page. Only
// the notifier's own timeout bounds delivery.
func (n *Notifier) Notify(ctx context.Context, alert *Alert) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.config.Timeout)
	defer cancel()
	return n.deliver(ctx, alert)
}

func (n *Notifier) deliver(ctx context.Context, alert *Alert) (*Receipt, error) {
	receipt := &Receipt{
		AlertID: uuid.New().String(),
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	}

	// A channel without a destination counts as disabled, not failed.
	emailWanted := n.config.EmailEnabled && n.config.OnCallEmail != ""
	smsWanted := n.config.SMSEnabled && n.config.TopicARN != ""

	if !emailWanted && !smsWanted {
		receipt.Status = StatusDisabled
		n.logger.Info("Crisis alert recorded, delivery disabled", map[string]interface{}{
			"alertId":        receipt.AlertID,
			"conversationId": alert.ConversationID,
			"trigger":        alert.Trigger,
		})
		return receipt, nil
	}

	tmpl := templateFor(alert.Trigger)
	data := alertData(alert)
	subject := renderTemplate(tmpl.subject, data)
	body := renderTemplate(tmpl.body, data)

	var failures []string
	delivered := 0

	if emailWanted {
		if err := n.sendEmail(ctx, subject, body); err != nil {
			n.logger.Error("On-call email failed", map[string]interface{}{
				"error":          err,
				"alertId":        receipt.AlertID,
				"conversationId": alert.ConversationID,
			})
			failures = append(failures, fmt.Sprintf("email: %v", err))
		} else {
			delivered++
		}
	}

	if smsWanted {
		if err := n.publishTopic(ctx, subject, body); err != nil {
			n.logger.Error("SNS publish failed", map[string]interface{}{
				"error":          err,
				"alertId":        receipt.AlertID,
				"conversationId": alert.ConversationID,
			})
			failures = append(failures, fmt.Sprintf("sns: %v", err))
		} else {
			delivered++
		}
	}

	switch {
	case len(failures) == 0:
		receipt.Status = StatusSent
	case delivered > 0:
		receipt.Status = StatusPartial
	default:
		receipt.Status = StatusFailed
	}

	if len(failures) > 0 {
		return receipt, fmt.Errorf("%w: %s", ErrAlertDeliveryFailed, strings.Join(failures, "; "))
	}

	n.logger.Info("Crisis alert delivered", map[string]interface{}{
		"alertId":        receipt.AlertID,
		"conversationId": alert.ConversationID,
		"trigger":        alert.Trigger,
		"channels":       delivered,
	})
	return receipt, nil
}

func (n *Notifier) sendEmail(ctx context.Context, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{n.config.OnCallEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.FromEmail),
	})
	return err
}

func (n *Notifier) publishTopic(ctx context.Context, subject, body string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.config.TopicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	})
	return err
}

type alertTemplate struct {
	subject string
	body    string
}

var alertTemplates = map[string]alertTemplate{
	TriggerDetector: {
		subject: "Crisis alert: conversation {{conversationId}}",
		body: "A crisis signal was detected in conversation {{conversationId}}.\n\n" +
			"Signals: {{signals}}\n" +
			"Assessment: {{rationale}}\n" +
			"User said: \"{{excerpt}}\"\n\n" +
			"The user has been shown the crisis resources. Please follow the on-call runbook.",
	},
	TriggerLatched: {
		subject: "Crisis follow-up: conversation {{conversationId}}",
		body: "Conversation {{conversationId}} is still escalated from an earlier turn.\n\n" +
			"Assessment: {{rationale}}\n" +
			"User said: \"{{excerpt}}\"\n\n" +
			"The session stays escalated until an operator resets it.",
	},
}

// templateFor falls back to the detector template: an alert with an
// unrecognized trigger still has to reach someone.
func templateFor(trigger string) alertTemplate {
	if tmpl, ok := alertTemplates[trigger]; ok {
		return tmpl
	}
	return alertTemplates[TriggerDetector]
}

func alertData(alert *Alert) map[string]interface{} {
	return map[string]interface{}{
		"conversationId": alert.ConversationID,
		"trigger":        alert.Trigger,
		"signals":        strings.Join(alert.Signals, ", "),
		"rationale":      alert.Rationale,
		"excerpt":        truncate(alert.Excerpt, maxExcerptLen),
	}
}

// renderTemplate substitutes {{key}} placeholders and strips any left
// unfilled, so a half-populated data map never leaks braces into an
// on-call email.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if i, ok := v.(int); ok {
			value = fmt.Sprintf("%d", i)
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
