package notify

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"pipewatch/backend/services/monitor-service/internal/metrics"
	"pipewatch/backend/services/monitor-service/internal/models"
)

// SMTPSettings configures the outbound mail path.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailNotifier delivers out-of-band alarm and offline notifications.
// Sends run on their own goroutine and never propagate failure; the
// ingestion pipeline must not notice a broken SMTP relay.
type EmailNotifier struct {
	dialer            *gomail.Dialer
	from              string
	alarmRecipients   []string
	offlineRecipients []string
	enabled           bool
	logger            *zap.Logger
}

// NewEmailNotifier builds the notifier. Missing SMTP credentials disable
// delivery rather than failing startup.
func NewEmailNotifier(smtp SMTPSettings, alarmRecipients, offlineRecipients []string, logger *zap.Logger) *EmailNotifier {
	enabled := strings.TrimSpace(smtp.Host) != "" && strings.TrimSpace(smtp.Username) != ""
	if !enabled {
		logger.Warn("email notifications disabled, smtp credentials not configured")
	}
	from := strings.TrimSpace(smtp.From)
	if from == "" {
		from = smtp.Username
	}
	return &EmailNotifier{
		dialer:            gomail.NewDialer(smtp.Host, smtp.Port, smtp.Username, smtp.Password),
		from:              from,
		alarmRecipients:   alarmRecipients,
		offlineRecipients: offlineRecipients,
		enabled:           enabled,
		logger:            logger,
	}
}

// NotifyAlarm sends a high-severity alarm notification, fire-and-forget.
func (n *EmailNotifier) NotifyAlarm(station *models.Station, alarm *models.AlarmEvent) {
	if !n.enabled || len(n.alarmRecipients) == 0 {
		return
	}

	subject := fmt.Sprintf("PipeWatch alert: %s priority - %s", strings.ToUpper(string(alarm.Severity)), station.Name)
	body := fmt.Sprintf(
		"Station: %s (%s)\nLocation: %s\nParameter: %s\nValue: %g\nThreshold: %s\nSeverity: %s\nTriggered: %s\n",
		station.Name,
		station.StationID,
		station.Location,
		alarm.Parameter,
		alarm.Value,
		alarm.ThresholdKind,
		alarm.Severity,
		alarm.TriggeredAt.Format(time.RFC3339),
	)

	go n.send(n.alarmRecipients, subject, body)
}

// NotifyOffline sends an offline-station notification, fire-and-forget.
func (n *EmailNotifier) NotifyOffline(station *models.Station) {
	if !n.enabled || len(n.offlineRecipients) == 0 {
		return
	}

	subject := fmt.Sprintf("PipeWatch alert: station %s offline", station.Name)
	body := fmt.Sprintf(
		"Station: %s (%s)\nLocation: %s\nLast contact: %s\n\nThe station has not reported telemetry and was marked offline.\n",
		station.Name,
		station.StationID,
		station.Location,
		station.LastSeen.Format(time.RFC3339),
	)

	go n.send(n.offlineRecipients, subject, body)
}

func (n *EmailNotifier) send(recipients []string, subject, body string) {
	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(msg); err != nil {
		metrics.NotificationFailures.Inc()
		n.logger.Error("failed to send email notification",
			zap.String("subject", subject),
			zap.Strings("recipients", recipients),
			zap.Error(err))
		return
	}
	n.logger.Info("email notification sent", zap.String("subject", subject), zap.Int("recipients", len(recipients)))
}
