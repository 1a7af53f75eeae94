package jobs

import (
	"github.com/wattflow/backend/internal/kafka"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

// Mailer delivers one rendered mail.
type Mailer interface {
	Send(to []string, template string, data map[string]interface{}) error
}

// LogMailer records outbound mail in the log instead of sending it.
// Deployments without an SMTP relay run with this.
type LogMailer struct {
	logger *utils.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *utils.Logger) *LogMailer {
	return &LogMailer{logger: logger.Named("mailer")}
}

// Send logs the mail that would have been delivered.
func (m *LogMailer) Send(to []string, template string, data map[string]interface{}) error {
	m.logger.Info("outbound mail",
		zap.Strings("to", to),
		zap.String("template", template),
		zap.Any("data", data))
	return nil
}

// MailProcessor consumes queued mail jobs and hands them to the mailer.
type MailProcessor struct {
	mailer Mailer
	logger *utils.Logger
}

// NewMailProcessor creates the mail worker.
func NewMailProcessor(mailer Mailer, logger *utils.Logger) *MailProcessor {
	return &MailProcessor{
		mailer: mailer,
		logger: logger.Named("mail_processor"),
	}
}

// Process delivers one queued mail job.
func (p *MailProcessor) Process(job kafka.MailJob) error {
	if len(job.To) == 0 {
		p.logger.Warn("dropping mail job without recipients",
			zap.String("template", job.Template))
		return nil
	}
	return p.mailer.Send(job.To, job.Template, job.Data)
}
