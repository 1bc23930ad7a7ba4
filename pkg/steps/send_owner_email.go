package steps

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/provisio/provisio/pkg/mailer"
	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/tenant"
	"github.com/provisio/provisio/pkg/token"
)

// SendOwnerEmail looks up the tenant owner, issues a one-time login token
// and emails the login link. The owner prerequisite is checked before
// anything is created. A failed send is logged and recorded but does not
// fail the step: a duplicate email on retry is tolerable, a stuck workflow
// is not.
type SendOwnerEmail struct {
	directory tenant.Directory
	issuer    *token.Issuer
	sender    mailer.Sender
	linkBase  string
	tokenTTL  time.Duration
	logger    *slog.Logger
}

func NewSendOwnerEmail(
	directory tenant.Directory,
	issuer *token.Issuer,
	sender mailer.Sender,
	linkBase string,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *SendOwnerEmail {
	return &SendOwnerEmail{
		directory: directory,
		issuer:    issuer,
		sender:    sender,
		linkBase:  linkBase,
		tokenTTL:  tokenTTL,
		logger:    logger.With("module", "step_send_owner_email"),
	}
}

func (s *SendOwnerEmail) ID() models.StepID {
	return models.StepSendOwnerEmail
}

func (s *SendOwnerEmail) Run(ctx context.Context, state *models.WorkflowState) error {
	t, err := s.directory.GetTenant(ctx, state.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	if t.OwnerEmail == "" {
		return ErrOwnerEmailMissing
	}

	loginToken, err := s.issuer.Issue(state.TenantID, t.OwnerEmail, s.tokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue login token: %w", err)
	}

	link := s.linkBase + "?token=" + url.QueryEscape(loginToken)

	result := s.sender.Send(ctx, t.OwnerEmail, link, t.Name)
	if !result.Success {
		// Best-effort: the notification failing must not block provisioning.
		s.logger.WarnContext(ctx, "Owner email send failed, completing step anyway",
			"tenant_id", state.TenantID, "error", result.Error)

		return nil
	}

	s.logger.InfoContext(ctx, "Owner email sent",
		"tenant_id", state.TenantID, "message_id", result.MessageID)

	return nil
}
