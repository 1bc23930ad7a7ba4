// Package steps implements the provisioning step effects. Every step is safe
// to re-run after a crash: effects are idempotent (flag writes, upserts by
// natural key) or checked before creating anything.
package steps

import "errors"

var (
	// ErrWebhookURLMissing is returned when a tenant reaches webhook
	// validation without a configured webhook URL.
	ErrWebhookURLMissing = errors.New("webhook_url_missing")

	// ErrOwnerEmailMissing is returned when the tenant row has no owner
	// email to deliver the login link to.
	ErrOwnerEmailMissing = errors.New("owner_email_missing")
)
