package notify

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"time"

	"github.com/00Thor/CCPUR-sub000/internal/pkg/email"
)

// Notifier composes portal emails and dispatches them
type Notifier struct {
	dispatcher  Dispatcher
	frontendURL string
	portalName  string
}

// NewNotifier creates a Notifier. frontendURL is used to build links.
func NewNotifier(dispatcher Dispatcher, frontendURL, portalName string) *Notifier {
	if portalName == "" {
		portalName = "College Portal"
	}
	return &Notifier{dispatcher: dispatcher, frontendURL: frontendURL, portalName: portalName}
}

// ApplicationApproved tells an applicant they have been admitted
func (n *Notifier) ApplicationApproved(ctx context.Context, to, name string, applicationID, studentID int64) error {
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>Your application <strong>#%d</strong> has been approved. Your student record number is <strong>%d</strong>.</p>
<p>You can now sign in to the portal to view your semester details.</p>
<p>Regards,<br>%s</p>`, html.EscapeString(name), applicationID, studentID, html.EscapeString(n.portalName))
	return n.dispatcher.Dispatch(ctx, email.Message{To: to, Subject: "Your application has been approved", HTML: body})
}

// ApplicationRejected tells an applicant their application was not accepted
func (n *Notifier) ApplicationRejected(ctx context.Context, to, name string, applicationID int64) error {
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>We regret to inform you that your application <strong>#%d</strong> was not approved.</p>
<p>Regards,<br>%s</p>`, html.EscapeString(name), applicationID, html.EscapeString(n.portalName))
	return n.dispatcher.Dispatch(ctx, email.Message{To: to, Subject: "Update on your application", HTML: body})
}

// RegistrationCode sends the one-time code that confirms a new account
func (n *Notifier) RegistrationCode(ctx context.Context, to, name, code string, ttl time.Duration) error {
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your verification code is <strong>%s</strong>. It expires in %d minutes.</p>
<p>If you did not request an account, ignore this email.</p>`, html.EscapeString(name), code, int(ttl.Minutes()))
	return n.dispatcher.Dispatch(ctx, email.Message{To: to, Subject: "Your verification code", HTML: body})
}

// PasswordReset sends a reset link carrying token
func (n *Notifier) PasswordReset(ctx context.Context, to, name, token string) error {
	link := n.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Use the link below to choose a new password. It is valid for one hour.</p>
<p><a href="%s">Reset password</a></p>`, html.EscapeString(name), html.EscapeString(link))
	return n.dispatcher.Dispatch(ctx, email.Message{To: to, Subject: "Reset your password", HTML: body})
}
