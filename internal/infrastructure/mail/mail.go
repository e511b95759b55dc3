// Package mail delivers password reset jobs. Each sender implements
// ports.ResetSender.
package mail

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pathfinder/identity-gateway/internal/core/ports"
)

const resetSubject = "Reset your Pathfinder password"

// ResetLink builds the frontend URL the recipient follows to choose a new
// password.
func ResetLink(frontendURL, token string) string {
	return strings.TrimRight(frontendURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

func resetBody(job ports.PasswordReset, link string) string {
	name := job.FirstName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"<p>Hi %s,</p>"+
			"<p>We received a request to reset your password. The link below is valid for a limited time.</p>"+
			"<p><a href=\"%s\">Reset password</a></p>"+
			"<p>If you did not request this, you can ignore this email.</p>",
		name, link,
	)
}
