package notify

import (
	"fmt"
	"html"
	"net/url"
	"strings"
)

func PINResetMessage(to, pin string) Message {
	return Message{
		To:      to,
		Subject: "Your Secure PIN has been updated",
		Text: fmt.Sprintf("Hello,\n\nYour new security PIN is: %s\n\n"+
			"If you did not request this, please contact support.", pin),
		HTML: fmt.Sprintf(`<html><body><h2>Security Update</h2><p>Hello,</p>`+
			`<p>Your new security PIN is: <strong>%s</strong></p>`+
			`<p style="color: red;">If you did not request this, please contact support immediately.</p>`+
			`</body></html>`, html.EscapeString(pin)),
	}
}

func PasswordResetMessage(to, appURL, token string) Message {
	link := ResetLink(appURL, token)
	return Message{
		To:      to,
		Subject: "Password Reset Request",
		Text: fmt.Sprintf("Hello,\n\nPlease use the following link to reset your password: %s\n\n"+
			"If you did not request this, please contact support.", link),
		HTML: fmt.Sprintf(`<html><body><h2>Password Reset</h2><p>Hello,</p>`+
			`<p><a href="%s">Reset your password</a></p>`+
			`<p>The link expires soon. If you did not request this, please ignore this email.</p>`+
			`</body></html>`, html.EscapeString(link)),
	}
}

// ResetLink builds the password reset URL. A bare host is served over https.
func ResetLink(appURL, token string) string {
	base := strings.TrimRight(appURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base + "/reset?token=" + url.QueryEscape(token)
}
