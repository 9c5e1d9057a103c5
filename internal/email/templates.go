package email

import (
	"fmt"
	"html"
	"time"
)

// Message is a rendered email.
type Message struct {
	Template string
	Subject  string
	Body     string
}

func RegistrationOTP(code string, ttl time.Duration) Message {
	return Message{
		Template: "registration_otp",
		Subject:  "Your OTP for Registration",
		Body: fmt.Sprintf(`<p>Your OTP is: <strong>%s</strong>.</p><p>It will expire in %s.</p>`,
			code, minutes(ttl)),
	}
}

func RegistrationOTPResent(code string, ttl time.Duration) Message {
	return Message{
		Template: "registration_otp_resent",
		Subject:  "Your New OTP for Registration",
		Body: fmt.Sprintf(`<p>Your new OTP is: <strong>%s</strong>.</p><p>It will expire in %s.</p>`,
			code, minutes(ttl)),
	}
}

func Welcome(firstName string) Message {
	return Message{
		Template: "welcome",
		Subject:  "Welcome to Our Service",
		Body: fmt.Sprintf(`<p>Hello %s,</p><p>Welcome to our service! Your registration was successful. We're glad to have you on board.</p>`,
			html.EscapeString(firstName)),
	}
}

func LoginAlert(firstName string, at time.Time, device, ip string) Message {
	return Message{
		Template: "login_alert",
		Subject:  "New Login Alert",
		Body: fmt.Sprintf(`<p>Hello %s,</p><p>We noticed a new login to your account on %s from %s, IP: %s.</p><p>If this was you, no further action is needed. If you did not log in, please reset your password immediately.</p>`,
			html.EscapeString(firstName), at.UTC().Format(time.RFC3339), html.EscapeString(device), html.EscapeString(ip)),
	}
}

func PasswordResetOTP(code string, ttl time.Duration) Message {
	return Message{
		Template: "password_reset_otp",
		Subject:  "Password Reset OTP",
		Body: fmt.Sprintf(`<p>Your OTP for password reset is: <strong>%s</strong>.</p><p>It will expire in %s.</p>`,
			code, minutes(ttl)),
	}
}

func PasswordResetDone(firstName string) Message {
	return Message{
		Template: "password_reset_done",
		Subject:  "Password Reset Successful",
		Body: fmt.Sprintf(`<p>Hello %s,</p><p>Your password has been successfully reset. If you did not perform this action, please contact support immediately.</p>`,
			html.EscapeString(firstName)),
	}
}

func minutes(d time.Duration) string {
	m := int(d.Round(time.Minute) / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
