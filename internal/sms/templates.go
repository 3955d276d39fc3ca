package sms

import "fmt"

// Template bodies are registered with the operator and must match exactly.

// OTPText is the login code message.
func OTPText(code string) string {
	return fmt.Sprintf("UKUCC-Your login OTP is %s. Do not share it with anyone. Valid for 10 minutes.", code)
}

// WelcomeText greets an auto-created account.
func WelcomeText(phone string) string {
	return fmt.Sprintf("UKUCC-Welcome %s! Your account has been created successfully.", phone)
}

// TicketCreatedText confirms a new ticket to its requester.
func TicketCreatedText(ticketNumber string) string {
	return fmt.Sprintf("UKUCC-Your ticket %s has been created. Our team will contact you shortly.", ticketNumber)
}
