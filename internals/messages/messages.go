package messages

import "fmt"

// Key identifies a user-facing message. Surfaces render it with Text; the
// key itself is what travels through the task machinery.
type Key string

const (
	PleaseWait        Key = "please_wait"
	EnterPassword     Key = "enter_password"
	IncorrectPassword Key = "incorrect_password"
	NameRequired      Key = "name_is_required"
	InvalidName       Key = "invalid_name"
	WalletExists      Key = "wallet_exists"
	PasswordsMismatch Key = "wallet_passwords_mismatch"
	InvalidSeed       Key = "invalid_seed"
	SeedRequired      Key = "seed_required"
	WalletNotFound    Key = "wallet_not_found"
)

var texts = map[Key]string{
	PleaseWait:        "Please wait...",
	EnterPassword:     "Please enter a password",
	IncorrectPassword: "Incorrect password",
	NameRequired:      "Name is required",
	InvalidName:       "Invalid name",
	WalletExists:      "A wallet with that name already exists. Please enter a different name.",
	PasswordsMismatch: "Wallet passwords do not match",
	InvalidSeed:       "The seed you entered does not appear to be valid. Please check it carefully.",
	SeedRequired:      "Please enter your seed phrase",
	WalletNotFound:    "Wallet not found",
}

func Text(key Key) string {
	if text, ok := texts[key]; ok {
		return text
	}
	return string(key)
}

// Textf renders key and appends the formatted detail, if any.
func Textf(key Key, format string, args ...any) string {
	detail := fmt.Sprintf(format, args...)
	if detail == "" {
		return Text(key)
	}
	return Text(key) + ": " + detail
}

// Known reports whether key has a registered text.
func Known(key Key) bool {
	_, ok := texts[key]
	return ok
}
