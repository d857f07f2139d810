package domain

// AuthProvider tells how an operator signed in.
type AuthProvider string

const (
	ProviderPassword AuthProvider = "PASSWORD"
	ProviderGoogle   AuthProvider = "GOOGLE"
)

// Operator is a person allowed to work on reconciliations.
// Operators are configured, not stored; the ID ends up in audit fields and resolver stamps.
type Operator struct {
	OperatorID   string       `json:"operatorID"`
	Name         string       `json:"name"`
	Email        string       `json:"email,omitempty"`
	Provider     AuthProvider `json:"provider"`
	PasswordHash string       `json:"-"`
}
