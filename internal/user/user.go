// Package user defines the user model used throughout the application,
// particularly for authentication and visit tracking.
package user

// User represents a person identified by the (Name, Surname) pair.
// The pair acts as a natural key for login lookups but is not enforced
// as unique by the storage layer.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string

	// Name is the user's first name. Required.
	Name string

	// Surname is the user's last name. Required.
	Surname string

	// PasswordHash holds the bcrypt hash stored for the user. Every
	// auto-created account receives the single global fixed hash, so the
	// field is vestigial for password checks but kept for fidelity with
	// the stored record shape.
	PasswordHash string

	// VisitCount is the number of authenticated home page views.
	VisitCount int
}
