package project

// User represents a system user.
type User struct {
	ID    int
	Name  string
	Email string
}

// Admin is a user allowed to audit other users.
type Admin struct {
	User
	Auditor
	Level int
}

// Repository is the interface for user storage.
type Repository interface {
	FindByID(id int) (*User, error)
	Save(user *User) error
}

// Auditor records privileged actions.
type Auditor interface {
	Audit(action string, args ...string)
}

// AuditedRepository is a Repository whose writes are audited.
type AuditedRepository interface {
	Repository
	Auditor
}

func newUser(name, email string) *User {
	return &User{Name: name, Email: email}
}
