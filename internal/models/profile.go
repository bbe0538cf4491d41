package models

// Profile is the public record kept for every authenticated identity.
type Profile struct {
	ID        string  `json:"id" db:"id"`
	Email     string  `json:"email" db:"email"`
	FirstName *string `json:"first_name" db:"first_name"`
	LastName  *string `json:"last_name" db:"last_name"`
}

// FullName returns "First Last" when both names are known.
func (p Profile) FullName() string {
	if p.FirstName == nil || p.LastName == nil || *p.FirstName == "" || *p.LastName == "" {
		return ""
	}
	return *p.FirstName + " " + *p.LastName
}

// DisplayName prefers the full name and falls back to the email.
func (p Profile) DisplayName() string {
	if name := p.FullName(); name != "" {
		return name
	}
	return p.Email
}
