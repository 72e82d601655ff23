package model

// Account is the Telegram account resolved from a connected session.
type Account struct {
	ID        int64
	FirstName string
	LastName  string
}

// DisplayName joins first and last name, omitting the last name when empty.
func (a Account) DisplayName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}
