package claims

const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// Claims is the resolved identity of a caller.
type Claims struct {
	UserID int
	Role   string
}

func (c Claims) Admin() bool {
	return c.Role == RoleAdmin
}
