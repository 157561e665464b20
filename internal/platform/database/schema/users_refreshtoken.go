package schema

// UserRefreshTokenTable represents the 'users.refresh_token' table
type UserRefreshTokenTable struct {
	Table     string
	ID        string
	UserID    string
	TokenHash string
	UserAgent string
	IPAddress string
	ExpiresAt string
	RevokedAt string
	CreatedAt string
}

// UserRefreshToken is the schema definition for users.refresh_token
var UserRefreshToken = UserRefreshTokenTable{
	Table:     "users.refresh_token",
	ID:        "id",
	UserID:    "userid",
	TokenHash: "tokenhash",
	UserAgent: "useragent",
	IPAddress: "ipaddress",
	ExpiresAt: "expiresat",
	RevokedAt: "revokedat",
	CreatedAt: "createdat",
}
