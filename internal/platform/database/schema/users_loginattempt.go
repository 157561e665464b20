package schema

// UserLoginAttemptTable represents the 'users.login_attempt' table
type UserLoginAttemptTable struct {
	Table       string
	ID          string
	Username    string
	IPAddress   string
	Success     string
	AttemptedAt string
}

// UserLoginAttempt is the schema definition for users.login_attempt
var UserLoginAttempt = UserLoginAttemptTable{
	Table:       "users.login_attempt",
	ID:          "id",
	Username:    "username",
	IPAddress:   "ipaddress",
	Success:     "success",
	AttemptedAt: "attemptedat",
}
