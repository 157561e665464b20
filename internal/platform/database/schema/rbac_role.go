package schema

// RbacRoleTable represents the 'rbac.role' table
type RbacRoleTable struct {
	Table       string
	ID          string
	Name        string
	Description string
	Priority    string
	CreatedAt   string
	UpdatedAt   string
}

// RbacRole is the schema definition for rbac.role
var RbacRole = RbacRoleTable{
	Table:       "rbac.role",
	ID:          "id",
	Name:        "name",
	Description: "description",
	Priority:    "priority",
	CreatedAt:   "createdat",
	UpdatedAt:   "updatedat",
}
