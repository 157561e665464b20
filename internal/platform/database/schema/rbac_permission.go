package schema

// RbacPermissionTable represents the 'rbac.permission' table
type RbacPermissionTable struct {
	Table       string
	ID          string
	Name        string
	Resource    string
	Action      string
	Description string
}

// RbacPermission is the schema definition for rbac.permission
var RbacPermission = RbacPermissionTable{
	Table:       "rbac.permission",
	ID:          "id",
	Name:        "name",
	Resource:    "resource",
	Action:      "action",
	Description: "description",
}
