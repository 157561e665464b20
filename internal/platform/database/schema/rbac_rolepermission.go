package schema

// RbacRolePermissionTable represents the 'rbac.role_permission' join table
type RbacRolePermissionTable struct {
	Table        string
	RoleID       string
	PermissionID string
}

// RbacRolePermission is the schema definition for rbac.role_permission
var RbacRolePermission = RbacRolePermissionTable{
	Table:        "rbac.role_permission",
	RoleID:       "roleid",
	PermissionID: "permissionid",
}
