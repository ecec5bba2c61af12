package types

import (
	"fmt"
	"strings"
)

// ProcessRole is the part a process plays in a session.
// Fixed at startup and never changed.
type ProcessRole string

const (
	RoleClient       ProcessRole = "client"
	RoleServer       ProcessRole = "server"
	RoleRenderServer ProcessRole = "render_server"
	RoleBatch        ProcessRole = "batch"
	RoleDataOnly     ProcessRole = "data_only"
)

// Roles lists every role in resolution order.
var Roles = []ProcessRole{RoleClient, RoleServer, RoleRenderServer, RoleBatch, RoleDataOnly}

// ParseRole parses a role name. Accepts dashes in place of underscores.
func ParseRole(s string) (ProcessRole, error) {
	norm := ProcessRole(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, r := range Roles {
		if r == norm {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid role %q: must be one of client, server, render_server, batch, data_only", s)
}

// Renders reports whether the role owns rendering work on this process.
func (r ProcessRole) Renders() bool {
	switch r {
	case RoleServer, RoleRenderServer, RoleBatch:
		return true
	default:
		return false
	}
}
