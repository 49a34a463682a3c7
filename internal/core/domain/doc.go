// Package domain contains the core business entities and rules for findmysh.
// It has no dependencies on infrastructure - adapters depend on domain,
// never the other way around.
package domain
