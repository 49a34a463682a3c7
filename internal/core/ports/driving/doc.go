// Package driving provides interfaces for application entry points
// (primary/inbound ports). The CLI and MCP adapters call core services
// through these interfaces.
package driving
