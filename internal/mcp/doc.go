// Package mcp serves finagent over the Model Context Protocol.
//
// It registers four tools on a stdio server: agent_run, memory_status,
// memory_reset and learning_report. Tools call the orchestrator directly.
package mcp
