// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing pipeline state (messages, debate
// records, tool calls) and asserting logging behaviour. These helpers are
// intentionally minimal and not intended for production usage.
package testutil
