// Package domain defines core data models, errors and interfaces shared
// across the arbiter. It contains plain types (state and persisted records)
// and contracts (interfaces) only.
package domain
