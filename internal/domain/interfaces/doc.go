// Package interfaces holds the contracts between the arbiter facade, its
// services and the storage layer.
package interfaces
