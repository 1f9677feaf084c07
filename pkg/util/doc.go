// Package util provides small generic helpers shared by the relay's
// packages
package util
