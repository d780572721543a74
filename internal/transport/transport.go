// SPDX-License-Identifier: MIT
package transport

// Transport defines a generic interface for pushing events or state to
// clients. Implementations must be safe for concurrent use.
type Transport interface {
	Send(data any) error
	Close() error
}
