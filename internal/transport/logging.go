// SPDX-License-Identifier: MIT
package transport

import (
	"vizsync/internal/log"
)

// LoggingTransport implements Transport by writing payloads to the debug
// log. Useful when running headless without any client attached.
type LoggingTransport struct{}

func NewLoggingTransport() *LoggingTransport {
	log.Info("transport: using logging transport")
	return &LoggingTransport{}
}

// Send logs the payload at debug level. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	log.Debugf("transport: %+v", data)
	return nil
}

func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
