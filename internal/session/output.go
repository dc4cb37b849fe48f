package session

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/vimlm/internal/logging"
)

// WriteResponse replaces the response file with s and records the write.
func (d *Driver) WriteResponse(s string) error {
	d.logger.Info(s, logging.Key(logging.KeyToVim))
	if err := os.WriteFile(d.responsePath, []byte(s), 0644); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

// streamTo opens the response file for appending, so a streamed reply lands
// after whatever WriteResponse left there.
func (d *Driver) streamTo() (*os.File, error) {
	f, err := os.OpenFile(d.responsePath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open response for streaming: %w", err)
	}
	return f, nil
}

func (d *Driver) debug(msg string, fields ...zap.Field) {
	d.logger.Debug(msg, append(fields, logging.Key(logging.KeyDebug))...)
}
