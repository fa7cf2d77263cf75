package sms

import (
	"context"
	"log/slog"
)

// LogSender is the development Sender: it writes the code to the log
// instead of a gateway, so local flows can be exercised end to end
// without SMS credentials.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, mobile, code string, scene Scene) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("sms_code_issued", "mobile", mobile, "scene", string(scene), "code", code)
	return nil
}

var _ Sender = (*LogSender)(nil)
