package middleware

import tele "gopkg.in/telebot.v4"

// OperatorOptions defines how operator-only checks behave.
type OperatorOptions struct {
	OperatorID int64
	OnReject   tele.HandlerFunc
}

// WithOperatorCheck wraps a handler enforcing operator-only execution.
func WithOperatorCheck(opts OperatorOptions, operatorOnly bool, handler tele.HandlerFunc) tele.HandlerFunc {
	if !operatorOnly || opts.OperatorID == 0 {
		return handler
	}
	return func(c tele.Context) error {
		if c.Sender() == nil || c.Sender().ID != opts.OperatorID {
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
		return handler(c)
	}
}
