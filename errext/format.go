package errext

import "errors"

// Format renders err for a human, preferring a VU stack trace over the bare
// error text, and returns any hint as a structured field so callers (log
// formatters, JSON output) can place it independently of the message.
func Format(err error) (string, map[string]interface{}) {
	if err == nil {
		return "", nil
	}

	text := err.Error()
	var exc Exception
	if errors.As(err, &exc) {
		text = exc.StackTrace()
	}

	var fields map[string]interface{}
	var hinted HasHint
	if errors.As(err, &hinted) {
		fields = map[string]interface{}{"hint": hinted.Hint()}
	}

	return text, fields
}
