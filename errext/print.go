package errext

import "github.com/sirupsen/logrus"

// Fprint logs err at error level, attaching its hint (if any) as a field.
func Fprint(logger logrus.FieldLogger, err error) {
	if err == nil {
		return
	}
	text, fields := Format(err)
	if len(fields) == 0 {
		logger.Error(text)
		return
	}
	logger.WithFields(logrus.Fields(fields)).Error(text)
}
