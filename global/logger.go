/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package global

// Logger is the logging contract shared by every package in GatewayAuth.
// Components accept a nil Logger and skip logging in that case.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Notice(msg string)
	Warning(msg string)
	Error(msg string)
	Fatal(msg string)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Noticef(format string, v ...any)
	Warningf(format string, v ...any)
	Errorf(format string, v ...any)
	Fatalf(format string, v ...any)
	Close()
}
