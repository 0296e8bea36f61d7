package errors

import (
	"sync"

	"podrunner/internal/ui"
)

var (
	defaultHandler *ErrorHandler
	once           sync.Once
	handlerErr     error
)

func GetDefaultHandler() (*ErrorHandler, error) {
	once.Do(func() {
		defaultHandler, handlerErr = NewErrorHandler()
	})
	return defaultHandler, handlerErr
}

// HandleError reports err through the default handler. Without a log file
// the error is still shown on the console.
func HandleError(err error) {
	if err == nil {
		return
	}
	if handler, hErr := GetDefaultHandler(); hErr == nil {
		handler.Handle(err)
		return
	}
	ui.NewConsole().PrintError(err.Error())
}

// resetDefaultHandler resets the singleton for testing purposes
func resetDefaultHandler() {
	defaultHandler = nil
	handlerErr = nil
	once = sync.Once{}
}
