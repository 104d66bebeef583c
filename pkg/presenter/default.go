package presenter

import "sync"

var (
	defaultPresenter *TerminalPresenter
	defaultOnce      sync.Once
)

func getDefault() *TerminalPresenter {
	defaultOnce.Do(func() {
		defaultPresenter = New()
	})
	return defaultPresenter
}

// Error displays an error via the default presenter.
func Error(err error, context string) { getDefault().Error(err, context) }

// Success displays a success message via the default presenter.
func Success(message string) { getDefault().Success(message) }

// Warning displays a warning via the default presenter.
func Warning(message string) { getDefault().Warning(message) }

// Info displays an informational message via the default presenter.
func Info(message string) { getDefault().Info(message) }

// Section displays a section header via the default presenter.
func Section(title string) { getDefault().Section(title) }

// SetQuiet toggles quiet mode on the default presenter.
func SetQuiet(quiet bool) { getDefault().SetQuiet(quiet) }
