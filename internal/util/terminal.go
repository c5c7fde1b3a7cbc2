package util

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// GetTerminalWidth returns the width of the terminal, or 80 if not a terminal
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil {
		return 80
	}
	return width
}

// NewRowProgress returns a progress bar for copying total rows, or nil when
// stderr is not a terminal or output is quiet. A nil bar is safe to pass
// around; callers check for nil before Add.
func NewRowProgress(total int, description string) *progressbar.ProgressBar {
	if total <= 0 || IsQuiet() || !IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	width := GetTerminalWidth() / 3
	if width < 20 {
		width = 20
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(width),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
