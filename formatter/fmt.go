package formatter

import (
	"errors"
	"strings"

	"github.com/gnolang/tsbump/internal/types"
)

// FormatError renders err as the single line printed before exiting.
func FormatError(err error) string {
	msg := strings.Join(strings.Fields(err.Error()), " ")

	var hint string
	switch {
	case errors.Is(err, types.ErrDirtyTree):
		hint = "commit or stash your changes"
	case errors.Is(err, types.ErrDetachedHead):
		hint = "check out a branch or pass --to"
	}

	line := errorStyle.Sprint("error: ") + msg
	if hint != "" {
		line += noStyle.Sprint(" (" + hint + ")")
	}
	return line + "\n"
}
