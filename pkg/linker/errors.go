package linker

import "fmt"

// LinkError reports a required library absent from both the
// distribution's library set and the OS-provided ignore list.
type LinkError struct {
	Library string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("required library %q not found in distribution and not on the target ignore list", e.Library)
}

func (e *LinkError) LinkError() {}
