package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewContextID generates a context identifier of the form
// ctx-<unix-millis>-<random suffix>. The millisecond prefix keeps store
// directory listings roughly chronological; the random suffix makes
// concurrent handovers collision-free.
func NewContextID() string {
	return fmt.Sprintf("ctx-%d-%s", time.Now().UnixMilli(), randomSuffix())
}

// NewTaskID generates a task identifier with a stable prefix for display.
func NewTaskID() string {
	return fmt.Sprintf("task-%s", randomSuffix())
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
