package snapshot

import (
	"fmt"

	gojson "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/snaptrace/snaptrace/internal/stacktree"
	"github.com/snaptrace/snaptrace/internal/trace"
)

type exceptionView struct {
	Display                  string         `json:"display"`
	StackTrace               []string       `json:"stackTrace"`
	FramesInCommonWithCaused int            `json:"framesInCommonWithCaused"`
	Cause                    *exceptionView `json:"cause,omitempty"`
}

// messageText retrieves the message text, isolating failures in plugin
// provided Text implementations to the one field being written.
func messageText(m trace.Message) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = fmt.Sprintf("an error occurred calling Text() on %T", m)
			log.Warn().Interface("error", r).Msg(text)
		}
	}()
	return m.Text()
}

func exceptionJSON(e *trace.CapturedException) (string, error) {
	b, err := gojson.Marshal(newExceptionView(e))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// newExceptionView follows the cause chain, stripping synthetic
// instrumentation frames from each captured stack trace. Cause chains are
// finite by construction.
func newExceptionView(e *trace.CapturedException) *exceptionView {
	if e == nil {
		return nil
	}
	return &exceptionView{
		Display:                  e.Display,
		StackTrace:               stacktree.StripSyntheticFrames(e.StackTrace),
		FramesInCommonWithCaused: e.FramesInCommonWithCaused,
		Cause:                    newExceptionView(e.Cause),
	}
}
