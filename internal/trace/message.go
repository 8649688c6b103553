package trace

type (
	// Message is produced on demand when a span is serialized. Text may be
	// plugin provided and is treated as untrusted: it can panic, and callers
	// must isolate the failure to the one span being written.
	Message interface {
		Text() string
		Detail() map[string]interface{}
	}

	// MessageSupplier defers message construction until capture time so the
	// hot span-creation path doesn't pay for formatting.
	MessageSupplier interface {
		Get() Message
	}

	// ErrorMessage is the error information attached to a span.
	ErrorMessage struct {
		Text      string
		Detail    map[string]interface{}
		Exception *CapturedException
	}

	// CapturedException mirrors an exception chain. Cause links form a
	// finite singly-linked chain. FramesInCommonWithCaused counts trailing
	// frames shared with the cause, used to truncate redundant printing.
	CapturedException struct {
		Display                  string
		StackTrace               []string
		FramesInCommonWithCaused int
		Cause                    *CapturedException
	}

	textMessage struct {
		text   string
		detail map[string]interface{}
	}

	textSupplier struct {
		message Message
	}
)

func (m textMessage) Text() string                   { return m.text }
func (m textMessage) Detail() map[string]interface{} { return m.detail }

func (s textSupplier) Get() Message { return s.message }

// MessageOf returns a supplier of a fixed text message with optional detail.
func MessageOf(text string, detail map[string]interface{}) MessageSupplier {
	return textSupplier{message: textMessage{text: text, detail: detail}}
}
