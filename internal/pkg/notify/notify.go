// Package notify carries user-facing notices from controllers to whatever renders them.
package notify

// Notice is a translatable message: Key is an i18n key, Params fill its placeholders.
type Notice struct {
	Key    string
	Params map[string]any
}

// Notifier receives notices. Implementations must not block for long; they are called
// from controller goroutines.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a plain function to Notifier.
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = Func(func(Notice) {})

// New builds a Notice for key with optional placeholder values.
func New(key string, params map[string]any) Notice {
	return Notice{Key: key, Params: params}
}
