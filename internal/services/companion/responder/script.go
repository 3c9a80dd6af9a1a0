package responder

import (
	"context"
	"fmt"
	"os"
	"sync"

	lua "github.com/Shopify/go-lua"
)

// ReplyFunction is the global a companion script must define:
//
//	function reply(text, artist) return "..." end
//
// Returning nil or an empty string defers to the built-in rules.
const ReplyFunction = "reply"

// ScriptBackend answers through a Lua script.
type ScriptBackend struct {
	mu    sync.Mutex
	state *lua.State
}

// LoadScript reads and runs the script at path.
func LoadScript(path string) (*ScriptBackend, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read companion script: %w", err)
	}
	return NewScriptBackend(string(source))
}

// NewScriptBackend runs source in a fresh state and checks that it defines
// the reply function.
func NewScriptBackend(source string) (*ScriptBackend, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)
	if err := lua.DoString(state, source); err != nil {
		return nil, fmt.Errorf("run companion script: %w", err)
	}
	state.Global(ReplyFunction)
	defer state.Pop(1)
	if state.TypeOf(-1) != lua.TypeFunction {
		return nil, fmt.Errorf("companion script must define function %q", ReplyFunction)
	}
	return &ScriptBackend{state: state}, nil
}

// Reply calls reply(text, artist). Lua states are single-threaded, so calls
// are serialized.
func (b *ScriptBackend) Reply(ctx context.Context, text, artist string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	top := b.state.Top()
	defer b.state.SetTop(top)

	b.state.Global(ReplyFunction)
	b.state.PushString(text)
	b.state.PushString(artist)
	if err := b.state.ProtectedCall(2, 1, 0); err != nil {
		return "", fmt.Errorf("companion script: %w", err)
	}
	switch b.state.TypeOf(-1) {
	case lua.TypeNil:
		return "", nil
	case lua.TypeString:
		value, _ := b.state.ToString(-1)
		return value, nil
	default:
		return "", fmt.Errorf("companion script returned %s, want string", lua.TypeNameOf(b.state, -1))
	}
}
