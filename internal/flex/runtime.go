package flex

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wegman-software/chainmerge/internal/logger"
	"github.com/wegman-software/chainmerge/internal/point"
)

// ErrNoTransform is returned when a script does not define transform(row)
var ErrNoTransform = errors.New("script does not define transform(row)")

// Runtime manages the Lua interpreter running a chain's row transform script.
//
// A script defines a global function transform(row) that receives the raw
// vendor record as a table of strings and returns a table of tags, or nil to
// skip the record.
type Runtime struct {
	L         *lua.LState
	mu        sync.Mutex
	chain     string
	transform lua.LValue
}

// NewRuntime creates a new Lua runtime with the chainmerge API
func NewRuntime(chain string) *Runtime {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	r := &Runtime{
		L:     L,
		chain: chain,
	}

	r.registerAPI()
	return r
}

// Close releases Lua resources
func (r *Runtime) Close() {
	r.L.Close()
}

// registerAPI registers the chainmerge Lua API
func (r *Runtime) registerAPI() {
	api := r.L.NewTable()
	api.RawSetString("version", lua.LString("1.0.0"))
	api.RawSetString("chain", lua.LString(r.chain))
	r.L.SetGlobal("chainmerge", api)

	// Adds chainmerge.transforms and convenience globals
	RegisterTransforms(r.L)

	r.L.SetGlobal("print", r.L.NewFunction(r.luaPrint))
}

// LoadFile loads and executes a Lua transform script
func (r *Runtime) LoadFile(path string) error {
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to load Lua file: %w", err)
	}
	return r.extractCallback()
}

// LoadString loads and executes Lua code from a string
func (r *Runtime) LoadString(code string) error {
	if err := r.L.DoString(code); err != nil {
		return fmt.Errorf("failed to load Lua code: %w", err)
	}
	return r.extractCallback()
}

func (r *Runtime) extractCallback() error {
	fn := r.L.GetGlobal("transform")
	if fn.Type() != lua.LTFunction {
		return ErrNoTransform
	}
	r.transform = fn
	return nil
}

// Transform runs transform(row) and converts the returned table to tags.
// keep is false when the script returned nil.
func (r *Runtime) Transform(row map[string]string) (tags point.Tags, keep bool, err error) {
	if r.transform == nil {
		return nil, false, ErrNoTransform
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	arg := r.L.NewTable()
	for k, v := range row {
		arg.RawSetString(k, lua.LString(v))
	}

	if err := r.L.CallByParam(lua.P{
		Fn:      r.transform,
		NRet:    1,
		Protect: true,
	}, arg); err != nil {
		return nil, false, fmt.Errorf("transform failed: %w", err)
	}

	ret := r.L.Get(-1)
	r.L.Pop(1)

	switch v := ret.(type) {
	case *lua.LNilType:
		return nil, false, nil
	case *lua.LTable:
		return tableToTags(v), true, nil
	default:
		return nil, false, fmt.Errorf("transform returned %s, want table or nil", ret.Type())
	}
}

// tableToTags converts a Lua table to tags, dropping empty values
func tableToTags(tbl *lua.LTable) point.Tags {
	tags := make(point.Tags)
	tbl.ForEach(func(key, value lua.LValue) {
		k, ok := key.(lua.LString)
		if !ok {
			return
		}
		var v string
		switch val := value.(type) {
		case lua.LString:
			v = string(val)
		case lua.LNumber:
			v = val.String()
		case lua.LBool:
			if val {
				v = "yes"
			} else {
				v = "no"
			}
		default:
			return
		}
		if v != "" {
			tags[string(k)] = v
		}
	})
	return tags
}

// luaPrint routes print() to the debug log
func (r *Runtime) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	var parts []string
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	logger.Get().Debug("lua", zap.String("chain", r.chain), zap.String("msg", strings.Join(parts, "\t")))
	return 0
}
