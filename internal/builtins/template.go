package builtins

import (
	"fmt"

	"github.com/flosch/pongo2/v6"
	lua "github.com/yuin/gopher-lua"
)

// registerTemplate installs the __raw_template table the prelude's
// template.* wraps. render reads from disk and is a suspension point;
// render_string needs no I/O and runs synchronously.
func registerTemplate(deps Deps) {
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"render":        templateRender(deps),
		"render_string": templateRenderString,
	})
	deps.L.SetGlobal("__raw_template", tbl)
}

func varsContext(tbl *lua.LTable) (pongo2.Context, error) {
	if tbl == nil {
		return pongo2.Context{}, nil
	}
	goVal, err := ToGo(tbl)
	if err != nil {
		return nil, err
	}
	m, ok := goVal.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("vars must be a table")
	}
	return pongo2.Context(m), nil
}

func templateRender(deps Deps) lua.LGFunction {
	return func(L *lua.LState) int {
		path := L.CheckString(1)
		var varsTbl *lua.LTable
		if t, ok := L.Get(2).(*lua.LTable); ok {
			varsTbl = t
		}

		ctx, err := varsContext(varsTbl)
		if err != nil {
			L.RaiseError("template.render: %s", err.Error())
			return 0
		}

		return deps.Scheduler.Await(L, func() []lua.LValue {
			tpl, err := pongo2.FromFile(path)
			if err != nil {
				return []lua.LValue{asyncErrTable(L, fmt.Errorf("template.render: %w", err))}
			}
			rendered, err := tpl.Execute(ctx)
			if err != nil {
				return []lua.LValue{asyncErrTable(L, fmt.Errorf("template.render: %w", err))}
			}
			return []lua.LValue{lua.LString(rendered)}
		})
	}
}

func templateRenderString(L *lua.LState) int {
	tmplStr := L.CheckString(1)
	var varsTbl *lua.LTable
	if t, ok := L.Get(2).(*lua.LTable); ok {
		varsTbl = t
	}

	ctx, err := varsContext(varsTbl)
	if err != nil {
		L.RaiseError("template.render_string: %s", err.Error())
		return 0
	}

	tpl, err := pongo2.FromString(tmplStr)
	if err != nil {
		L.RaiseError("template.render_string: %s", err.Error())
		return 0
	}
	rendered, err := tpl.Execute(ctx)
	if err != nil {
		L.RaiseError("template.render_string: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(rendered))
	return 1
}
