package builtins

import (
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"
	lua "github.com/yuin/gopher-lua"
)

// registerVault installs the __raw_vault table the prelude's vault.read/
// vault.health wrap: thin wrappers over hashicorp/vault/api addressed via
// VAULT_ADDR/VAULT_TOKEN, falling through env.get so a check's env map can
// override either. Both calls hit the network, so — like http/db/ws —
// they're suspension points routed through Scheduler.Await.
func registerVault(deps Deps) {
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"read":   vaultRead(deps),
		"health": vaultHealth(deps),
	})
	deps.L.SetGlobal("__raw_vault", tbl)
}

func vaultClient(deps Deps) (*vaultapi.Client, error) {
	cfg := vaultapi.DefaultConfig()
	if addr, ok := deps.EnvGet("VAULT_ADDR"); ok && addr != "" {
		cfg.Address = addr
	}
	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if token, ok := deps.EnvGet("VAULT_TOKEN"); ok {
		client.SetToken(token)
	}
	return client, nil
}

func vaultRead(deps Deps) lua.LGFunction {
	return func(L *lua.LState) int {
		path := L.CheckString(1)

		return deps.Scheduler.Await(L, func() []lua.LValue {
			client, err := vaultClient(deps)
			if err != nil {
				return []lua.LValue{asyncErrTable(L, fmt.Errorf("vault.read: %w", err))}
			}

			secret, err := client.Logical().Read(path)
			if err != nil {
				return []lua.LValue{asyncErrTable(L, fmt.Errorf("vault.read: %w", err))}
			}
			if secret == nil {
				return []lua.LValue{lua.LNil}
			}

			lv, err := FromGo(L, secret.Data)
			if err != nil {
				return []lua.LValue{asyncErrTable(L, fmt.Errorf("vault.read: %w", err))}
			}
			return []lua.LValue{lv}
		})
	}
}

func vaultHealth(deps Deps) lua.LGFunction {
	return func(L *lua.LState) int {
		return deps.Scheduler.Await(L, func() []lua.LValue {
			client, err := vaultClient(deps)
			if err != nil {
				return []lua.LValue{asyncErrTable(L, fmt.Errorf("vault.health: %w", err))}
			}

			health, err := client.Sys().Health()
			if err != nil {
				return []lua.LValue{asyncErrTable(L, fmt.Errorf("vault.health: %w", err))}
			}

			tbl := L.NewTable()
			tbl.RawSetString("initialized", lua.LBool(health.Initialized))
			tbl.RawSetString("sealed", lua.LBool(health.Sealed))
			tbl.RawSetString("standby", lua.LBool(health.Standby))
			tbl.RawSetString("version", lua.LString(health.Version))
			tbl.RawSetString("cluster_name", lua.LString(health.ClusterName))
			return []lua.LValue{tbl}
		})
	}
}
