package builtins

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// registerKube installs the __raw_kube table the prelude's kube.get/
// kube.list wrap. Both talk to the API server over the network, so — like
// http/db/ws — they are suspension points: every entry point goes through
// Scheduler.Await rather than blocking the scheduler's single loop
// goroutine directly.
func registerKube(deps Deps) {
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"get":  kubeGet(deps),
		"list": kubeList(deps),
	})
	deps.L.SetGlobal("__raw_kube", tbl)
}

// kindToGVR maps the small set of kinds scripts are expected to assert on
// onto their GroupVersionResource. Kinds outside this set are a
// configuration error a script author will notice immediately.
var kindToGVR = map[string]schema.GroupVersionResource{
	"pods":         {Group: "", Version: "v1", Resource: "pods"},
	"services":     {Group: "", Version: "v1", Resource: "services"},
	"configmaps":   {Group: "", Version: "v1", Resource: "configmaps"},
	"secrets":      {Group: "", Version: "v1", Resource: "secrets"},
	"nodes":        {Group: "", Version: "v1", Resource: "nodes"},
	"deployments":  {Group: "apps", Version: "v1", Resource: "deployments"},
	"statefulsets": {Group: "apps", Version: "v1", Resource: "statefulsets"},
	"daemonsets":   {Group: "apps", Version: "v1", Resource: "daemonsets"},
	"jobs":         {Group: "batch", Version: "v1", Resource: "jobs"},
}

func buildDynamicClient() (dynamic.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := clientcmd.NewDefaultClientConfigLoadingRules().GetDefaultFilename()
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("building kubernetes client config: %w", err)
		}
	}
	return dynamic.NewForConfig(cfg)
}

func resolveGVR(kind string) (schema.GroupVersionResource, error) {
	gvr, ok := kindToGVR[kind]
	if !ok {
		return schema.GroupVersionResource{}, fmt.Errorf("kube: unsupported kind %q", kind)
	}
	return gvr, nil
}

func kubeGet(deps Deps) lua.LGFunction {
	return func(L *lua.LState) int {
		kind := L.CheckString(1)
		namespace := L.CheckString(2)
		name := L.CheckString(3)

		return deps.Scheduler.Await(L, func() []lua.LValue {
			gvr, err := resolveGVR(kind)
			if err != nil {
				return []lua.LValue{asyncErrTable(L, err)}
			}
			client, err := buildDynamicClient()
			if err != nil {
				return []lua.LValue{asyncErrTable(L, fmt.Errorf("kube.get: %w", err))}
			}
			obj, err := client.Resource(gvr).Namespace(namespace).Get(context.Background(), name, metav1.GetOptions{})
			if err != nil {
				return []lua.LValue{lua.LNil}
			}
			lv, err := FromGo(L, obj.Object)
			if err != nil {
				return []lua.LValue{asyncErrTable(L, fmt.Errorf("kube.get: %w", err))}
			}
			return []lua.LValue{lv}
		})
	}
}

func kubeList(deps Deps) lua.LGFunction {
	return func(L *lua.LState) int {
		kind := L.CheckString(1)
		namespace := L.CheckString(2)

		return deps.Scheduler.Await(L, func() []lua.LValue {
			gvr, err := resolveGVR(kind)
			if err != nil {
				return []lua.LValue{asyncErrTable(L, err)}
			}
			client, err := buildDynamicClient()
			if err != nil {
				return []lua.LValue{asyncErrTable(L, fmt.Errorf("kube.list: %w", err))}
			}
			list, err := client.Resource(gvr).Namespace(namespace).List(context.Background(), metav1.ListOptions{})
			if err != nil {
				return []lua.LValue{asyncErrTable(L, fmt.Errorf("kube.list: %w", err))}
			}

			result := L.NewTable()
			for i, item := range list.Items {
				lv, err := FromGo(L, item.Object)
				if err != nil {
					return []lua.LValue{asyncErrTable(L, fmt.Errorf("kube.list: %w", err))}
				}
				result.RawSetInt(i+1, lv)
			}
			return []lua.LValue{result}
		})
	}
}
