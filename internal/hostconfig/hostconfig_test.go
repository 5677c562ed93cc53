package hostconfig

import (
	"slices"
	"testing"

	koanf "github.com/knadh/koanf/v2"
)

func TestMapConfig_ParametersAndNames(t *testing.T) {
	params := map[string]string{"b": "2", "a": "1"}
	c := NewMapConfig(params, nil)
	params["c"] = "3" // must not leak into the copy

	if v, ok := c.InitParameter("a"); !ok || v != "1" {
		t.Fatalf("InitParameter(a) = %q, %v", v, ok)
	}
	if _, ok := c.InitParameter("c"); ok {
		t.Fatalf("caller mutation leaked into MapConfig")
	}

	got := slices.Collect(c.InitParameterNames())
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("names = %v, want [a b]", got)
	}
	if c.ApplicationContext() == nil {
		t.Fatalf("nil application context")
	}
}

func TestMapConfig_NamesStopEarly(t *testing.T) {
	c := NewMapConfig(map[string]string{"a": "", "b": "", "c": ""}, nil)
	var seen []string
	for n := range c.InitParameterNames() {
		seen = append(seen, n)
		if n == "b" {
			break
		}
	}
	if !slices.Equal(seen, []string{"a", "b"}) {
		t.Fatalf("seen = %v", seen)
	}
}

func TestKoanfConfig_FlattensSubtree(t *testing.T) {
	k := koanf.New(".")
	for key, v := range map[string]any{
		"dispatch.exclude_patterns": []any{"/static/.*", "/health"},
		"dispatch.reload_configs":   true,
		"dispatch.static.prefix":    "/static/",
		"http.listen_addr":          ":8080",
	} {
		if err := k.Set(key, v); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	app := NewApplication("test", "/srv")
	c := NewKoanfConfig(k, "dispatch", app)

	if v, _ := c.InitParameter("exclude_patterns"); v != "/static/.*,/health" {
		t.Fatalf("exclude_patterns = %q", v)
	}
	if v, _ := c.InitParameter("reload_configs"); v != "true" {
		t.Fatalf("reload_configs = %q", v)
	}
	if v, ok := c.InitParameter("static_prefix"); !ok || v != "/static/" {
		t.Fatalf("static_prefix = %q, %v", v, ok)
	}
	if _, ok := c.InitParameter("listen_addr"); ok {
		t.Fatalf("key outside the subtree was visible")
	}

	names := slices.Collect(c.InitParameterNames())
	want := []string{"exclude_patterns", "reload_configs", "static_prefix"}
	if !slices.Equal(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	if c.ApplicationContext() != app {
		t.Fatalf("application handle not passed through")
	}
}

func TestApplication_Attributes(t *testing.T) {
	a := NewApplication("x", "")
	a.SetAttribute("k", 1)
	if v, ok := a.Attribute("k"); !ok || v != 1 {
		t.Fatalf("Attribute(k) = %v, %v", v, ok)
	}
	a.SetAttribute("k", nil)
	if _, ok := a.Attribute("k"); ok {
		t.Fatalf("nil SetAttribute did not delete")
	}
}
