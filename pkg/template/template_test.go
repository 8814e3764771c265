package template

import (
	"strings"
	"testing"

	toml "github.com/pelletier/go-toml/v2"
)

func TestGenerator_Generate(t *testing.T) {
	generator := NewGenerator()

	tests := []struct {
		name         string
		templateType TemplateType
		configName   string
		expectError  bool
		validate     func(*testing.T, *ConfigTemplate)
	}{
		{
			name:         "watch_template",
			templateType: TypeWatch,
			configName:   "media",
			validate: func(t *testing.T, tpl *ConfigTemplate) {
				if len(tpl.Observers) != 1 {
					t.Fatalf("expected one observer, got %d", len(tpl.Observers))
				}
				if tpl.Observers[0].Name != "media" {
					t.Errorf("expected observer name 'media', got '%s'", tpl.Observers[0].Name)
				}
				if tpl.Observers[0].Path != "/watch/media" {
					t.Errorf("unexpected path: %s", tpl.Observers[0].Path)
				}
				if tpl.Server != nil {
					t.Error("watch template should not configure a server")
				}
			},
		},
		{
			name:         "daemon_template",
			templateType: TypeDaemon,
			configName:   "uploads",
			validate: func(t *testing.T, tpl *ConfigTemplate) {
				if tpl.Server == nil || tpl.Server.Listen != ":8601" {
					t.Errorf("expected server listen :8601, got %+v", tpl.Server)
				}
				if tpl.Resources == nil || !tpl.Resources.Enabled {
					t.Error("expected resources enabled")
				}
				if tpl.Resources.Interval != "5s" {
					t.Errorf("unexpected interval: %s", tpl.Resources.Interval)
				}
				if tpl.Log == nil || tpl.Log.File == nil {
					t.Error("expected file log configuration")
				}
			},
		},
		{
			name:         "services_template",
			templateType: TypeServices,
			configName:   "data",
			validate: func(t *testing.T, tpl *ConfigTemplate) {
				if tpl.ServiceDir != "__watchservice__" {
					t.Errorf("unexpected service dir: %s", tpl.ServiceDir)
				}
			},
		},
		{
			name:         "history_template",
			templateType: TypeHistory,
			configName:   "audit",
			validate: func(t *testing.T, tpl *ConfigTemplate) {
				if len(tpl.History) != 3 {
					t.Fatalf("expected three sink entries, got %d", len(tpl.History))
				}
				if !strings.HasPrefix(tpl.History[0].DSN, "sqlite://") {
					t.Errorf("expected sqlite DSN first, got %s", tpl.History[0].DSN)
				}
				if !strings.Contains(tpl.History[1].DSN, "postgres://") {
					t.Errorf("expected postgres DSN, got %s", tpl.History[1].DSN)
				}
			},
		},
		{
			name:         "alias_basic",
			templateType: TypeBasic,
			configName:   "x",
			validate: func(t *testing.T, tpl *ConfigTemplate) {
				if len(tpl.Observers) != 1 {
					t.Error("basic alias should produce a watch template")
				}
			},
		},
		{
			name:         "unknown_type",
			templateType: TemplateType("mesh"),
			configName:   "x",
			expectError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := generator.Generate(tt.templateType, tt.configName)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.validate(t, tpl)
		})
	}
}

func TestGenerator_GenerateTOML(t *testing.T) {
	generator := NewGenerator()

	data, err := generator.GenerateTOML(TypeDaemon, "uploads")
	if err != nil {
		t.Fatalf("GenerateTOML: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "log_dir") {
		t.Error("expected log_dir key")
	}
	if !strings.Contains(content, "[[observers]]") {
		t.Error("expected observers array table")
	}
	if !strings.Contains(content, "[server]") {
		t.Error("expected server section")
	}

	// The output must parse back into the same shape.
	var back ConfigTemplate
	if err := toml.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal generated TOML: %v", err)
	}
	if len(back.Observers) != 1 || back.Observers[0].Name != "uploads" {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestGenerator_GenerateTOMLUnknownType(t *testing.T) {
	generator := NewGenerator()
	if _, err := generator.GenerateTOML(TemplateType("bad"), "x"); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestGenerator_GetSupportedTypes(t *testing.T) {
	types := NewGenerator().GetSupportedTypes()
	if len(types) != 4 {
		t.Fatalf("expected 4 supported types, got %d", len(types))
	}
	for _, typ := range []string{"watch", "daemon", "services", "history"} {
		found := false
		for _, have := range types {
			if have == typ {
				found = true
			}
		}
		if !found {
			t.Errorf("missing supported type %s", typ)
		}
	}
}
