package testutil

import (
	"testing"

	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/definition"
)

func TestCleanDefinition(t *testing.T) {
	def, err := CleanDefinition()
	if err != nil {
		t.Fatalf("CleanDefinition() error: %v", err)
	}

	if def.Name != "line-a" {
		t.Errorf("Name = %q, want %q", def.Name, "line-a")
	}
	if def.Mode != definition.ModeClean {
		t.Errorf("Mode = %q, want clean", def.Mode)
	}
	if len(def.Gateway.ModulesEnabled) != 2 {
		t.Errorf("ModulesEnabled = %v, want 2 entries", def.Gateway.ModulesEnabled)
	}

	d := def.WithDefaults(config.Default().Defaults)
	if err := d.Validate(); err != nil {
		t.Errorf("clean definition should pass validation: %v", err)
	}
}

func TestRestoreDefinition(t *testing.T) {
	def, err := RestoreDefinition()
	if err != nil {
		t.Fatalf("RestoreDefinition() error: %v", err)
	}

	if def.Mode != definition.ModeRestore {
		t.Errorf("Mode = %q, want restore", def.Mode)
	}
	if def.Backup != "backups/plant.gwbk" {
		t.Errorf("Backup = %q", def.Backup)
	}
	if def.DataMount.Type != definition.MountBind {
		t.Errorf("DataMount.Type = %q, want bind", def.DataMount.Type)
	}

	d := def.WithDefaults(config.Default().Defaults)
	if err := d.Validate(); err != nil {
		t.Errorf("restore definition should pass validation: %v", err)
	}
}

func TestInvalidDefinition(t *testing.T) {
	def, err := InvalidDefinition()
	if err != nil {
		t.Fatalf("InvalidDefinition() error: %v", err)
	}

	if err := def.Validate(); err == nil {
		t.Error("invalid definition should fail validation")
	}
}

func TestLoadFixture_Missing(t *testing.T) {
	if _, err := LoadFixture("nope.yaml"); err == nil {
		t.Error("LoadFixture() should fail for a missing fixture")
	}
}
