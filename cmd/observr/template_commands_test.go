package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCommand_TemplatesDirectory(t *testing.T) {
	cmd := command{global: &GlobalFlags{}}

	expectedDir := "templates"
	actualDir := cmd.templatesDirectory()

	if actualDir != expectedDir {
		t.Errorf("expected templates directory '%s', got '%s'", expectedDir, actualDir)
	}
}

func TestCommand_TemplateCreate(t *testing.T) {
	// Create temporary directory for test
	tempDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}

	cmd := command{global: &GlobalFlags{}}

	tests := []struct {
		name         string
		flags        TemplateCreateFlags
		expectError  bool
		validateFile func(t *testing.T, filePath string)
	}{
		{
			name: "create_watch_template",
			flags: TemplateCreateFlags{
				Type: "watch",
				Name: "media",
			},
			validateFile: func(t *testing.T, filePath string) {
				if _, err := os.Stat(filePath); os.IsNotExist(err) {
					t.Errorf("expected file %s to exist", filePath)
					return
				}
				content, err := os.ReadFile(filePath)
				if err != nil {
					t.Errorf("failed to read file: %v", err)
					return
				}
				contentStr := string(content)
				if !strings.Contains(contentStr, "media") {
					t.Error("template should contain config name")
				}
				if !strings.Contains(contentStr, "[[observers]]") {
					t.Error("watch template should declare an observer")
				}
			},
		},
		{
			name: "create_daemon_template",
			flags: TemplateCreateFlags{
				Type: "daemon",
				Name: "uploads",
			},
			validateFile: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				if err != nil {
					t.Errorf("failed to read file: %v", err)
					return
				}
				contentStr := string(content)
				if !strings.Contains(contentStr, "[server]") {
					t.Error("daemon template should configure the server")
				}
				if !strings.Contains(contentStr, "[resources]") {
					t.Error("daemon template should configure resource sampling")
				}
			},
		},
		{
			name: "create_template_with_custom_output",
			flags: TemplateCreateFlags{
				Type:   "history",
				Name:   "audit",
				Output: filepath.Join(tempDir, "custom-audit.toml"),
			},
			validateFile: func(t *testing.T, filePath string) {
				if !strings.HasSuffix(filePath, "custom-audit.toml") {
					t.Errorf("expected custom output path, got %s", filePath)
				}
				content, err := os.ReadFile(filePath)
				if err != nil {
					t.Errorf("failed to read file: %v", err)
					return
				}
				if !strings.Contains(string(content), "sqlite://") {
					t.Error("history template should contain a sink DSN")
				}
			},
		},
		{
			name: "default_name_from_type",
			flags: TemplateCreateFlags{
				Type: "services",
				// Name is empty, should default to "services-sample"
			},
			validateFile: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				if err != nil {
					t.Errorf("failed to read file: %v", err)
					return
				}
				if !strings.Contains(string(content), "services-sample") {
					t.Error("template should contain default name 'services-sample'")
				}
			},
		},
		{
			name: "invalid_template_type",
			flags: TemplateCreateFlags{
				Type: "invalid-type",
				Name: "test",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cmd.TemplateCreate(tt.flags)

			if tt.expectError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			// Determine expected file path
			var expectedPath string
			if tt.flags.Output != "" {
				expectedPath = tt.flags.Output
			} else {
				templateName := tt.flags.Name
				if templateName == "" {
					templateName = tt.flags.Type + "-sample"
				}
				expectedPath = filepath.Join("templates", templateName+".toml")
			}

			if tt.validateFile != nil {
				tt.validateFile(t, expectedPath)
			}
		})
	}
}

func TestCommand_TemplateCreate_FileExists(t *testing.T) {
	// Create temporary directory for test
	tempDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}

	cmd := command{global: &GlobalFlags{}}

	// Create templates directory and existing file
	templatesDir := filepath.Join(tempDir, "templates")
	if err := os.MkdirAll(templatesDir, 0o755); err != nil {
		t.Fatalf("failed to create templates directory: %v", err)
	}

	existingFile := filepath.Join(templatesDir, "existing-app.toml")
	if err := os.WriteFile(existingFile, []byte("log_dir = \"logs\"\n"), 0o644); err != nil {
		t.Fatalf("failed to create existing file: %v", err)
	}

	// Test without force flag - should fail
	flags := TemplateCreateFlags{
		Type: "watch",
		Name: "existing-app",
	}

	err := cmd.TemplateCreate(flags)
	if err == nil {
		t.Error("expected error when file exists without force flag")
	}
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected 'already exists' error, got: %v", err)
	}

	// Test with force flag - should succeed
	flags.Force = true
	err = cmd.TemplateCreate(flags)
	if err != nil {
		t.Errorf("unexpected error with force flag: %v", err)
	}
}
