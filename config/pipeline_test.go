package config

import (
	"os"
	"path/filepath"
	"testing"

	"augpipe/core"
	"augpipe/transform"
)

func TestSaveLoadPipelineRoundTrip(t *testing.T) {
	pipe, err := core.NewCompose([]core.Transform{
		transform.HorizontalFlip(0.5),
		core.NewOneOf([]core.Transform{
			transform.ChannelShuffle(1),
			transform.RandomBrightness(0.2, 1),
		}, 0.9),
	})
	if err != nil {
		t.Fatalf("NewCompose: %v", err)
	}

	path := filepath.Join(t.TempDir(), "pipeline.yml")
	if err := SavePipeline(path, pipe); err != nil {
		t.Fatalf("SavePipeline: %v", err)
	}

	restored, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}

	want, err := core.ToYAML(pipe)
	if err != nil {
		t.Fatalf("ToYAML: %v", err)
	}
	got, err := core.ToYAML(restored)
	if err != nil {
		t.Fatalf("ToYAML restored: %v", err)
	}
	if string(want) != string(got) {
		t.Fatalf("round trip changed the pipeline:\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestLoadPipelineInvalidSchema(t *testing.T) {
	dir := t.TempDir()
	raw := []byte(`schema_version: v999
pipeline:
  class_name: Compose
`)
	path := filepath.Join(dir, "pipeline.yml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	if _, err := LoadPipeline(path); err == nil {
		t.Fatal("expected error for invalid schema_version")
	}
}

func TestLoadPipelineDefaultsSchema(t *testing.T) {
	dir := t.TempDir()
	raw := []byte(`pipeline:
  class_name: Compose
  args:
    p: 1
`)
	path := filepath.Join(dir, "pipeline.yml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	if _, err := LoadPipeline(path); err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}
}

func TestLoadPipelineMissingSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yml")
	if err := os.WriteFile(path, []byte("schema_version: v1\n"), 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	if _, err := LoadPipeline(path); err == nil {
		t.Fatal("expected error for missing pipeline section")
	}
}

func TestLoadRuntimeMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yml")
	if err := os.WriteFile(path, []byte("log_level: debug\nmetrics_port: 9100\n"), 0o644); err != nil {
		t.Fatalf("write runtime: %v", err)
	}
	t.Setenv("AUGPIPE__LOG_JSON", "true")

	cfg, err := LoadRuntime(path)
	if err != nil {
		t.Fatalf("LoadRuntime: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.MetricsPort != 9100 || !cfg.LogJSON {
		t.Fatalf("unexpected runtime config: %+v", cfg)
	}
}

func TestLoadRuntimeMissingFileIsFine(t *testing.T) {
	cfg, err := LoadRuntime(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("LoadRuntime: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("want default log level info, got %q", cfg.LogLevel)
	}
}
