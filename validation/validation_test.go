package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/viewkit/errors"
)

func TestValidator(t *testing.T) {
	tests := []struct {
		name  string
		build func(v *Validator)
		want  string
	}{
		{"required ok", func(v *Validator) { v.Required("name", "x") }, ""},
		{"required blank", func(v *Validator) { v.Required("name", "  ") }, "name: is required"},
		{"min", func(v *Validator) { v.Min("workers", 0, 1) }, "workers: must be at least 1"},
		{"oneof", func(v *Validator) { v.OneOf("driver", "mongo", []string{"memory", "bolt"}) }, "driver: must be one of: memory, bolt"},
		{"duration ok", func(v *Validator) { v.Duration("timeout", "5s") }, ""},
		{"duration empty", func(v *Validator) { v.Duration("timeout", "") }, ""},
		{"duration bad", func(v *Validator) { v.Duration("timeout", "five") }, `timeout: invalid duration "five"`},
		{"chained", func(v *Validator) {
			v.Required("a", "").Min("b", 0, 1)
		}, "a: is required; b: must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			tt.build(v)
			err := v.Err()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Fatalf("err = %v, want INVALID_CONFIG", err)
			}
			if !strings.HasSuffix(err.Error(), tt.want) {
				t.Errorf("err = %q, want suffix %q", err.Error(), tt.want)
			}
		})
	}
}

type innerConfig struct {
	Workers int    `mapstructure:"workers" validate:"gte=1,lte=8"`
	Mode    string `mapstructure:"mode" validate:"omitempty,oneof=fast safe"`
}

type outerConfig struct {
	Name   string      `mapstructure:"name" validate:"required"`
	Engine innerConfig `mapstructure:"engine"`
}

func TestStruct(t *testing.T) {
	if err := Struct(outerConfig{Name: "x", Engine: innerConfig{Workers: 2}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Struct(outerConfig{Engine: innerConfig{Workers: 9, Mode: "slow"}})
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("err = %v, want INVALID_CONFIG", err)
	}
	for _, want := range []string{
		"name: is required",
		"engine.workers: must be at most 8",
		"engine.mode: must be one of: fast safe",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("err = %q, missing %q", err.Error(), want)
		}
	}
}

func TestMerge(t *testing.T) {
	inner := New().Required("dsn", "")
	v := New().Merge("store", inner.Err()).Merge("logger", errors.InvalidConfig("bad level")).Merge("none", nil)
	fields := v.Errors()
	if len(fields) != 2 {
		t.Fatalf("fields = %+v", fields)
	}
	if fields[0].Field != "store.dsn" || fields[1].Field != "logger" {
		t.Errorf("fields = %+v", fields)
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("MaxDepth"); got != "max_depth" {
		t.Errorf("toSnakeCase = %q", got)
	}
}
