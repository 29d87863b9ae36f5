package cmd

import (
	"testing"

	"go.dot.industries/sx/internal/loader"
)

func TestSourceRows(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		useLocal bool
		mode     loader.EnvironmentMode
		want     []string
	}{
		{
			name: "no environment",
			mode: loader.EnvironmentFallback,
			want: []string{stateActive, stateSkipped, stateSkipped},
		},
		{
			name: "environment in fallback mode",
			env:  "production",
			mode: loader.EnvironmentFallback,
			want: []string{stateFallback, stateActive, stateSkipped},
		},
		{
			name: "environment in cascade mode",
			env:  "production",
			mode: loader.EnvironmentCascade,
			want: []string{stateActive, stateActive, stateSkipped},
		},
		{
			name:     "local enabled",
			env:      "production",
			useLocal: true,
			mode:     loader.EnvironmentFallback,
			want:     []string{stateFallback, stateActive, stateActive},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls := loader.Settings{AppRoot: "/srv/app", Environment: tt.env}

			rows := sourceRows(ls, tt.useLocal, tt.mode)
			if len(rows) != len(tt.want) {
				t.Fatalf("sourceRows() returned %d rows, want %d", len(rows), len(tt.want))
			}

			for i, row := range rows {
				if row.state != tt.want[i] {
					t.Errorf("%s state = %q, want %q", row.role, row.state, tt.want[i])
				}
				if row.path != ls.SourcePath(row.role) {
					t.Errorf("%s path = %q, want %q", row.role, row.path, ls.SourcePath(row.role))
				}
			}
		})
	}
}

func TestSourcesCommand_LocalFlags(t *testing.T) {
	for _, name := range []string{"local", "no-local", "env-mode"} {
		if sourcesCmd.Flags().Lookup(name) == nil {
			t.Errorf("sources command has no --%s flag", name)
		}
	}
}
