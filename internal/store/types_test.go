package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFiltersNormalize(t *testing.T) {
	// Given a filter with backslash separators and mixed-case languages
	f := Filters{
		PathPrefix: `src\auth`,
		Languages:  []string{"Go", " PYTHON "},
	}

	// When normalizing
	got := f.Normalize()

	// Then separators are canonical and languages lowercase
	assert.Equal(t, "src/auth", got.PathPrefix)
	assert.Equal(t, []string{"go", "python"}, got.Languages)
}

func TestFiltersEmpty(t *testing.T) {
	assert.True(t, Filters{}.Empty())
	assert.False(t, Filters{PathPrefix: "src/"}.Empty())
	assert.False(t, Filters{Languages: []string{"go"}}.Empty())
}

func TestFiltersMatch(t *testing.T) {
	tests := []struct {
		name     string
		filters  Filters
		path     string
		language string
		want     bool
	}{
		{
			name:     "no filters matches everything",
			filters:  Filters{},
			path:     "src/auth/login.go",
			language: "go",
			want:     true,
		},
		{
			name:     "path prefix match",
			filters:  Filters{PathPrefix: "src/auth"},
			path:     "src/auth/login.go",
			language: "go",
			want:     true,
		},
		{
			name:     "path prefix mismatch",
			filters:  Filters{PathPrefix: "src/auth"},
			path:     "src/billing/invoice.go",
			language: "go",
			want:     false,
		},
		{
			name:     "backslash path still matches",
			filters:  Filters{PathPrefix: "src/auth"},
			path:     `src\auth\login.go`,
			language: "go",
			want:     true,
		},
		{
			name:     "language match case-insensitive",
			filters:  Filters{Languages: []string{"go", "python"}},
			path:     "main.go",
			language: "Go",
			want:     true,
		},
		{
			name:     "language mismatch",
			filters:  Filters{Languages: []string{"python"}},
			path:     "main.go",
			language: "go",
			want:     false,
		},
		{
			name:     "both filters must pass",
			filters:  Filters{PathPrefix: "src/", Languages: []string{"go"}},
			path:     "src/main.go",
			language: "rust",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filters.Match(tt.path, tt.language))
		})
	}
}
