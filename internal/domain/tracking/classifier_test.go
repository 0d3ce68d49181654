package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouredu/request-tracker/pkg/config"
)

func newTestClassifier(t *testing.T, cfg config.ModuleMappingConfig, registry *Registry) *ClassifierConfig {
	t.Helper()
	cc, err := NewClassifierConfig(cfg, registry)
	require.NoError(t, err)
	return cc
}

func TestParseMapping(t *testing.T) {
	tests := []struct {
		name     string
		mapping  string
		expected Classification
	}{
		{
			name:     "module only",
			mapping:  "students",
			expected: Classification{Module: "students"},
		},
		{
			name:     "module and submodule",
			mapping:  "students.grades",
			expected: Classification{Module: "students", Submodule: "grades"},
		},
		{
			name:     "module, submodule and label",
			mapping:  "students.grades|Grade Review",
			expected: Classification{Module: "students", Submodule: "grades", Label: "Grade Review"},
		},
		{
			name:     "module and label without submodule",
			mapping:  "billing|Billing Overview",
			expected: Classification{Module: "billing", Label: "Billing Overview"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseMapping(tt.mapping))
		})
	}
}

func TestClassifyAnnotationWins(t *testing.T) {
	// Annotation must short-circuit even when a pattern rule would match.
	cc := newTestClassifier(t, config.ModuleMappingConfig{
		Patterns: []config.PatternRule{
			{Pattern: "students/*", Target: "other.module"},
		},
		AutoExtractSegment: 2,
	}, nil)

	got := Classify(ClassifyInput{
		Path:       "/api/v1/students/42/grades",
		Annotation: "students.grades|Grade Review",
	}, cc)

	assert.Equal(t, Classification{Module: "students", Submodule: "grades", Label: "Grade Review"}, got)
}

func TestClassifyRegistryAnnotation(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterHandler("GradesController@index", "students.grades|Grade List")

	cc := newTestClassifier(t, config.ModuleMappingConfig{AutoExtractSegment: 2}, registry)

	got := Classify(ClassifyInput{
		Path:             "/api/v1/grades",
		ControllerAction: "GradesController@index",
	}, cc)

	assert.Equal(t, "students", got.Module)
	assert.Equal(t, "grades", got.Submodule)
	assert.Equal(t, "Grade List", got.Label)
}

func TestClassifyPatternMap(t *testing.T) {
	cc := newTestClassifier(t, config.ModuleMappingConfig{
		Patterns: []config.PatternRule{
			{Pattern: "parent/look-up", Target: "parents.lookup|Parent Lookup"},
			{Pattern: "reports/*", Target: "reporting"},
			{Pattern: "regex:^admin/users/\\d+$", Target: "admin.users"},
		},
		AutoExtractSegment: 2,
	}, nil)

	tests := []struct {
		name     string
		path     string
		expected Classification
	}{
		{
			name:     "literal suffix match",
			path:     "/api/v1/parent/look-up",
			expected: Classification{Module: "parents", Submodule: "lookup", Label: "Parent Lookup"},
		},
		{
			name:     "glob match",
			path:     "/reports/daily/export",
			expected: Classification{Module: "reporting"},
		},
		{
			name:     "regex match",
			path:     "/admin/users/123",
			expected: Classification{Module: "admin", Submodule: "users"},
		},
		{
			name:     "case insensitive",
			path:     "/API/V1/Parent/Look-Up",
			expected: Classification{Module: "parents", Submodule: "lookup", Label: "Parent Lookup"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(ClassifyInput{Path: tt.path}, cc))
		})
	}
}

func TestClassifyOrderedPatternsFirstMatchWins(t *testing.T) {
	cc := newTestClassifier(t, config.ModuleMappingConfig{
		Patterns: []config.PatternRule{
			{Pattern: "reports/special", Target: "special"},
			{Pattern: "reports/*", Target: "reporting"},
		},
	}, nil)

	assert.Equal(t, "special", Classify(ClassifyInput{Path: "/reports/special"}, cc).Module)
	assert.Equal(t, "reporting", Classify(ClassifyInput{Path: "/reports/anything"}, cc).Module)
}

func TestClassifyFromRouteName(t *testing.T) {
	cc := newTestClassifier(t, config.ModuleMappingConfig{AutoExtractSegment: 2}, nil)

	tests := []struct {
		name     string
		route    string
		expected Classification
	}{
		{
			name:     "module.submodule.action",
			route:    "students.grades.list",
			expected: Classification{Module: "students", Submodule: "grades", Label: "List Grades"},
		},
		{
			name:     "module.action only",
			route:    "students.show",
			expected: Classification{Module: "students", Submodule: "show"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(ClassifyInput{RouteName: tt.route}, cc)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestClassifyFromPath(t *testing.T) {
	cc := newTestClassifier(t, config.ModuleMappingConfig{AutoExtractSegment: 2}, nil)

	tests := []struct {
		name      string
		path      string
		module    string
		submodule string
	}{
		{
			name:      "numeric id between module and submodule is skipped",
			path:      "api/v1/users/42/profile",
			module:    "users",
			submodule: "profile",
		},
		{
			name:      "plain module and submodule",
			path:      "api/v1/students/grades",
			module:    "students",
			submodule: "grades",
		},
		{
			name:   "module only",
			path:   "api/v1/dashboard",
			module: "dashboard",
		},
		{
			name:      "trailing numeric id is dropped",
			path:      "api/v1/students/57",
			module:    "students",
			submodule: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(ClassifyInput{Path: tt.path}, cc)
			assert.Equal(t, tt.module, got.Module)
			assert.Equal(t, tt.submodule, got.Submodule)
		})
	}
}

func TestClassifyFromController(t *testing.T) {
	// Segment index beyond the path length forces the controller fallback.
	cc := newTestClassifier(t, config.ModuleMappingConfig{AutoExtractSegment: 9}, nil)

	got := Classify(ClassifyInput{
		Path:             "x",
		ControllerAction: "App\\Http\\InvoicesController@download",
	}, cc)

	assert.Equal(t, "invoices", got.Module)
	assert.Equal(t, "Download Invoices", got.Label)
}

func TestClassifyUnknownFallback(t *testing.T) {
	cc := newTestClassifier(t, config.ModuleMappingConfig{AutoExtractSegment: 9}, nil)

	got := Classify(ClassifyInput{Path: "/api/v1/users/42/profile"}, cc)
	assert.Equal(t, ModuleUnknown, got.Module)
	assert.Equal(t, "Users Profile", got.Label)

	got = Classify(ClassifyInput{Path: "/api/v1/42"}, cc)
	assert.Equal(t, ModuleUnknown, got.Module)
	assert.Equal(t, "Resource Access", got.Label)
}

func TestClassifyDeterministic(t *testing.T) {
	cc := newTestClassifier(t, config.ModuleMappingConfig{
		Patterns: []config.PatternRule{
			{Pattern: "reports/*", Target: "reporting"},
		},
		AutoExtractSegment: 2,
	}, nil)

	in := ClassifyInput{
		Path:             "/api/v1/students/42/grades",
		RouteName:        "students.grades.list",
		ControllerAction: "GradesController@list",
	}

	first := Classify(in, cc)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Classify(in, cc))
	}
}

func TestCompilePatternsRejectsBadRegex(t *testing.T) {
	_, err := CompilePatterns([]string{"regex:["})
	require.Error(t, err)
}

func TestPatternSetMatches(t *testing.T) {
	set, err := CompilePatterns([]string{"regex:^health", "metrics", "parent/look-up"})
	require.NoError(t, err)

	assert.True(t, set.Matches("/health"))
	assert.True(t, set.Matches("health/ping"))
	assert.True(t, set.Matches("/metrics"))
	assert.True(t, set.Matches("/api/v1/parent/look-up"))
	assert.False(t, set.Matches("/api/v1/students"))
	assert.False(t, set.Matches("/ping/health-ish/deep"))
}
