package task

import (
	"strings"
	"testing"
	"time"

	"github.com/cutekitek/rankode-grader/internal/classify"
	"github.com/cutekitek/rankode-grader/internal/grading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDir_ShippedTasks(t *testing.T) {
	tasks, err := LoadDir("../../tasks")
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	formula := tasks["task-0"]
	require.NotNil(t, formula)
	assert.Equal(t, "main", formula.Unit)
	assert.Equal(t, []string{"Abgabe.txt", "main.c"}, formula.Headers)
	assert.False(t, formula.Gated())
	require.Len(t, formula.Calls, 2)
	assert.Equal(t, "printformula(4, 4, 6, 8)", formula.Calls[0].String())

	review := tasks["task-1"]
	require.NotNil(t, review.Classify)
	assert.Equal(t, classify.Rule{Pattern: "char c = ''';", Active: true}, review.Classify.Rules[7])
	assert.Equal(t, classify.Rule{Pattern: `const char z = '\';`, Active: true}, review.Classify.Rules[11])
	assert.Equal(t, classify.Rule{Pattern: `printf('Hallo Welt\n');`, Active: false}, review.Classify.Rules[18])

	res, err := classify.NewClassifier("", "", nil).Classify(
		strings.NewReader("int run() {\n    printf('Hallo Welt\\n');\n    return 0;\n}\n"),
		review.Classify.Rules)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NotExcluded, "the printf rule matches the source line")

	io := tasks["task-2"]
	require.NotNil(t, io.Behavior)
	assert.Equal(t, 10*time.Second, io.Behavior.Timeout)
	assert.Equal(t, []string{"assets/task-2/args.txt"}, io.Assets)
	assert.Equal(t, "../../tasks", io.Dir)
}

func TestParse_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"no name":            "unit: main\n",
		"calls without unit": "name: x\ncalls:\n  - {symbol: f, expect: 1}\n",
		"call without check": "name: x\nunit: main\ncalls:\n  - {symbol: f}\n",
		"empty template":     "name: x\nclassify:\n  file: main.c\n",
		"escaping asset":     "name: x\nassets: [../secret]\n",
		"not yaml":           "name: [x\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_DefaultGate(t *testing.T) {
	task, err := Parse([]byte("name: x\nheaders: [main.c]\n"))
	require.NoError(t, err)
	assert.True(t, task.Gated())
}

func TestCallCheck(t *testing.T) {
	expect, min, max := 22.0, 0.8395, 0.8405
	exact := Call{Symbol: "printformula", Args: []float64{4, 4, 6, 8}, Expect: &expect}
	assert.NoError(t, exact.Check(22))

	err := exact.Check(21)
	require.Error(t, err)
	assert.Equal(t, grading.KindValidationMismatch, grading.KindOf(err))
	assert.Contains(t, err.Error(), "printformula(4, 4, 6, 8) returned 21, expected == 22")

	bounded := Call{Symbol: "printformula", Min: &min, Max: &max}
	assert.NoError(t, bounded.Check(0.84))
	assert.Error(t, bounded.Check(0.8405))
	assert.Error(t, bounded.Check(0.8395))
}
