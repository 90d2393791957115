package smt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeZ3 writes an executable named z3 into a temp dir that records its
// stdin and prints the given output, and returns its path.
func fakeZ3(t *testing.T, output string) (binary, scriptFile string) {
	t.Helper()
	dir := t.TempDir()
	binary = filepath.Join(dir, "z3")
	scriptFile = filepath.Join(dir, "input.smt2")
	shell := "#!/bin/sh\ncat > " + scriptFile + "\nprintf '%s\\n' '" + output + "'\n"
	require.NoError(t, os.WriteFile(binary, []byte(shell), 0o755))
	return binary, scriptFile
}

func TestSession_CheckVerdicts(t *testing.T) {
	tests := []struct {
		output string
		want   Result
	}{
		{"sat", Sat},
		{"unsat", Unsat},
		{"unknown", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			binary, _ := fakeZ3(t, tt.output)
			sess := NewSession(Options{Binary: binary})
			sess.Declare("x", SortReal)
			sess.Assert("(> x 0.0)")

			res, err := sess.Check(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestSession_ScriptContainsScopedAssertions(t *testing.T) {
	binary, scriptFile := fakeZ3(t, "sat")
	sess := NewSession(Options{Binary: binary})
	sess.Declare("x", SortReal)
	sess.Declare("b", SortBool)
	sess.Assert("(> x 1.0)")

	sess.Push()
	sess.Assert("b")
	_, err := sess.Check(context.Background())
	require.NoError(t, err)

	script, err := os.ReadFile(scriptFile)
	require.NoError(t, err)
	assert.Contains(t, string(script), "(declare-const x Real)")
	assert.Contains(t, string(script), "(declare-const b Bool)")
	assert.Contains(t, string(script), "(assert (> x 1.0))")
	assert.Contains(t, string(script), "(assert b)")
	assert.Contains(t, string(script), "(check-sat)")

	// After popping, the inner assertion must not reach the solver.
	sess.Pop()
	_, err = sess.Check(context.Background())
	require.NoError(t, err)
	script, err = os.ReadFile(scriptFile)
	require.NoError(t, err)
	assert.NotContains(t, string(script), "(assert b)")
	assert.Contains(t, string(script), "(assert (> x 1.0))")
}

func TestSession_PopBaseScopePanics(t *testing.T) {
	sess := NewSession(Options{Binary: "z3"})
	assert.Panics(t, func() { sess.Pop() })
}

func TestSession_DeclareIsIdempotent(t *testing.T) {
	binary, scriptFile := fakeZ3(t, "sat")
	sess := NewSession(Options{Binary: binary})
	sess.Declare("x", SortReal)
	sess.Declare("x", SortReal)

	_, err := sess.Check(context.Background())
	require.NoError(t, err)
	script, err := os.ReadFile(scriptFile)
	require.NoError(t, err)
	assert.Equal(t, 1, countOccurrences(string(script), "(declare-const x Real)"))
}

func countOccurrences(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}

func TestSession_SolveParsesModel(t *testing.T) {
	output := `sat
(
  (define-fun Vitals_SystolicBP () Real (/ 241.0 2.0))
  (define-fun Demo_Consent () Bool true)
  (define-fun Visit_Day () Int (- 3))
  (define-fun Labs_Status () String "FI""NAL")
)`
	binary, _ := fakeZ3(t, output)
	sess := NewSession(Options{Binary: binary})
	sess.Declare("Vitals_SystolicBP", SortReal)
	sess.Declare("Demo_Consent", SortBool)
	sess.Declare("Visit_Day", SortInt)
	sess.Declare("Labs_Status", SortString)

	res, model, err := sess.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, Sat, res)

	assert.InDelta(t, 120.5, model["Vitals_SystolicBP"].Real, 1e-9)
	assert.True(t, model["Demo_Consent"].Bool)
	assert.Equal(t, -3.0, model["Visit_Day"].Real)
	assert.Equal(t, `FI"NAL`, model["Labs_Status"].Str)
}

func TestSession_SolveUnsatHasNoModel(t *testing.T) {
	binary, _ := fakeZ3(t, "unsat")
	sess := NewSession(Options{Binary: binary})
	sess.Assert("false")

	res, model, err := sess.Solve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unsat, res)
	assert.Nil(t, model)
}

func TestSession_MissingBinaryReturnsUnknown(t *testing.T) {
	sess := NewSession(Options{Binary: filepath.Join(t.TempDir(), "z3")})
	res, err := sess.Check(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Unknown, res)
}

func TestResolveBinary_RejectsSuspiciousNames(t *testing.T) {
	_, err := resolveBinary("rm -rf /")
	assert.Error(t, err)

	_, err = resolveBinary("/usr/bin/python3")
	assert.Error(t, err)
}

func TestSession_Timeout(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "z3")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\nsleep 5\n"), 0o755))

	sess := NewSession(Options{Binary: binary, Timeout: 50 * time.Millisecond})
	res, err := sess.Check(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Unknown, res)
}

func TestSymbolFor(t *testing.T) {
	assert.Equal(t, "Vitals_SystolicBP", SymbolFor("Vitals.SystolicBP"))
	assert.Equal(t, "v_1Form_Field", SymbolFor("1Form.Field"))
	assert.Equal(t, "A_B_C", SymbolFor("A.B C"))
}

func TestTermBuilders(t *testing.T) {
	assert.Equal(t, "5", Num(5))
	assert.Equal(t, "(- 2.5)", Num(-2.5))
	assert.Equal(t, `"say ""hi"""`, Str(`say "hi"`))
	assert.Equal(t, "true", BoolLit(true))
	assert.Equal(t, "(<= x 5)", App("<=", "x", "5"))
	assert.Equal(t, "(not p)", Not("p"))
	assert.Equal(t, "true", AndTerms())
	assert.Equal(t, "p", AndTerms("p"))
	assert.Equal(t, "(and p q)", AndTerms("p", "q"))
	assert.Equal(t, "false", OrTerms())
	assert.Equal(t, "(or p q)", OrTerms("p", "q"))
	assert.Equal(t, "(=> p q)", Implies("p", "q"))
	assert.Equal(t, "(ite c a b)", Ite("c", "a", "b"))
	assert.Equal(t, "(= a b)", Eq("a", "b"))
}
