package codegen

import (
	"regexp"
	"strings"
	"testing"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/pkg/tape"
)

func llvmFor(t *testing.T, src string, policy tape.BoundsPolicy) string {
	t.Helper()
	prog, err := compiler.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	g := NewLLVMBackend()
	if err := Lower(prog, g, NewUnit("test", policy)); err != nil {
		t.Fatalf("Lower(%q): %v", src, err)
	}
	return g.IR()
}

var labelRe = regexp.MustCompile(`(?m)^([A-Za-z_.0-9]+):$`)

func TestLLVMEmptyProgram(t *testing.T) {
	ir := llvmFor(t, "", tape.Checked)
	for _, want := range []string{
		"@tape = internal global [30000 x i8] zeroinitializer",
		"declare i32 @putchar(i32)",
		"declare i32 @getchar()",
		"define i32 @main() {",
		"entry:",
		"ret i32 0",
	} {
		if !strings.Contains(ir, want) {
			t.Errorf("IR missing %q:\n%s", want, ir)
		}
	}
	if strings.Contains(ir, "bounds_trap") || strings.Contains(ir, "@exit") {
		t.Errorf("program without moves should not carry traps:\n%s", ir)
	}
}

func TestLLVMLabelsUnique(t *testing.T) {
	ir := llvmFor(t, "+[>+[-]<-]>>,[.,]", tape.Checked)
	seen := map[string]bool{}
	for _, m := range labelRe.FindAllStringSubmatch(ir, -1) {
		if seen[m[1]] {
			t.Errorf("label %s defined twice", m[1])
		}
		seen[m[1]] = true
	}
	for _, want := range []string{
		"loop_start_1", "loop_body_2", "loop_end_3",
		"loop_start_4", "loop_body_5", "loop_end_6",
		"loop_start_7", "loop_body_8", "loop_end_9",
		"bounds_trap", "input_trap",
	} {
		if !seen[want] {
			t.Errorf("label %s not defined", want)
		}
	}
}

func TestLLVMEveryBranchTargetDefined(t *testing.T) {
	ir := llvmFor(t, "[[>]<[,.]]", tape.Checked)
	defined := map[string]bool{}
	for _, m := range labelRe.FindAllStringSubmatch(ir, -1) {
		defined[m[1]] = true
	}
	targetRe := regexp.MustCompile(`label %([A-Za-z_.0-9]+)`)
	for _, m := range targetRe.FindAllStringSubmatch(ir, -1) {
		if !defined[m[1]] {
			t.Errorf("branch to undefined label %s", m[1])
		}
	}
}

func TestLLVMLoopShape(t *testing.T) {
	ir := llvmFor(t, "[-]", tape.Checked)
	for _, want := range []string{
		"br label %loop_start_1",
		"icmp ne i8",
		"label %loop_body_2, label %loop_end_3",
	} {
		if !strings.Contains(ir, want) {
			t.Errorf("IR missing %q:\n%s", want, ir)
		}
	}
	// the body jumps back to the condition
	body := ir[strings.Index(ir, "loop_body_2:"):strings.Index(ir, "loop_end_3:")]
	if !strings.Contains(body, "br label %loop_start_1") {
		t.Errorf("body does not branch back:\n%s", body)
	}
}

func TestLLVMMovePolicies(t *testing.T) {
	tests := []struct {
		policy tape.BoundsPolicy
		want   string
		trap   bool
	}{
		{tape.Checked, "icmp ult i64", true},
		{tape.Wrap, "srem i64", false},
		{tape.Clamp, "icmp sgt i64", false},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			ir := llvmFor(t, "<>", tt.policy)
			if !strings.Contains(ir, tt.want) {
				t.Errorf("IR missing %q:\n%s", tt.want, ir)
			}
			if got := strings.Contains(ir, "bounds_trap:"); got != tt.trap {
				t.Errorf("bounds_trap present = %v, want %v", got, tt.trap)
			}
		})
	}
}

func TestLLVMCellArithmeticWraps(t *testing.T) {
	ir := llvmFor(t, "+-", tape.Checked)
	if !strings.Contains(ir, "add i8") || !strings.Contains(ir, "sub i8") {
		t.Errorf("expected i8 add and sub:\n%s", ir)
	}
}

func TestLLVMCustomExterns(t *testing.T) {
	prog, _ := compiler.Parse([]byte(".,"))
	u := NewUnit("test", tape.Checked)
	u.Externs = map[string]string{ExternOutput: "bf_put", ExternInput: "bf_get", ExternEntry: "bf_main"}
	g := NewLLVMBackend()
	if err := Lower(prog, g, u); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	ir := g.IR()
	for _, want := range []string{"declare i32 @bf_put(i32)", "call i32 @bf_get()", "define i32 @bf_main()"} {
		if !strings.Contains(ir, want) {
			t.Errorf("IR missing %q", want)
		}
	}
}

func TestWriteCStringEscapes(t *testing.T) {
	var sb strings.Builder
	writeCString(&sb, "@m", "a\"b\n")
	want := `@m = private unnamed_addr constant [5 x i8] c"a\22b\0A\00"` + "\n"
	if sb.String() != want {
		t.Errorf("writeCString = %q, want %q", sb.String(), want)
	}
}
