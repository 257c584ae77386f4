// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	testutil.AssertPhasesEqual(t, expected, bundle.Visited)
//	testutil.AssertEventuallyTrue(t, func() bool { return condition }, 5*time.Second)
// =============================================================================
package testutil

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/BaSui01/tailorflow/workflow"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertPhasesEqual 断言访问的阶段序列相等
func AssertPhasesEqual(t *testing.T, expected, actual []workflow.PhaseID) {
	t.Helper()

	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("phase path mismatch:\nexpected: %v\nactual:   %v", expected, actual)
	}
}

// AssertEventuallyTrue 断言条件最终为真
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("condition did not become true within %v", timeout)
}

// MessageTexts 提取运行日志文本，便于断言
func MessageTexts(messages []workflow.Message) []string {
	texts := make([]string, len(messages))
	for i, m := range messages {
		texts[i] = m.Text
	}
	return texts
}
