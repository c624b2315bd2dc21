package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/yield-engine/logging"
)

func TestLogger_LevelsAndWriters(t *testing.T) {
	var out, errOut bytes.Buffer
	l := logging.NewWithWriters(&out, &errOut)

	l.Info("loaded %d days", 3)
	l.Warn("skipped %s", "2025-06-03")
	l.Error("failed: %v", "disk full")

	assert.Contains(t, out.String(), "[INFO]")
	assert.Contains(t, out.String(), "loaded 3 days")
	assert.Contains(t, out.String(), "[WARN]")
	assert.NotContains(t, out.String(), "disk full")
	assert.Contains(t, errOut.String(), "[ERROR]")
	assert.Contains(t, errOut.String(), "failed: disk full")
}

func TestLogger_ForkHasOwnSinks(t *testing.T) {
	var out bytes.Buffer
	parent := logging.NewWithWriters(&out, &out)
	child := parent.Fork()

	var parentLines, childLines []string
	parent.AddSink(func(_ logging.Level, line string) { parentLines = append(parentLines, line) })
	child.AddSink(func(_ logging.Level, line string) { childLines = append(childLines, line) })

	parent.Info("from parent")
	child.Warn("from child")

	assert.Equal(t, []string{"from parent"}, parentLines)
	assert.Equal(t, []string{"from child"}, childLines)
	assert.Contains(t, out.String(), "from parent")
	assert.Contains(t, out.String(), "from child")
}

func TestLogger_Sinks(t *testing.T) {
	l := logging.Discard()

	var got []string
	remove := l.AddSink(func(level logging.Level, line string) {
		got = append(got, string(level)+" "+line)
	})

	l.Info("one")
	l.Warn("two %d", 2)
	remove()
	l.Info("three")

	assert.Equal(t, []string{"INFO one", "WARN two 2"}, got)
	assert.False(t, strings.Contains(strings.Join(got, ","), "three"))
}
