package diag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyCollectorDiscardsEverything(t *testing.T) {
	var c EmptyCollector
	assert.NoError(t, c.Error(New(Error, "boom")))
	assert.NoError(t, c.Warn(New(Warning, "meh")))
	assert.NoError(t, c.Info(New(Info, "fyi")))
}

func TestCounterCollectorTallies(t *testing.T) {
	c := &CounterCollector{}
	require.NoError(t, c.Error(New(Error, "a")))
	require.NoError(t, c.Error(New(Error, "b")))
	require.NoError(t, c.Warn(New(Warning, "c")))
	require.NoError(t, c.Info(New(Info, "d")))

	assert.Equal(t, 2, c.ErrorCount())
	assert.Equal(t, 1, c.WarnCount())
	assert.Equal(t, 1, c.InfoCount())
}

func TestLimitCollectorStopsOnceExceeded(t *testing.T) {
	l := NewLimitCollector(2, 0, 0)

	assert.NoError(t, l.Error(New(Error, "1")))
	assert.NoError(t, l.Error(New(Error, "2")))

	err := l.Error(New(Error, "3"))
	require.Error(t, err)
	var tooMany *TooManyMessagesError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, Error, tooMany.Severity)
	assert.Equal(t, 2, tooMany.Limit)
}

func TestLimitCollectorUnboundedWhenZero(t *testing.T) {
	l := NewLimitCollector(0, 0, 0)
	for i := 0; i < 50; i++ {
		assert.NoError(t, l.Error(New(Error, "x")))
	}
	assert.Equal(t, 50, l.ErrorCount())
}

func TestChainCollectorStopsAtFirstError(t *testing.T) {
	counter := &CounterCollector{}
	limit := NewLimitCollector(1, 0, 0)
	chain := NewChainBuilder().Add(limit).Add(counter).Build()

	require.NoError(t, chain.Error(New(Error, "1")))
	err := chain.Error(New(Error, "2"))
	require.Error(t, err)

	// counter never sees the second diagnostic because limit's error
	// short-circuited the chain.
	assert.Equal(t, 1, counter.ErrorCount())
}

func TestFilterCollectorRoutesBySeverity(t *testing.T) {
	errCounter := &CounterCollector{}
	warnCounter := &CounterCollector{}
	f := FilterCollector{
		ErrorCollector: errCounter,
		WarnCollector:  warnCounter,
		InfoCollector:  EmptyCollector{},
	}

	require.NoError(t, f.Error(New(Error, "e")))
	require.NoError(t, f.Warn(New(Warning, "w")))
	require.NoError(t, f.Info(New(Info, "i")))

	assert.Equal(t, 1, errCounter.ErrorCount())
	assert.Equal(t, 1, warnCounter.WarnCount())
}

func TestScreenOutputCollectorWritesTaggedLines(t *testing.T) {
	var buf bytes.Buffer
	c := NewScreenOutputCollector(&buf)

	require.NoError(t, c.Error(At(Error, Pos{Pass: "mem2reg", Function: "main"}, "bad phi")))
	require.NoError(t, c.Warn(New(Warning, "unused")))
	require.NoError(t, c.Info(New(Info, "done")))

	out := buf.String()
	assert.Contains(t, out, "ERR!")
	assert.Contains(t, out, "mem2reg: main: bad phi")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "unused")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "done")
}

func TestNewStandardDropsWarningsWhenNotVerbose(t *testing.T) {
	var buf bytes.Buffer
	std := NewStandard(&buf, 0, false)

	require.NoError(t, std.Warn(New(Warning, "quiet please")))
	assert.Empty(t, buf.String())

	require.NoError(t, std.Error(New(Error, "loud")))
	assert.Contains(t, buf.String(), "loud")
}

func TestNewStandardKeepsWarningsWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	std := NewStandard(&buf, 0, true)

	require.NoError(t, std.Warn(New(Warning, "heads up")))
	assert.Contains(t, buf.String(), "heads up")
}

func TestWrapPassAddsContext(t *testing.T) {
	base := New(Error, "division by zero folded")
	wrapped := WrapPass("dce", "compute", base)
	require.Error(t, wrapped)
	assert.Contains(t, wrapped.Error(), "dce: compute")
	assert.Contains(t, wrapped.Error(), "division by zero folded")
}

func TestWrapPassNilIsNil(t *testing.T) {
	assert.NoError(t, WrapPass("dce", "compute", nil))
}
