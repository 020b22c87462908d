package logring

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendEvictsOldestOnceFull(t *testing.T) {
	reg := NewRegistry(3)

	for i := 0; i < 5; i++ {
		reg.Append("t1", Line{Message: string(rune('a' + i))})
	}

	lines := reg.Get("t1")
	require.Len(t, lines, 3)
	require.Equal(t, "c", lines[0].Message)
	require.Equal(t, "e", lines[2].Message)
}

func TestGetUnknownIDReturnsNil(t *testing.T) {
	reg := NewRegistry(10)
	require.Nil(t, reg.Get("nope"))
}

func TestClearEmptiesRing(t *testing.T) {
	reg := NewRegistry(10)
	reg.Append("t1", Line{Message: "x"})
	reg.Clear("t1")
	require.Empty(t, reg.Get("t1"))
}

func TestEmptyIDMapsToGeneral(t *testing.T) {
	reg := NewRegistry(10)
	reg.Append("", Line{Message: "x"})
	require.Len(t, reg.Get(GeneralID), 1)
}

func TestHandlerRoutesByTaskIDAttribute(t *testing.T) {
	reg := NewRegistry(10)
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	h := NewHandler(base, reg)

	logger := slog.New(h)
	logger.Info("general line")

	taskLogger := TaskLogger(logger, "task-123")
	taskLogger.Warn("task line", slog.String("extra", "value"))

	require.Len(t, reg.Get(GeneralID), 1)
	require.Equal(t, "general line", reg.Get(GeneralID)[0].Message)

	taskLines := reg.Get("task-123")
	require.Len(t, taskLines, 1)
	require.Equal(t, "task line", taskLines[0].Message)
	require.Equal(t, "value", taskLines[0].Attrs["extra"])

	require.Contains(t, buf.String(), "general line")
	require.Contains(t, buf.String(), "task line")
}

func TestIDsListsWrittenRings(t *testing.T) {
	reg := NewRegistry(10)
	reg.Append("a", Line{Message: "x"})
	reg.Append("b", Line{Message: "y"})

	ids := reg.IDs()
	require.Len(t, ids, 2)
	require.Contains(t, ids, "a")
	require.Contains(t, ids, "b")
}
