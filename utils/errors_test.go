package utils

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	for _, tc := range []struct {
		err      error
		sentinel error
		kind     ErrorKind
	}{
		{InvalidFileNameError("mesh/Nodes", os.ErrNotExist), ErrInvalidFileName, InvalidFileName},
		{InvalidSizeError(3, 4), ErrInvalidSize, InvalidSize},
		{InvalidCellError(7, 99, 1), ErrInvalidCell, InvalidCell},
		{NegativeJacobianError(2, -0.5), ErrNegativeJacobian, NegativeJacobian},
		{InvalidFaceError("Triangle", 5), ErrInvalidFace, InvalidFace},
		{UnsupportedExternalFormatError("su2", 12, 14), ErrUnsupportedExternalFormat, UnsupportedExternalFormat},
		{UnknownRegionError("wall"), ErrUnknownRegion, UnknownRegion},
		{NotConvergedError(100, 1.e-3), ErrNotConverged, NotConverged},
	} {
		assert.ErrorIs(t, tc.err, tc.sentinel, tc.kind.String())
		assert.ErrorIs(t, fmt.Errorf("wrapped: %w", tc.err), tc.sentinel)
		assert.NotErrorIs(t, tc.err, &Error{Kind: (tc.kind + 1) % (NotConverged + 1)})
		var e *Error
		require.True(t, errors.As(tc.err, &e))
		assert.Equal(t, tc.kind, e.Kind)
		// the location is the constructor's caller
		assert.Equal(t, "errors_test.go", e.File)
		assert.Contains(t, tc.err.Error(), tc.kind.String())
	}
	assert.Equal(t, "InvalidSize: expected size 3, got size 4", (&Error{Kind: InvalidSize, Msg: "expected size 3, got size 4"}).Error())
	assert.Equal(t, "ErrorKind(42)", ErrorKind(42).String())
	assert.False(t, ErrInvalidSize.Is(errors.New("plain")))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLogger(1, 4, &buf)
	assert.Equal(t, 1, lg.Rank())
	assert.Equal(t, 4, lg.Size())
	lg.Infof("assembled %d cells", 12)
	lg.RootInfof("only on root")
	lg.Warnf("preallocation exceeded")
	lg.Error(InvalidSizeError(1, 2))
	lg.Error(errors.New("plain failure"))
	require.NoError(t, lg.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "[1/4] "), line)
	}
	assert.Contains(t, lines[0], "INFO assembled 12 cells")
	assert.Contains(t, lines[1], "WARN errors_test.go:")
	assert.Contains(t, lines[2], "ERROR errors_test.go:")
	assert.Contains(t, lines[3], "ERROR errors_test.go:")
	assert.NotContains(t, buf.String(), "only on root")

	buf.Reset()
	NewLogger(0, 4, &buf).RootInfof("root speaks")
	assert.Contains(t, buf.String(), "root speaks")

	buf.Reset()
	path := filepath.Join(t.TempDir(), "run")
	lg, err := NewFileLogger(2, 3, &buf, path)
	require.NoError(t, err)
	lg.Infof("to both")
	require.NoError(t, lg.Close())
	require.NoError(t, lg.Close())
	data, err := os.ReadFile(path + "_2")
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")

	_, err = NewFileLogger(0, 1, nil, filepath.Join(t.TempDir(), "missing", "run"))
	assert.ErrorIs(t, err, ErrInvalidFileName)

	quiet := Discard(0, 1)
	quiet.Infof("nothing")
	quiet.Error(InvalidSizeError(1, 2))
	assert.NoError(t, quiet.Close())
}

func TestSystem(t *testing.T) {
	assert.False(t, IsNan(1.))
	assert.True(t, IsNan(math.NaN()))
	assert.True(t, IsNan([]float64{0, math.NaN()}))
	assert.True(t, IsNan([][]float64{{0}, {1, math.NaN()}}))
	assert.False(t, IsNan([][]float64{{0}, {1, 2}}))
	assert.False(t, IsNan("text"))
	assert.Contains(t, GetMemUsage(), "Alloc")
}
