package errors

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

type mockCloser struct {
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.closeErr
}

func TestDeferClose(t *testing.T) {
	tests := []struct {
		name       string
		closer     io.Closer
		closeErr   error
		wantLogged bool
	}{
		{
			name:       "nil closer",
			closer:     nil,
			wantLogged: false,
		},
		{
			name:       "successful close",
			closer:     &mockCloser{},
			wantLogged: false,
		},
		{
			name:       "close with error",
			closer:     &mockCloser{closeErr: errors.New("close failed")},
			wantLogged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			DeferClose(logger, tt.closer, "test close")

			if tt.closer != nil {
				mc := tt.closer.(*mockCloser)
				if !mc.closed {
					t.Error("Close() was not called")
				}
			}

			logged := buf.Len() > 0
			if logged != tt.wantLogged {
				t.Errorf("logged = %v, want %v", logged, tt.wantLogged)
			}
		})
	}
}

func TestDeferRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.tmp")
	if err := os.WriteFile(path, []byte("partial"), 0o600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	DeferRemove(logger, path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}

	// Already removed and empty paths are silent.
	DeferRemove(logger, path)
	DeferRemove(logger, "")
	if buf.Len() > 0 {
		t.Errorf("unexpected log output: %s", buf.String())
	}

	// A non-empty directory cannot be removed.
	nested := filepath.Join(dir, "nested")
	if err := os.MkdirAll(filepath.Join(nested, "child"), 0o700); err != nil {
		t.Fatal(err)
	}
	DeferRemove(logger, nested)
	if buf.Len() == 0 {
		t.Error("expected a warning for a failed removal")
	}
}

func TestMust(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		msg       string
		wantPanic bool
	}{
		{
			name:      "no error",
			err:       nil,
			msg:       "initialization",
			wantPanic: false,
		},
		{
			name:      "with error",
			err:       errors.New("failed"),
			msg:       "initialization",
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if (r != nil) != tt.wantPanic {
					t.Errorf("panic = %v, want %v", r != nil, tt.wantPanic)
				}
			}()

			Must(tt.err, tt.msg)
		})
	}
}
