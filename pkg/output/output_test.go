package output

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingOutput struct {
	mu      sync.Mutex
	batches int
	err     error
}

func (r *recordingOutput) WriteBatch(entries [][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	return r.err
}

func TestConsoleOutput_AddsMissingNewlines(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriterOutput(&buf)

	require.NoError(t, out.WriteBatch([][]byte{
		[]byte("line one\n"),
		[]byte("datagram"),
		[]byte(""),
	}))
	assert.Equal(t, "line one\ndatagram\n\n", buf.String())
}

func TestFanOutOutput(t *testing.T) {
	a, b := &recordingOutput{}, &recordingOutput{}
	f := NewFanOutOutput(a, b)
	assert.Equal(t, 2, f.Len())

	require.NoError(t, f.WriteBatch([][]byte{[]byte("x")}))
	assert.Equal(t, 1, a.batches)
	assert.Equal(t, 1, b.batches)

	errA, errB := errors.New("a down"), errors.New("b down")
	a.err, b.err = errA, errB
	err := f.WriteBatch([][]byte{[]byte("x")})
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	assert.NoError(t, NewFanOutOutput().WriteBatch(nil))
}

func TestHTTPOutput(t *testing.T) {
	var (
		gotBody   string
		gotHeader string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotHeader = r.Header.Get("X-Token")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	out := NewHTTPOutput(srv.URL, map[string]string{"X-Token": "abc"})
	require.NoError(t, out.WriteBatch([][]byte{[]byte("a"), []byte("b")}))
	assert.Equal(t, "a\nb", gotBody)
	assert.Equal(t, "abc", gotHeader)
}

func TestHTTPOutput_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPOutput(srv.URL, nil).WriteBatch([][]byte{[]byte("a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
