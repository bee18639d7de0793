package logsvc

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/core/user"
)

func TestRollbarLogger_Print(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig())

	logger.Error("grading failed", os.ErrNotExist, user.User{ID: "u1", Username: "amani"})

	out := buf.String()
	assert.Contains(t, out, "ERROR grading failed\n")
	assert.Contains(t, out, os.ErrNotExist.Error())
	assert.NotContains(t, out, "amani")
}

func TestNewStdLogger_File(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Log.File = filepath.Join(t.TempDir(), "api.log")

	std := NewStdLogger(conf, "API : ")
	std.Println("hello file")

	data, err := os.ReadFile(conf.Log.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}
