package compositor

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestConnectRequiresInstanceSignature(t *testing.T) {
	t.Setenv(InstanceSignatureEnv, "")
	_, err := Connect(testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), InstanceSignatureEnv)
}

func TestConnectRequiresSocketDirectory(t *testing.T) {
	t.Setenv(InstanceSignatureEnv, "sig-without-sockets")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	_, err := Connect(testLogger())
	assert.Error(t, err)
}

func setupCompositorDir(t *testing.T) string {
	t.Helper()
	runtime := t.TempDir()
	sig := "test-instance"
	dir := filepath.Join(runtime, "hypr", sig)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	t.Setenv("XDG_RUNTIME_DIR", runtime)
	t.Setenv(InstanceSignatureEnv, sig)
	return dir
}

func TestConnectResolvesSocketDir(t *testing.T) {
	setupCompositorDir(t)

	client, err := Connect(testLogger())
	require.NoError(t, err)
	defer client.Close()

	state := client.State()
	assert.True(t, state.Connected)
	assert.Equal(t, "test-instance", state.InstanceSig)
}

// TestSubscribeEventsStream serves a scripted event socket and asserts
// parsed events arrive in order.
func TestSubscribeEventsStream(t *testing.T) {
	dir := setupCompositorDir(t)

	listener, err := net.Listen("unix", filepath.Join(dir, eventSocketName))
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		lines := []string{
			"workspace>>3\n",
			"openwindow>>0x12345,1,firefox,GitHub - user/repo: Issues, Pull Requests\n",
			"closewindow>>0x12345\n",
		}
		for _, line := range lines {
			conn.Write([]byte(line))
		}
		time.Sleep(200 * time.Millisecond)
	}()

	client, err := Connect(testLogger())
	require.NoError(t, err)
	defer client.Close()

	events := client.SubscribeEvents()

	expect := []EventKind{EventWorkspaceChanged, EventWindowOpened, EventWindowClosed}
	for i, kind := range expect {
		select {
		case event := <-events:
			assert.Equal(t, kind, event.Kind, "event %d", i)
			if kind == EventWindowOpened {
				assert.Equal(t, "0x12345", event.Address)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestEventFilterUpdate(t *testing.T) {
	setupCompositorDir(t)
	client, err := Connect(testLogger())
	require.NoError(t, err)
	defer client.Close()

	client.SetEventFilters([]string{"workspace"})

	client.filterMu.RLock()
	defer client.filterMu.RUnlock()
	assert.Equal(t, []string{"workspace"}, client.filters)
}
