package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenUDP binds an ephemeral UDP listener and returns its address plus a
// channel of received datagrams.
func listenUDP(t *testing.T) (string, <-chan string) {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	lines := make(chan string, 16)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				close(lines)
				return
			}
			lines <- string(buf[:n])
		}
	}()
	return conn.LocalAddr().String(), lines
}

func receiveLine(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case line := <-lines:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for statsd datagram")
		return ""
	}
}

func TestClient_DisabledIsNoop(t *testing.T) {
	client, err := NewClient(Config{Enabled: false, Address: "localhost:8125"})
	require.NoError(t, err)

	assert.False(t, client.Enabled())
	client.Count("auth.login.success", 1, nil)
	assert.NoError(t, client.Close())
}

func TestClient_CountWithPrefixAndTags(t *testing.T) {
	addr, lines := listenUDP(t)

	client, err := NewClient(Config{Enabled: true, Address: addr, Prefix: "storefront."})
	require.NoError(t, err)
	defer client.Close()

	client.Count("auth.login.success", 1, map[string]string{"role": "buyer"})

	line := receiveLine(t, lines)
	assert.Equal(t, "storefront.auth.login.success:1|c|#role:buyer", line)
}

func TestClient_TagsAreSorted(t *testing.T) {
	addr, lines := listenUDP(t)

	client, err := NewClient(Config{Enabled: true, Address: addr})
	require.NoError(t, err)
	defer client.Close()

	client.Count("auth.event.dropped", 1, map[string]string{"reason": "inbox_full", "kind": "signed_in"})

	line := receiveLine(t, lines)
	assert.Equal(t, "auth.event.dropped:1|c|#kind:signed_in,reason:inbox_full", line)
}

func TestClient_GaugeAndTiming(t *testing.T) {
	addr, lines := listenUDP(t)

	client, err := NewClient(Config{Enabled: true, Address: addr})
	require.NoError(t, err)
	defer client.Close()

	client.Gauge("auth.subscribers", 3, nil)
	assert.Equal(t, "auth.subscribers:3|g", receiveLine(t, lines))

	client.Timing("auth.login.duration", 250*time.Millisecond, nil)
	assert.Equal(t, "auth.login.duration:250|ms", receiveLine(t, lines))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	addr, _ := listenUDP(t)

	client, err := NewClient(Config{Enabled: true, Address: addr})
	require.NoError(t, err)

	assert.True(t, client.Enabled())
	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	assert.False(t, client.Enabled())
}
