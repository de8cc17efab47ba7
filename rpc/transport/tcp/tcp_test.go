package tcp

import (
	"github.com/ValentinKolb/netcom/rpc/common"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConnectAndUpgrade dials a local listener and applies every socket option
func TestConnectAndUpgrade(t *testing.T) {
	server := NewTCPServerConnector()
	listener, err := server.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	config := common.TransportConfig{
		SocketConf: common.SocketConf{WriteBufferSize: 64 * 1024, ReadBufferSize: 64 * 1024},
		TCPConf:    common.TCPConf{TCPNoDelay: true, TCPKeepAliveSec: 30, TCPLingerSec: 0},
	}

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			_ = server.UpgradeConnection(conn, config)
		}
		accepted <- conn
	}()

	client := NewTCPClientConnector()
	assert.Equal(t, "tcp", client.GetName())
	assert.Equal(t, "tcp", server.GetName())

	conn, err := client.Connect(listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, client.UpgradeConnection(conn, config))

	peer := <-accepted
	require.NotNil(t, peer)
	defer peer.Close()

	_, err = conn.Write([]byte("PROTO30\n"))
	require.NoError(t, err)

	buf := make([]byte, 8)
	_, err = io.ReadFull(peer, buf)
	require.NoError(t, err)
	assert.Equal(t, "PROTO30\n", string(buf))
}

// TestUpgradeNonTCP makes sure foreign connection types are accepted as-is
func TestUpgradeNonTCP(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	assert.NoError(t, NewTCPClientConnector().UpgradeConnection(a, common.TransportConfig{}))
}

func TestConnectRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	_, err = NewTCPClientConnector().Connect(addr)
	assert.Error(t, err)
}
