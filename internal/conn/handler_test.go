package conn

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"gokv/internal/config"
	"gokv/internal/srvstate"
	"gokv/internal/store"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestHandlePipelinedCommands(t *testing.T) {
	server, client := net.Pipe()
	state := srvstate.New(config.Default(), store.New(nil), testLogger(), nil)

	done := make(chan struct{})
	go func() {
		Handle(server, state)
		close(done)
	}()

	req := "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"
	go client.Write([]byte(req))

	reader := bufio.NewReader(client)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "+OK\r\n", line)

	bulkHeader, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "$3\r\n", bulkHeader)
	body := make([]byte, 5)
	_, err = io.ReadFull(reader, body)
	require.NoError(t, err)
	require.Equal(t, "bar\r\n", string(body))

	client.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after client closed")
	}
}

func TestHandleProtocolErrorClosesConnection(t *testing.T) {
	server, client := net.Pipe()
	state := srvstate.New(config.Default(), store.New(nil), testLogger(), nil)

	done := make(chan struct{})
	go func() {
		Handle(server, state)
		close(done)
	}()

	go client.Write([]byte("@garbage\r\n"))

	reader := bufio.NewReader(client)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "-ERR Protocol error\r\n", line)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler must close the connection after a protocol error")
	}
}

func TestHandleShutdownBroadcastEndsLoop(t *testing.T) {
	server, _ := net.Pipe()
	state := srvstate.New(config.Default(), store.New(nil), testLogger(), nil)

	done := make(chan struct{})
	go func() {
		Handle(server, state)
		close(done)
	}()

	state.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler must exit once the server shutdown broadcast fires")
	}
}
