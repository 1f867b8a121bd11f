package udp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/junbin-yang/coapkit-go/pkg/coap"
	"github.com/junbin-yang/coapkit-go/pkg/network"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/plgd-dev/go-coap/v3/udp/coder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(t *testing.T) coap.Message {
	t.Helper()
	info := coap.CreateMsgInfo(coap.TypeNonConfirmable, coap.CodeGet, 42)
	require.NoError(t, info.SetToken([]byte{7}))
	require.NoError(t, info.OptString(coap.OptionUriPath, ".well-known"))
	require.NoError(t, info.OptString(coap.OptionUriPath, "core"))
	msg, err := coap.NewEncoder().Encode(info, nil)
	require.NoError(t, err)
	return msg
}

func TestSender_Send(t *testing.T) {
	ln, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := Dial(ctx, ln.LocalAddr().String())
	require.NoError(t, err)
	defer s.Close()
	t.Cleanup(func() { _ = network.CleanupGlobalState() })

	msg := testMessage(t)
	require.NoError(t, s.Send(msg))

	buf := make([]byte, 1500)
	require.NoError(t, ln.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, from, err := ln.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, msg.Datagram(), buf[:n])
	assert.Equal(t, s.LocalAddr().String(), from.String())

	decoded := pool.NewMessage(context.Background())
	defer decoded.Reset()
	_, err = decoded.UnmarshalWithDecoder(coder.DefaultCoder, buf[:n])
	require.NoError(t, err)
	assert.Equal(t, codes.GET, decoded.Code())
	path, err := decoded.Options().Path()
	require.NoError(t, err)
	assert.Equal(t, "/.well-known/core", path)
}

func TestSender_Errors(t *testing.T) {
	s, err := Dial(context.Background(), "127.0.0.1:5683")
	require.NoError(t, err)
	t.Cleanup(func() { _ = network.CleanupGlobalState() })

	assert.ErrorIs(t, s.Send(coap.Message{}), ErrEmptyMessage)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Send(testMessage(t)), ErrClosed)
	assert.Nil(t, s.LocalAddr())

	_, err = Dial(context.Background(), "not-an-address")
	assert.Error(t, err)
}

func TestSelectInterfaces(t *testing.T) {
	candidates := []network.InterfaceInfo{
		{Name: "eth0", Index: 2, Flags: net.FlagUp | net.FlagMulticast, Addresses: []net.IP{net.ParseIP("192.168.1.2")}},
		{Name: "eth1", Index: 3, Flags: net.FlagUp | net.FlagMulticast, Addresses: []net.IP{net.ParseIP("fe80::2")}},
		{Name: "wlan0", Index: 4, Flags: net.FlagUp | net.FlagMulticast, Addresses: []net.IP{net.ParseIP("10.0.0.2")}},
	}

	all := selectInterfaces(candidates, nil)
	require.Len(t, all, 2, "仅有IPv6地址的接口不用于IPv4组播")
	assert.Equal(t, "eth0", all[0].Name)
	assert.Equal(t, "wlan0", all[1].Name)

	only := selectInterfaces(candidates, []string{"wlan0"})
	require.Len(t, only, 1)
	assert.Equal(t, 4, only[0].Index)
}

func TestMulticastSender(t *testing.T) {
	t.Cleanup(func() { _ = network.CleanupGlobalState() })

	m, err := NewMulticastSender(MulticastConfig{Loopback: true})
	if err == ErrNoMulticastInterface {
		t.Skip("没有可用的组播接口")
	}
	require.NoError(t, err)
	defer m.Close()
	require.NotEmpty(t, m.Interfaces())

	_, err = m.SendMulticast(coap.Message{}, nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	sent, err := m.SendMulticast(testMessage(t), &net.UDPAddr{IP: net.ParseIP(AllCoAPNodesIPv4), Port: 56830})
	if err != nil {
		t.Skipf("组播发送不可用: %v", err)
	}
	assert.Positive(t, sent)

	require.NoError(t, m.Close())
	_, err = m.SendMulticast(testMessage(t), nil)
	assert.ErrorIs(t, err, ErrClosed)
}
