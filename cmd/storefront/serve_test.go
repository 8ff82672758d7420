package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toastigo/storefront/internal/config"
	"github.com/toastigo/storefront/internal/device"
)

func TestNewProtocol(t *testing.T) {
	t.Run("incomplete credentials disable the bridge", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Printer.Serial = "SERIAL1"

		proto, err := newProtocol(cfg)
		require.NoError(t, err)
		assert.Nil(t, proto)
	})

	t.Run("cloud", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Printer.Serial = "SERIAL1"
		cfg.Printer.UserID = "1234"
		cfg.Printer.AccessToken = "tok"

		proto, err := newProtocol(cfg)
		require.NoError(t, err)
		require.NotNil(t, proto)
		assert.Equal(t, device.KindCloud, proto.Name())
		assert.Equal(t, "device/SERIAL1/report", proto.ReportTopic())
	})

	t.Run("lan", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Printer.Protocol = config.ProtocolLAN
		cfg.Printer.Serial = "SERIAL1"
		cfg.Printer.Broker = "tls://192.168.1.40:8883"
		cfg.Printer.AccessCode = "12345678"

		proto, err := newProtocol(cfg)
		require.NoError(t, err)
		require.NotNil(t, proto)
		assert.Equal(t, "tls://192.168.1.40:8883", proto.Endpoint().Broker)
	})
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, version+"\n", out.String())
}
