package config

import (
	"github.com/spf13/pflag"
)

type (
	// ViewerConfig is the root of the app configuration tree.
	ViewerConfig struct {
		Viewer       Viewer
		Presentation Presentation
		Input        Input
		Session      Session
	}
	Viewer struct {
		Debug       bool
		Title       string `fig:"title" default:"cloudview"`
		SettingsDir string `fig:"settingsDir"`
		Monitoring  Monitoring
	}
	// Presentation holds the immutable-per-session stream presentation
	// defaults. User adjustments persist through the settings store and
	// are merged over these values on load.
	Presentation struct {
		Renderer         string `fig:"renderer" default:"native"` // native or pump
		QueueDepth       int    `fig:"queueDepth" default:"1"`
		Codec            string `fig:"codec" default:"h264"`
		ImmersiveKeybind bool   `fig:"immersiveKeybind"`
		Width            int    `fig:"width" default:"1280"`
		Height           int    `fig:"height" default:"720"`
	}
	Input struct {
		MouseMode  string `fig:"mouseMode" default:"follow"` // relative, follow, pointAndDrag
		TouchMode  string `fig:"touchMode" default:"touch"`  // touch, mouseRelative, pointAndDrag
		ScrollMode string `fig:"scrollMode" default:"normal"`
		SwapAB     bool
		SwapXY     bool
	}
	Session struct {
		SignalAddress string `fig:"signalAddress" default:"ws://localhost:8000/signal"`
		LogLevel      int    `fig:"logLevel" default:"4"`
		IceServers    []IceServer
	}
	IceServer struct {
		Urls       string `fig:"urls" default:"stun:stun.l.google.com:19302"`
		Username   string
		Credential string
	}
	Monitoring struct {
		Port             int
		URLPrefix        string `fig:"urlPrefix"`
		MetricEnabled    bool   `fig:"metricEnabled"`
		ProfilingEnabled bool   `fig:"profilingEnabled"`
		Https            bool
		Tls              struct {
			Domain    string
			HttpsKey  string `fig:"httpsKey"`
			HttpsCert string `fig:"httpsCert"`
		}
	}
)

func (m Monitoring) IsEnabled() bool { return m.Port > 0 && (m.MetricEnabled || m.ProfilingEnabled) }

// allows custom config path
var configPath string

func NewViewerConfig() (conf ViewerConfig, err error) {
	err = LoadConfig(&conf, configPath)
	return
}

func (c *ViewerConfig) WithFlags(fs *pflag.FlagSet) *ViewerConfig {
	fs.BoolVar(&c.Viewer.Debug, "debug", c.Viewer.Debug, "Enable debug logging")
	fs.IntVar(&c.Viewer.Monitoring.Port, "monitoring.port", c.Viewer.Monitoring.Port, "Monitoring server port")
	fs.StringVar(&c.Session.SignalAddress, "signal", c.Session.SignalAddress, "Signaling server URL")
	fs.StringVar(&c.Presentation.Renderer, "renderer", c.Presentation.Renderer, "Frame renderer (native or pump)")
	fs.StringVarP(&configPath, "conf", "c", "", "Set custom configuration file path")
	return c
}
