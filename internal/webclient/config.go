package webclient

import "time"

const (
	BackendChromedp = "chromedp"
	BackendNetHTTP  = "nethttp"
)

// Config selects and tunes the browser backend.
type Config struct {
	// Backend names a registered backend ("chromedp" or "nethttp").
	Backend string `yaml:"backend" json:"backend"`

	Headless  bool   `yaml:"headless" json:"headless"`
	NoSandbox bool   `yaml:"no_sandbox" json:"no_sandbox"`
	ExecPath  string `yaml:"exec_path" json:"exec_path"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`

	// RequestTimeout bounds each nethttp fetch.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// MaxBodyBytes caps how much of a page nethttp reads.
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`
}

// DefaultConfig returns a headless chromedp setup.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendChromedp,
		Headless:       true,
		NoSandbox:      true,
		UserAgent:      "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36",
		RequestTimeout: 10 * time.Second,
		MaxBodyBytes:   5 << 20,
	}
}
