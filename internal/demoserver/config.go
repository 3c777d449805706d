package demoserver

// Config holds configuration for the phishing lab server.
type Config struct {
	// Port is the port on which the lab listens.
	Port int `yaml:"port" json:"port"`

	// InitialVariant is the starting variant for all pages (default: 1, benign).
	InitialVariant int `yaml:"initial_variant" json:"initial_variant"`

	// CollectorHost is the foreign host malicious variants post credentials to
	// and load frames from. It never has to resolve.
	CollectorHost string `yaml:"collector_host" json:"collector_host"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           9999,
		InitialVariant: 1,
		CollectorHost:  "collector.example.net",
	}
}
