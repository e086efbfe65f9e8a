package h2conn

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/net/http2"
)

// Settings are the tunables of a Client. They can be set one by one with
// the Client setters or loaded from a TOML file:
//
//	max_header_list_size = 65536
//	read_idle_timeout = "30s"
//	shutdown_timeout = "10s"
//	debug_log = true
type Settings struct {
	// MaxHeaderListSize is the SETTINGS_MAX_HEADER_LIST_SIZE sent to the
	// peer. Zero uses the x/net default.
	MaxHeaderListSize uint32 `toml:"max_header_list_size"`

	// MaxReadFrameSize is the largest frame the peer may send.
	MaxReadFrameSize uint32 `toml:"max_read_frame_size"`

	// ReadIdleTimeout starts a health check ping after this long without
	// receiving a frame. Zero disables it.
	ReadIdleTimeout time.Duration `toml:"read_idle_timeout"`

	// PingTimeout closes the connection when a health check ping is not
	// answered in time.
	PingTimeout time.Duration `toml:"ping_timeout"`

	// WriteByteTimeout closes the connection when no data can be written
	// for this long.
	WriteByteTimeout time.Duration `toml:"write_byte_timeout"`

	// ShutdownTimeout bounds the graceful shutdown once the Sender is gone.
	// Zero waits for open streams indefinitely.
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	// BodyBufferSize is the largest chunk read from a request body at once.
	BodyBufferSize int `toml:"body_buffer_size"`

	// DisableAutoDecompress hands compressed response bodies over as is.
	DisableAutoDecompress bool `toml:"disable_auto_decompress"`

	// DebugLog enables debug level log.
	DebugLog bool `toml:"debug_log"`
}

// DefaultSettings returns the settings a new Client starts with.
func DefaultSettings() Settings {
	return Settings{
		BodyBufferSize: 16 << 10,
	}
}

// LoadSettings reads a TOML file on top of DefaultSettings. Unknown keys
// are an error.
func LoadSettings(filename string) (Settings, error) {
	s := DefaultSettings()
	md, err := toml.DecodeFile(filename, &s)
	if err != nil {
		return s, fmt.Errorf("load settings %s: %w", filename, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return s, fmt.Errorf("load settings %s: unknown keys: %s", filename, strings.Join(keys, ", "))
	}
	return s, nil
}

func (s *Settings) transport() *http2.Transport {
	return &http2.Transport{
		// decompression is done by Body
		DisableCompression: true,
		AllowHTTP:          true,
		MaxHeaderListSize:  s.MaxHeaderListSize,
		MaxReadFrameSize:   s.MaxReadFrameSize,
		ReadIdleTimeout:    s.ReadIdleTimeout,
		PingTimeout:        s.PingTimeout,
		WriteByteTimeout:   s.WriteByteTimeout,
	}
}
