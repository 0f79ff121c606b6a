package main

import (
	"flag"
	"fmt"
	"os"

	"karaoke/spectrum"
)

type Config struct {
	DB      string
	Uploads string
	Static  string
	Serve   string // listen address of the library API, empty to disable

	Device string // input device, index or name prefix
	Play   string // output device for local songs
	Buffer int    // host buffer size, in samples

	Song  int64
	Pitch float64
	Curve string

	List bool
	NoUI bool
	Log  string

	APIKey string
}

func defaultConfig() Config {
	c := Config{
		DB:      "karaoke.db",
		Uploads: "uploads",
		Static:  ".",
		Buffer:  512,
		Pitch:   440,
		APIKey:  os.Getenv("YOUTUBE_API_KEY"),
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Serve = ":" + port
	}
	return c
}

func (c *Config) flags(fs *flag.FlagSet) {
	fs.StringVar(&c.DB, "db", c.DB, "songs database")
	fs.StringVar(&c.Uploads, "uploads", c.Uploads, "directory for uploaded songs")
	fs.StringVar(&c.Static, "static", c.Static, "directory served at the web root")
	fs.StringVar(&c.Serve, "serve", c.Serve, "listen address for the songs API (e.g. :3000)")
	fs.StringVar(&c.Device, "device", c.Device, "input audio device (microphone)")
	fs.StringVar(&c.Play, "play", c.Play, "output audio device (for local WAV songs)")
	fs.IntVar(&c.Buffer, "buffer", c.Buffer, "audio buffer size (in samples)")
	fs.Int64Var(&c.Song, "song", c.Song, "id of the song to load")
	fs.Float64Var(&c.Pitch, "pitch", c.Pitch, "expected pitch (in Hz)")
	fs.StringVar(&c.Curve, "curve", c.Curve, "expected pitch curve (JSON steps)")
	fs.BoolVar(&c.List, "list", c.List, "list audio devices")
	fs.BoolVar(&c.NoUI, "noui", c.NoUI, "no user interface, write to stdout")
	fs.StringVar(&c.Log, "log", c.Log, "log file")
}

func (c *Config) validate() error {
	if c.Buffer < 64 {
		c.Buffer = 64
	}
	if c.Buffer > spectrum.FFTSize*4 {
		c.Buffer = spectrum.FFTSize * 4
	}

	if c.Pitch <= 0 {
		return fmt.Errorf("invalid pitch: %v", c.Pitch)
	}
	if c.Song < 0 {
		return fmt.Errorf("invalid song id: %v", c.Song)
	}
	if c.DB == "" {
		return fmt.Errorf("no database")
	}
	return nil
}
