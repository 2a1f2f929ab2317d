// Package config loads executor and gateway tuning from a config file
// merged with command-line flag overrides, the same koanf + pflag
// pattern many CLI tools use for merging config files with flags.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"

	"github.com/tarungka/streamcore/internal/logger"
)

// Config is the tuning surface of the executor and gateway. The
// cmd/streamcore entrypoint applies only Port; Workers,
// SemaphoreCapacity and BufferedCapacity are parsed and returned but
// not passed to the executor or to any buffered aggregator.
type Config struct {
	// Workers is the number of single-threaded executor workers; 0
	// means runtime.NumCPU().
	Workers int
	// SemaphoreCapacity is the leased-permit count for the executor's
	// semaphore; 0 means 2*Workers.
	SemaphoreCapacity int
	// BufferedCapacity is the default per-shard buffer capacity for a
	// buffered aggregator.
	BufferedCapacity int
	// Port is the gateway's HTTP listen port.
	Port string
}

// Load parses args (normally os.Args[1:]) and merges any config files
// they name with flag overrides, in the same precedence order as the
// teacher's initFlags/initConfig: config file values first, flags last.
func Load(args []string) (*Config, error) {
	ko := koanf.New(".")
	log := logger.Component("config")

	f := flag.NewFlagSet("streamcore", flag.ContinueOnError)
	f.Usage = func() { fmt.Fprint(os.Stdout, f.FlagUsages()) }

	f.StringSlice("config", nil, "path to one or more config files (merged in order)")
	f.Int("workers", 0, "number of executor workers (0 = runtime.NumCPU())")
	f.Int("semaphore-capacity", 0, "leased semaphore permits (0 = 2*workers)")
	f.Int("buffered-capacity", 0, "default buffered aggregator capacity (0 = package default)")
	f.String("port", "8080", "gateway HTTP port")

	if err := f.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	for _, path := range mustStringSlice(f, "config") {
		if err := loadFile(ko, path); err != nil {
			return nil, err
		}
		log.Debug().Str("file", path).Msg("merged config file")
	}

	if err := ko.Load(posflag.Provider(f, ".", ko), nil); err != nil {
		return nil, fmt.Errorf("merging flags: %w", err)
	}

	return &Config{
		Workers:           ko.Int("workers"),
		SemaphoreCapacity: ko.Int("semaphore-capacity"),
		BufferedCapacity:  ko.Int("buffered-capacity"),
		Port:              ko.String("port"),
	}, nil
}

func mustStringSlice(f *flag.FlagSet, name string) []string {
	v, err := f.GetStringSlice(name)
	if err != nil {
		return nil
	}
	return v
}

func loadFile(ko *koanf.Koanf, path string) error {
	ext := path[strings.LastIndex(path, ".")+1:]
	var parser koanf.Parser
	switch ext {
	case "yaml", "yml":
		parser = yaml.Parser()
	case "json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file extension: %s", ext)
	}
	if err := ko.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}
