// Command streamcore is a thin demo entrypoint: it loads tuning
// config, compiles a sample pipeline, and serves it over the
// introspection gateway.
package main

import (
	"os"
	"os/signal"

	"github.com/tarungka/streamcore/gateway"
	"github.com/tarungka/streamcore/internal/config"
	"github.com/tarungka/streamcore/internal/logger"
	"github.com/tarungka/streamcore/stream"
	"github.com/tarungka/streamcore/stream/monoid"
)

var buildString = "unknown"

func main() {
	log := logger.Component("main")

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log.Info().Str("build", buildString).Msg("starting streamcore")

	reg := gateway.NewRegistry()
	if err := reg.Register("word-length-histogram", demoDescriptor()); err != nil {
		log.Fatal().Err(err).Msg("failed to compile demo pipeline")
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting gateway")
		if err := gateway.Run(cfg.Port, reg); err != nil {
			log.Err(err).Msg("gateway stopped")
		}
	}()

	<-done
	log.Info().Msg("received interrupt signal; shutting down")
}

// demoDescriptor builds a sample pipeline: a word-length histogram
// split into even- and odd-length branches, each summing its branch's
// word lengths.
func demoDescriptor() any {
	wordLength := stream.MapOp(func(m stream.Message) stream.Message {
		return len(m.(string))
	})

	sum, err := monoid.Sum()
	if err != nil {
		panic(err) // Sum's callbacks are constants; this can never fail.
	}

	split := map[string]any{
		"even": []any{
			stream.MapcatOp(func(m stream.Message) []stream.Message {
				if n := m.(int); n%2 == 0 {
					return []stream.Message{n}
				}
				return nil
			}),
			sum,
		},
		"odd": []any{
			stream.MapcatOp(func(m stream.Message) []stream.Message {
				if n := m.(int); n%2 != 0 {
					return []stream.Message{n}
				}
				return nil
			}),
			sum,
		},
	}

	return []any{wordLength, split}
}
