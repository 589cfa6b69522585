//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package shell is the interactive line-oriented front end of the store.
// Every line is one command; values may contain spaces.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/logkv/adapters/repos/db/lsmkv"
)

const prompt = "logkv> "

var errExit = errors.New("exit")

type Shell struct {
	store    lsmkv.KeyValueStore
	gatherer prometheus.Gatherer
	logger   logrus.FieldLogger
}

// New creates a shell on top of store. gatherer may be nil if metrics are
// disabled.
func New(store lsmkv.KeyValueStore, gatherer prometheus.Gatherer,
	logger logrus.FieldLogger,
) *Shell {
	return &Shell{
		store:    store,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Run reads commands from in until it is exhausted, the exit command is
// given or ctx is canceled. Errors of individual commands are printed and do
// not end the session.
func (s *Shell) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Welcome to logkv, a log-structured key-value store.")
	fmt.Fprintln(out, "Type 'help' for a list of commands.")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		err := s.Execute(scanner.Text(), out)
		if errors.Is(err, errExit) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		if err != nil {
			s.logger.WithField("action", "shell_command").
				WithError(err).
				Debug("command failed")
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

// Execute runs a single command line
func (s *Shell) Execute(line string, out io.Writer) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	command, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(command) {
	case "put":
		return s.put(args, out)
	case "get":
		return s.get(args, out)
	case "delete", "del":
		return s.delete(args, out)
	case "list":
		return s.list(out)
	case "stats":
		return s.stats(out)
	case "compact":
		return s.compact(out)
	case "flush":
		return s.flush(out)
	case "metrics":
		return s.metrics(out)
	case "help":
		printHelp(out)
		return nil
	case "exit", "quit":
		return errExit
	default:
		return errors.Errorf("unknown command %q, type 'help' for a list of commands", command)
	}
}

func (s *Shell) put(args string, out io.Writer) error {
	key, value, ok := strings.Cut(args, " ")
	if !ok || key == "" {
		return errors.New("usage: put <key> <value>")
	}

	if err := s.store.Put([]byte(key), []byte(value)); err != nil {
		return errors.Wrapf(err, "put %q", key)
	}

	fmt.Fprintf(out, "Stored key '%s' with value '%s'\n", key, value)
	return nil
}

func (s *Shell) get(key string, out io.Writer) error {
	if key == "" {
		return errors.New("usage: get <key>")
	}

	value, found, err := s.store.Get([]byte(key))
	if err != nil {
		return errors.Wrapf(err, "get %q", key)
	}

	if !found {
		fmt.Fprintf(out, "No value found for key '%s'\n", key)
		return nil
	}

	fmt.Fprintf(out, "Value for key '%s': %s\n", key, value)
	return nil
}

func (s *Shell) delete(key string, out io.Writer) error {
	if key == "" {
		return errors.New("usage: delete <key>")
	}

	if err := s.store.Delete([]byte(key)); err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}

	fmt.Fprintf(out, "Deleted key '%s'\n", key)
	return nil
}

func (s *Shell) list(out io.Writer) error {
	keys, err := s.store.Keys()
	if err != nil {
		return errors.Wrap(err, "list keys")
	}

	if len(keys) == 0 {
		fmt.Fprintln(out, "The store is empty.")
		return nil
	}

	fmt.Fprintln(out, "Keys in the store:")
	for _, key := range keys {
		fmt.Fprintf(out, "  %s\n", key)
	}
	return nil
}

func (s *Shell) stats(out io.Writer) error {
	stats := s.store.Statistics().AsMap()

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "Store statistics:")
	for _, name := range names {
		fmt.Fprintf(out, "  %s: %d\n", name, stats[name])
	}
	return nil
}

func (s *Shell) compact(out io.Writer) error {
	if err := s.store.Compact(); err != nil {
		return errors.Wrap(err, "compact")
	}

	fmt.Fprintln(out, "Compaction completed.")
	return nil
}

func (s *Shell) flush(out io.Writer) error {
	if err := s.store.FlushMemtable(); err != nil {
		return errors.Wrap(err, "flush")
	}

	fmt.Fprintln(out, "Memtable flushed.")
	return nil
}

func (s *Shell) metrics(out io.Writer) error {
	if s.gatherer == nil {
		return errors.New("monitoring is disabled")
	}

	families, err := s.gatherer.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}

	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(out, family); err != nil {
			return errors.Wrap(err, "render metrics")
		}
	}
	return nil
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `Available commands:
  put <key> <value>  Store a key-value pair
  get <key>          Retrieve a value by key
  delete <key>       Delete a key-value pair
  list               List all keys in the store
  stats              Show store statistics
  compact            Merge all segments
  flush              Write the memtable to a new segment
  metrics            Show prometheus metrics
  help               Show this help message
  exit               Exit the shell
`)
}
