package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/marmos91/dittovec/internal/logger"
	"github.com/marmos91/dittovec/pkg/config"
	"github.com/spf13/cobra"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  string
	logsStore  string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail server logs",
	Long: `Display and optionally follow the dittovec server logs.

Works when logging.output points at a file. Both the text and the json log
formats are understood; --store keeps only lines about one store.

Examples:
  # Show last 100 lines (default)
  dittovec logs

  # Follow everything logged about the "docs" store
  dittovec logs -f --store docs

  # Show logs since a specific time
  dittovec logs --since "2026-01-15T10:00:00Z"`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since timestamp (RFC3339 format)")
	logsCmd.Flags().StringVar(&logsStore, "store", "", "Only show lines for this store")
}

// logFilter selects log lines by time and store.
type logFilter struct {
	since time.Time
	store string
}

func (f logFilter) match(line string) bool {
	if line == "" {
		return false
	}
	ts, storeName := parseLogLine(line)
	if !f.since.IsZero() && !ts.IsZero() && ts.Before(f.since) {
		return false
	}
	return f.store == "" || storeName == f.store
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logOutput := cfg.Logging.Output
	if logOutput == "stdout" || logOutput == "stderr" {
		return fmt.Errorf("server is configured to log to %s, not a file\nConfigure 'logging.output' in config to a file path to use this command", logOutput)
	}
	if _, err := os.Stat(logOutput); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s\nThe server may not have started yet or is logging elsewhere", logOutput)
	}

	filter := logFilter{store: strings.ToLower(strings.TrimSpace(logsStore))}
	if logsSince != "" {
		filter.since, err = time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since format (use RFC3339): %w", err)
		}
	}

	file, err := os.Open(logOutput)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := tailLines(file, os.Stdout, logsLines, filter); err != nil {
		return err
	}
	if !logsFollow {
		return nil
	}
	return followLogs(file, logOutput, filter)
}

// tailLines prints the last n matching lines of r. Only n lines are held
// in memory.
func tailLines(r io.Reader, w io.Writer, n int, filter logFilter) error {
	if n <= 0 {
		_, err := io.Copy(io.Discard, r)
		return err
	}

	ring := make([]string, 0, n)
	next := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !filter.match(line) {
			continue
		}
		if len(ring) < n {
			ring = append(ring, line)
			continue
		}
		ring[next] = line
		next = (next + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	for i := range ring {
		_, _ = fmt.Fprintln(w, ring[(next+i)%len(ring)])
	}
	return nil
}

// followLogs prints lines appended to file until interrupted.
func followLogs(file *os.File, path string, filter logFilter) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Following %s (Ctrl+C to stop)...\n", path)

	reader := bufio.NewReader(file)
	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			for {
				chunk, err := reader.ReadString('\n')
				if err != nil {
					// keep an unterminated line for the next write
					partial += chunk
					break
				}
				line := strings.TrimRight(partial+chunk, "\n")
				partial = ""
				if filter.match(line) {
					fmt.Println(line)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// parseLogLine extracts the timestamp and store of a text or json log line.
func parseLogLine(line string) (time.Time, string) {
	if strings.HasPrefix(line, "{") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return time.Time{}, ""
		}
		var ts time.Time
		if raw, ok := rec["time"].(string); ok {
			ts, _ = time.Parse(time.RFC3339Nano, raw)
		}
		storeName, _ := rec[logger.KeyStore].(string)
		return ts, storeName
	}

	// [2006-01-02 15:04:05] [LEVEL] message key=value ...
	var ts time.Time
	if len(line) > 21 && line[0] == '[' && line[20] == ']' {
		ts, _ = time.ParseInLocation("2006-01-02 15:04:05", line[1:20], time.Local)
	}
	var storeName string
	for field := range strings.FieldsSeq(line) {
		if v, ok := strings.CutPrefix(field, logger.KeyStore+"="); ok {
			storeName = strings.Trim(v, `"`)
			break
		}
	}
	return ts, storeName
}
