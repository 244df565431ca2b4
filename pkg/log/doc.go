/*
Package log provides structured logging for warren-sync using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("tracker")                 │          │
	│  │  - WithRepositoryID("a1b2c3...")            │          │
	│  │  - WithWriterID("d4e5f6...")                │          │
	│  │  - WithPeerAddr("10.0.0.5:35421")           │          │
	│  │  - WithChannelID("...")                     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "merger",                   │          │
	│  │    "time": "2026-07-29T10:30:00Z",         │          │
	│  │    "message": "merge cycle completed"       │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-07-29T10:30:00Z INF merge cycle completed component=merger │  │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all warren-sync packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs (e.g. "storage", "client",
    "server", "tracker", "dispatcher", "merger", "gc", "pruner", "trash")
  - WithRepositoryID: Add repo_id context
  - WithWriterID: Add writer_id context
  - WithPeerAddr: Add peer_addr context
  - WithChannelID: Add channel_id context

# Usage

Initializing the logger:

	import "github.com/cuemby/warren-sync/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers, composed per connection:

	clientLog := log.WithComponent("client").
		With().Str("repo_id", repoID.String()).
		Str("peer_addr", peerAddr).Logger()
	clientLog.Info().Msg("requesting root node")
	clientLog.Error().Err(err).Msg("root node request failed")

# Integration points

This package is used by every package that runs background work or handles
peer traffic: pkg/repository (background workers), pkg/client, pkg/server,
pkg/noisechan (dispatcher, handshake), pkg/tracker, pkg/storage, pkg/branch.

# Best practices

Do:
  - Use Info level for production
  - Create component-specific loggers, narrowed further with repo/writer/peer/
    channel context as the call path descends
  - Log errors with .Err() rather than string-formatting them into the message

Don't:
  - Log block plaintext, read keys, write key seeds, or share-token secrets
  - Use Debug level in production
  - Log in tight loops (e.g. once per block) — log per cycle/batch instead
*/
package log
