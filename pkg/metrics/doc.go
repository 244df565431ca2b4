/*
Package metrics provides Prometheus metrics collection and exposition for
warren-sync.

All metrics are registered at package init under the `warrensync_` name
prefix and exposed via the standard Prometheus HTTP handler.

# Metrics Catalog

Store (§4.1, §6.1):

	warrensync_store_bytes_total       gauge    total ciphertext bytes stored
	warrensync_store_quota_bytes       gauge    configured quota (0 = unlimited)
	warrensync_branches_total{state}   gauge    branches by admission state

Tracker (§4.7):

	warrensync_tracker_offers_total     counter
	warrensync_tracker_accepts_total    counter
	warrensync_tracker_missing_blocks   gauge

Protocol/client (§4.5):

	warrensync_pending_requests_total{kind}        gauge
	warrensync_request_duration_seconds{kind}      histogram
	warrensync_blocks_received_total               counter
	warrensync_blocks_rejected_total{reason}        counter

Channel (§4.6):

	warrensync_channel_bytes_sent_total{peer}      counter
	warrensync_channel_bytes_received_total{peer}  counter
	warrensync_channels_open_total                 gauge
	warrensync_handshakes_failed_total             counter

Background workers (§9):

	warrensync_merge_cycles_total         counter
	warrensync_merge_duration_seconds     histogram
	warrensync_gc_cycles_total            counter
	warrensync_gc_blocks_removed_total    counter
	warrensync_pruner_cycles_total        counter

API (§6.4):

	warrensync_api_requests_total{method, status}        counter
	warrensync_api_request_duration_seconds{method}      histogram

# Usage

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.MergeDuration)

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
