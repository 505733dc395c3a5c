// Package config loads the environment-driven configuration shared by the
// tx-iterator and tx-puller binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultHTTPAddr is where the status server binds when HTTP_ADDR is unset.
	DefaultHTTPAddr = "127.0.0.1:80"

	// DefaultInvestigateAfter is how long a digest may sit observed-only-on-RPC
	// before a support node investigates promoting itself to leader.
	DefaultInvestigateAfter = 30 * time.Second

	// DefaultBatchSize is how many claimed digests the puller processes per
	// iteration when BATCH_SIZE is unset.
	DefaultBatchSize = 10

	// FetchDigestsBatch is how many digests are fetched from RPC per call.
	FetchDigestsBatch = 100

	// QueryDigestsBatch is a db select size that no code reads; the support
	// loop caps each of its selects at 4x the fetch batch instead.
	QueryDigestsBatch = 1024

	// SleepOnNoNewTxs is how long a leader idles when RPC reports no new txs.
	SleepOnNoNewTxs = 5 * time.Millisecond

	// SleepOnEmptyClaim is how long the puller idles when a claim comes back
	// empty, to avoid hammering the store with an empty-result tight loop.
	SleepOnEmptyClaim = 50 * time.Millisecond

	// FilterExpectedInsertions and FilterFalsePositiveRate size the puller's
	// membership filter for 10^8 insertions at a 1% false-positive rate.
	FilterExpectedInsertions  = 100_000_000
	FilterFalsePositiveRate   = 0.01
)

// IteratorConfig is the tx-iterator binary's configuration.
type IteratorConfig struct {
	// SuiNodeURL is the chain node's RPC gateway, e.g.
	// "https://gateway.devnet.sui.io:443".
	SuiNodeURL string

	// WriterConnConf is the libpq-style connection string for the db this
	// node writes digests into if it is, or becomes, a leader.
	WriterConnConf string

	// SupportConnConf is set only for support nodes: the (distinct,
	// presumably read-only) db this node reads digests from to reconcile
	// against RPC. Its presence is what makes this node a support rather
	// than a leader.
	SupportConnConf string

	// InitialSeqNum seeds this node's fetch cursor, in either role, whenever
	// it is set; when unset, tx-iterator starts one past the chain node's
	// latest transaction. HasInitialSeqNum distinguishes "unset" from a
	// genuine zero.
	InitialSeqNum    uint64
	HasInitialSeqNum bool

	HTTPAddr string

	InvestigateAfter time.Duration
}

// IsSupport reports whether this node was configured as a support replica.
func (c *IteratorConfig) IsSupport() bool {
	return c.SupportConnConf != ""
}

// LoadIteratorConfig reads the tx-iterator configuration from the process
// environment. Call godotenv.Load() before this in main so a .env file, if
// present, populates the environment first.
func LoadIteratorConfig() (*IteratorConfig, error) {
	suiNodeURL := os.Getenv("SUI_NODE_URL")
	if suiNodeURL == "" {
		return nil, fmt.Errorf("SUI_NODE_URL is required")
	}

	writerConnConf := os.Getenv("WRITER_CONN_CONF")
	if writerConnConf == "" {
		return nil, fmt.Errorf("WRITER_CONN_CONF is required")
	}

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = DefaultHTTPAddr
	}

	cfg := &IteratorConfig{
		SuiNodeURL:       suiNodeURL,
		WriterConnConf:   writerConnConf,
		SupportConnConf:  os.Getenv("SUPPORT_CONN_CONF"),
		HTTPAddr:         httpAddr,
		InvestigateAfter: DefaultInvestigateAfter,
	}

	if raw := os.Getenv("INITIAL_SEQ_NUM"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid INITIAL_SEQ_NUM: %w", err)
		}
		cfg.InitialSeqNum = n
		cfg.HasInitialSeqNum = true
	}

	if raw := os.Getenv("INVESTIGATE_IF_TX_ONLY_OBSERVED_ON_RPC_FOR_SECONDS"); raw != "" {
		secs, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid INVESTIGATE_IF_TX_ONLY_OBSERVED_ON_RPC_FOR_SECONDS: %w", err)
		}
		cfg.InvestigateAfter = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// PullerConfig is the tx-puller binary's configuration.
type PullerConfig struct {
	SuiNodeURL     string
	WriterConnConf string
	BatchSize      int
	HTTPAddr       string
}

// LoadPullerConfig reads the tx-puller configuration from the process
// environment.
func LoadPullerConfig() (*PullerConfig, error) {
	suiNodeURL := os.Getenv("SUI_NODE_URL")
	if suiNodeURL == "" {
		return nil, fmt.Errorf("SUI_NODE_URL is required")
	}

	writerConnConf := os.Getenv("WRITER_CONN_CONF")
	if writerConnConf == "" {
		return nil, fmt.Errorf("WRITER_CONN_CONF is required")
	}

	batchSize := DefaultBatchSize
	if raw := os.Getenv("BATCH_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid BATCH_SIZE: %w", err)
		}
		batchSize = n
	}

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = DefaultHTTPAddr
	}

	return &PullerConfig{
		SuiNodeURL:     suiNodeURL,
		WriterConnConf: writerConnConf,
		BatchSize:      batchSize,
		HTTPAddr:       httpAddr,
	}, nil
}
